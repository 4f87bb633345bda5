// Package archive decodes bundles stored as gzipped tar archives.
//
// An archive carries a bundle.yaml manifest at its root and the payload
// files it references:
//
//	name: prefabs
//	version: 1.2.0
//	kind: assets          # assets | scenes
//	assets:
//	  - path: Assets/Prefabs/Cube.prefab
//	    type: document    # blob | text | document
//	    file: data/cube.yaml
//
// Scene bundles list scene paths instead and carry no assets:
//
//	name: levels
//	kind: scenes
//	scenes: [Assets/Scenes/Intro.unity, Assets/Scenes/Main.unity]
//
// Asset payloads decode to [Blob], [Text] or [Document] according to their
// type. Entry names are checked before anything is kept in memory: absolute
// paths, parent references and drive letters are rejected.
//
// # Usage
//
//	loader := bundle.NewLoader(archive.NewDecoder())
//	h, err := loader.Load(ctx, "/var/cache/bundles/prefabs", nil)
package archive
