package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ligustah/bundlefetch/pkg/bundle"
	"github.com/ligustah/bundlefetch/pkg/bundle/archive"
)

func newAssetCmd(a *app) *cobra.Command {
	var (
		assetType string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "asset <name> <asset-path>",
		Short: "Extract an asset from a cached bundle",
		Long: `Load the cached asset bundle <name> and write the asset at <asset-path>
to stdout or to the file given with --output. The asset must have the type
selected with --type; documents are printed as YAML.`,
		Example: `  bundlefetch asset prefabs ui/title.txt
  bundlefetch asset prefabs cube.yaml --type document
  bundlefetch asset prefabs textures/cube.png --type blob -o cube.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, path := args[0], args[1]

			out := a.stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch archive.AssetType(assetType) {
			case archive.TypeText:
				text, err := extract[archive.Text](ctx, a, name, path)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, string(text))
				return err
			case archive.TypeBlob:
				blob, err := extract[archive.Blob](ctx, a, name, path)
				if err != nil {
					return err
				}
				_, err = out.Write(blob)
				return err
			case archive.TypeDocument:
				doc, err := extract[archive.Document](ctx, a, name, path)
				if err != nil {
					return err
				}
				return printYAML(&app{stdout: out}, map[string]any(doc))
			default:
				return usageErrorf("unknown asset type %q (want blob, text or document)", assetType)
			}
		},
	}

	cmd.Flags().StringVarP(&assetType, "type", "t", string(archive.TypeText), "Asset type: blob, text or document")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the asset to this file")
	return cmd
}

func extract[T any](ctx context.Context, a *app, name, path string) (T, error) {
	return wait(ctx, a, "Loading", bundle.LoadAsset[T](ctx, a.client, a.cfg.CacheDir, name, path))
}
