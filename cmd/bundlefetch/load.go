package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/bundlefetch/pkg/bundle"
)

// loadSummary is what load prints for a decoded bundle.
type loadSummary struct {
	Name   string   `yaml:"name"`
	Kind   string   `yaml:"kind"`
	Scenes []string `yaml:"scenes,omitempty"`
}

func newLoadCmd(a *app) *cobra.Command {
	var manifest bool

	cmd := &cobra.Command{
		Use:   "load <name>",
		Short: "Decode a cached bundle and describe it",
		Long: `Decode the cached bundle <name> and print its kind and scene paths.
With --manifest the full bundle manifest is printed instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := args[0]

			if manifest {
				path := filepath.Join(a.cfg.CacheDir, name)
				b, err := a.decoder.DecodeFile(ctx, path, nil)
				if errors.Is(err, os.ErrNotExist) {
					return &bundle.Error{Kind: bundle.NotFound, Target: path, Err: err}
				}
				if err != nil {
					return err
				}
				defer b.Release(false)
				m := b.Manifest()
				out, err := m.Marshal()
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(out)
				return err
			}

			h, err := wait(ctx, a, "Loading", a.client.Load(ctx, a.cfg.CacheDir, name))
			if err != nil {
				return err
			}
			defer h.Release()

			return printYAML(a, loadSummary{
				Name:   h.Name(),
				Kind:   kindName(h),
				Scenes: h.ScenePaths(),
			})
		},
	}

	cmd.Flags().BoolVar(&manifest, "manifest", false, "Print the bundle manifest")
	return cmd
}

func kindName(h *bundle.Handle) string {
	if h.IsSceneContainer() {
		return "scenes"
	}
	return "assets"
}

func printYAML(a *app, v any) error {
	enc := yaml.NewEncoder(a.stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}
