package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/bundlefetch/pkg/bundle"
)

func newSceneCmd(a *app) *cobra.Command {
	var additive bool

	cmd := &cobra.Command{
		Use:   "scene <name> <scene-path>",
		Short: "Activate a scene from a cached bundle",
		Long: `Load the cached scene bundle <name>, activate <scene-path> from it and
print the active scenes afterwards, one "id path" pair per line.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			mode := bundle.Replace
			if additive {
				mode = bundle.Additive
			}

			task := a.client.LoadScene(ctx, a.cfg.CacheDir, args[0], args[1], mode)
			if _, err := wait(ctx, a, "Loading", task); err != nil {
				return err
			}

			for _, ref := range a.stage.Active() {
				fmt.Fprintf(a.stdout, "%d %s\n", ref.ID, ref.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&additive, "additive", false, "Keep other active scenes")
	return cmd
}
