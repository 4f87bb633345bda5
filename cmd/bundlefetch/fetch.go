package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <uri>...",
		Short: "Download bundles into the cache",
		Long: `Download one or more bundles into the cache directory and print their
cache paths. Bundles already in the cache are not downloaded again.`,
		Example: `  bundlefetch fetch https://cdn.example.com/bundles/prefabs
  bundlefetch --bucket s3://bundles fetch bucket://levels/forest bucket://levels/desert`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			dir := a.cfg.CacheDir

			if len(args) == 1 {
				path, err := wait(ctx, a, "Fetching", a.client.Fetch(ctx, dir, args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, path)
				return nil
			}

			paths, err := wait(ctx, a, "Fetching", a.client.FetchAll(ctx, dir, args...))
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.stdout, p)
			}
			return nil
		},
	}
}
