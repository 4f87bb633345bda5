package main

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ligustah/bundlefetch/internal/blobstore"
	"github.com/ligustah/bundlefetch/internal/progress"
)

func newPublishCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <file> [key]",
		Short: "Upload a bundle archive to the bucket",
		Long: `Validate the bundle archive <file> and upload it to the configured bucket
under [key], which defaults to the file name. Prints the bucket:// URI the
bundle can be fetched from.`,
		Example: `  bundlefetch --bucket s3://bundles publish build/prefabs.tar.gz prefabs`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBucket(); err != nil {
				return err
			}
			ctx := cmd.Context()

			file := args[0]
			key := filepath.Base(file)
			if len(args) == 2 {
				key = strings.TrimPrefix(args[1], "/")
			}

			// Refuse to publish something the loader could not decode.
			b, err := a.decoder.DecodeFile(ctx, file, nil)
			if err != nil {
				return usageErrorf("invalid bundle %s: %w", file, err)
			}
			b.Release(false)

			n, err := a.bucket.Publish(ctx, file, key)
			if err != nil {
				return storageError(err)
			}
			a.logf("Published %s (%s)", key, progress.FormatBytes(n))
			fmt.Fprintln(a.stdout, blobstore.URI(key))
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List bundles in the bucket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBucket(); err != nil {
				return err
			}
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			keys, err := a.bucket.List(cmd.Context(), prefix)
			if err != nil {
				return storageError(err)
			}
			for _, k := range keys {
				fmt.Fprintln(a.stdout, blobstore.URI(k))
			}
			return nil
		},
	}
}

func newUnpublishCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unpublish <key>",
		Short: "Delete a bundle from the bucket",
		Long: `Delete the bundle stored under <key> from the configured bucket. Prompts
for confirmation unless --force is given. Local caches are not touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBucket(); err != nil {
				return err
			}
			key := strings.TrimPrefix(args[0], "/")
			if strings.Contains(key, "://") {
				var err error
				if key, err = blobstore.Key(key); err != nil {
					return usageError(err)
				}
			}

			if !force {
				fmt.Fprintf(a.stdout, "Delete %s from %s? [y/N]: ", key, a.cfg.BucketURL)
				response, _ := bufio.NewReader(a.stdin).ReadString('\n')
				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					a.logf("Cancelled")
					return nil
				}
			}

			if err := a.bucket.Delete(cmd.Context(), key); err != nil {
				return err
			}
			a.logf("Deleted: %s", key)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
