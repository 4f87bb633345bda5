package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ligustah/bundlefetch/pkg/bundle"
)

func newCleanCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean [name...]",
		Short: "Remove bundles from the cache",
		Long: `Remove the named bundles from the cache directory together with their
lock files and any leftover partial downloads. With --all every file in the
cache directory is removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return usageErrorf("pass bundle names or --all")
			}

			dir := a.cfg.CacheDir
			if all {
				entries, err := os.ReadDir(dir)
				if errors.Is(err, os.ErrNotExist) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("read cache dir: %w", err)
				}
				for _, e := range entries {
					if e.IsDir() {
						continue
					}
					if err := a.remove(filepath.Join(dir, e.Name())); err != nil {
						return err
					}
				}
				return nil
			}

			var missing []string
			for _, name := range args {
				path := filepath.Join(dir, name)
				found, err := a.removeBundle(path)
				if err != nil {
					return err
				}
				if !found {
					missing = append(missing, name)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("%w: %v", bundle.ErrNotFound, missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove everything in the cache directory")
	return cmd
}

// removeBundle removes a cached bundle and its side files. It reports
// whether the bundle itself existed.
func (a *app) removeBundle(path string) (bool, error) {
	found := true
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("remove %s: %w", path, err)
		}
		found = false
	} else {
		a.logf("Removed: %s", path)
	}

	side := []string{path + ".lock"}
	partials, err := filepath.Glob(filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".part-*"))
	if err != nil {
		return found, err
	}
	side = append(side, partials...)
	for _, p := range side {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return found, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return found, nil
}

func (a *app) remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	a.logf("Removed: %s", path)
	return nil
}
