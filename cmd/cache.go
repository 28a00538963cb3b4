// File: cmd/cache.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/kestrelqa/kestrel/internal/selectorcache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// newCacheCmd groups the selector cache maintenance commands.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the on-disk selector cache",
	}
	cacheCmd.AddCommand(newCacheShowCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Lists cached selector files and their contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cfg.CacheDir()
			if err != nil {
				return err
			}
			paths, err := cacheFiles(dir)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				cmd.Printf("No cached selectors under %s\n", dir)
				return nil
			}

			for _, path := range paths {
				raw, err := os.ReadFile(path)
				if err != nil {
					cmd.Printf("%s: unreadable: %v\n", path, err)
					continue
				}
				var shaped map[string]struct {
					Steps []selectorcache.Entry `json:"steps"`
				}
				if err := json.Unmarshal(raw, &shaped); err != nil {
					cmd.Printf("%s: corrupt: %v\n", path, err)
					continue
				}
				cmd.Printf("%s\n", path)
				for scenario, sc := range shaped {
					cmd.Printf("  %s (%d steps)\n", scenario, len(sc.Steps))
					for _, entry := range sc.Steps {
						cmd.Printf("    %-50q -> %s\n", entry.Task, entry.Selector)
					}
				}
			}
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Deletes every cached selector file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cfg.CacheDir()
			if err != nil {
				return err
			}
			paths, err := cacheFiles(dir)
			if err != nil {
				return err
			}
			for _, path := range paths {
				if err := os.Remove(path); err != nil {
					return fmt.Errorf("failed to remove %s: %w", path, err)
				}
			}
			cmd.Printf("Removed %d cache file(s) from %s\n", len(paths), dir)
			return nil
		},
	}
}

// cacheFiles lists selector cache files in dir; a missing dir is just empty.
func cacheFiles(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.selectors.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory: %w", err)
	}
	return paths, nil
}
