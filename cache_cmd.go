package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the audio cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show how much audio is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openCache()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck

			printCacheStats(cmd.OutOrStdout(), cfg.Cache.Dir, m.Stats())
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openCache()
			if err != nil {
				return err
			}
			defer m.Close() //nolint:errcheck

			before := m.Stats().Disk
			if err := m.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d clips (%s) from %s\n",
				before.Items, humanize.Bytes(uint64(before.Size)), cfg.Cache.Dir) //nolint:gosec
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

func openCache() (*cache.Manager, error) {
	mc := cfg.Cache.ManagerConfig()
	// Cleanup belongs to reading sessions.
	mc.CleanupInterval = 0
	m, err := cache.NewManager(mc)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return m, nil
}

func printCacheStats(w io.Writer, dir string, s cache.ManagerStats) {
	fmt.Fprintf(w, "%s %s\n", keyword("Directory:"), dir)
	fmt.Fprintf(w, "%s %d clips, %s of %s\n", keyword("Disk:     "),
		s.Disk.Items, humanize.Bytes(uint64(s.Disk.Size)), humanize.Bytes(uint64(s.Disk.Capacity))) //nolint:gosec
	fmt.Fprintf(w, "%s %s per session\n", keyword("Memory:   "), humanize.Bytes(uint64(s.Memory.Capacity))) //nolint:gosec
}
