package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Name cache maintenance",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show name cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := st.CacheStats(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

// cachePurgeIdentityCmd removes identity fallback entries (natural name equal
// to the original) so those names get a fresh resolution attempt on the next
// run. The pipeline itself never deletes cache rows; this is operator work.
var cachePurgeIdentityCmd = &cobra.Command{
	Use:   "purge-identity",
	Short: "Delete identity fallback entries so they are re-attempted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.PurgeIdentityEntries(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("identity cache entries purged", zap.Int64("deleted", n))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeIdentityCmd)
	rootCmd.AddCommand(cacheCmd)
}
