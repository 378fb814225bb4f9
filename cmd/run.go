package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/naturalize-cli/internal/naturalize"
	anthropicpkg "github.com/sells-group/naturalize-cli/pkg/anthropic"
)

var (
	runLimit    int
	runCategory string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one naturalization pass over pending records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		p := naturalize.New(cfg, st, client)

		stats, err := p.Run(ctx, runLimit, runCategory)

		// Stats are printed even for failed runs so partial progress is visible.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(stats); encErr != nil {
			zap.L().Warn("failed to print run stats", zap.Error(encErr))
		}

		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&runLimit, "limit", 500, "maximum pending records to process")
	runCmd.Flags().StringVar(&runCategory, "category", "", "only process records in this category")
	rootCmd.AddCommand(runCmd)
}
