package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var initcfgForce bool

var initcfgCmd = &cobra.Command{
	Use:   "initcfg",
	Short: "Write a starter config.yaml with current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if !initcfgForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		// cfg already carries defaults merged with any env overrides.
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}

		if err := os.WriteFile(path, out, 0o644); err != nil {
			return eris.Wrap(err, "write config file")
		}

		zap.L().Info("config file written", zap.String("path", path))
		return nil
	},
}

func init() {
	initcfgCmd.Flags().BoolVar(&initcfgForce, "force", false, "overwrite an existing config.yaml")
	rootCmd.AddCommand(initcfgCmd)
}
