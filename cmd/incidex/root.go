package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/incidex/internal/config"
	"github.com/kailas-cloud/incidex/internal/version"
)

var (
	configPath string
	globalEnv  string
	globalCfg  config.Config
)

var rootCmd = &cobra.Command{
	Use:     "incidex",
	Short:   "Similar-incident search over embedded titles and summaries",
	Version: version.String(),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}

		globalEnv = config.GetEnv()
		var err error
		if configPath != "" {
			globalCfg, err = config.LoadFile(configPath)
		} else {
			globalCfg, err = config.Load(globalEnv)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config/$ENV.yaml)")
	rootCmd.AddCommand(serveCmd, ingestCmd, searchCmd)
}
