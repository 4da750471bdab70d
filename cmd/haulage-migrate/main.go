package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/uw-ictd/haulage/internal/config"
	"github.com/uw-ictd/haulage/internal/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "haulage-migrate",
	Short: "Move subscriber account state from the legacy schema to the new one",
	Long: `haulage-migrate copies subscriber accounts and static address
assignments from the legacy mysql/mariadb schema into the new postgres
schema, recomputes static address assignments when the address plan
changes, and reconciles balances between the two stores.

Every record is written under its own transaction: a record that already
exists in the target is skipped with a warning and the run continues, so
the tool can be re-run safely after a partial failure.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger.InitLogger(cfg.LogFile, cfg.LogLevel, cfg.LogMaxSize, cfg.LogMaxBackups, cfg.LogMaxAge)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		"/etc/haulage/config.yml", "location of a haulage config file (version 1)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
