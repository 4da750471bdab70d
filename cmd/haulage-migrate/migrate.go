package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/uw-ictd/haulage/internal/db"
	"github.com/uw-ictd/haulage/internal/migrate"
	"github.com/uw-ictd/haulage/internal/source"
)

var (
	mysqlDBName    string
	mysqlDBUser    string
	mysqlDBPass    string
	currencyCode   string
	currencySymbol string
	currencyName   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate from the legacy mysql/mariadb system to postgres",
	Long: `Copy every customer and static address assignment from the legacy
database into the new schema. Rows already present in the target are
detected as uniqueness conflicts and skipped, so running migrate twice
produces exactly one target row per distinct source identifier.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repo, err := db.NewRepository(ctx, cfg.PostgresURL())
		if err != nil {
			return err
		}
		defer repo.Close()
		slog.Info("Connected to postgres", "db", cfg.DBName, "user", cfg.DBUser)

		src, err := source.Open(cfg.MySQLDSN(mysqlDBName, mysqlDBUser, mysqlDBPass))
		if err != nil {
			return err
		}
		defer src.Close()
		slog.Info("Connected to mysql/mariadb")

		var namePtr, symbolPtr *string
		if cmd.Flags().Changed("currency-name") {
			namePtr = &currencyName
		}
		if cmd.Flags().Changed("currency-symbol") {
			symbolPtr = &currencySymbol
		}
		currencyID, err := migrate.CanonicalizeCurrency(ctx, repo, currencyCode, namePtr, symbolPtr)
		if err != nil {
			return err
		}
		slog.Info("Resolved currency", "code", currencyCode, "id", currencyID)

		slog.Info("Beginning migration!")
		m := &migrate.Migrator{Source: src, Target: repo}

		subs, err := m.MigrateSubscribers(ctx, currencyID)
		if err != nil {
			return err
		}
		slog.Info("Subscriber migration complete",
			"migrated", subs.Committed, "skipped", subs.Skipped)

		ips, err := m.MigrateStaticIPs(ctx)
		if err != nil {
			return err
		}
		slog.Info("Static ip migration complete",
			"migrated", ips.Committed, "skipped", ips.Skipped)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&mysqlDBName, "mysql-db-name", "",
		"database name for the mysql data source, defaults to the configured value")
	migrateCmd.Flags().StringVar(&mysqlDBUser, "mysql-db-user", "",
		"database user for the mysql data source, defaults to the configured value")
	migrateCmd.Flags().StringVar(&mysqlDBPass, "mysql-db-pass", "",
		"database password for the mysql data source, defaults to the configured value")
	migrateCmd.Flags().StringVar(&currencyCode, "currency-code", "",
		"three-letter code of the currency subscriber balances are held in")
	migrateCmd.Flags().StringVar(&currencySymbol, "currency-symbol", "",
		"display symbol for the currency, must match the stored value if the code exists")
	migrateCmd.Flags().StringVar(&currencyName, "currency-name", "",
		"display name for the currency, must match the stored value if the code exists")
	_ = migrateCmd.MarkFlagRequired("currency-code")
	rootCmd.AddCommand(migrateCmd)
}
