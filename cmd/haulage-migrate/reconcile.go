package main

import (
	"log/slog"
	"net/netip"

	"github.com/spf13/cobra"

	"github.com/uw-ictd/haulage/internal/db"
	"github.com/uw-ictd/haulage/internal/docstore"
	"github.com/uw-ictd/haulage/internal/migrate"
	"github.com/uw-ictd/haulage/internal/source"
)

var (
	remapIPs     bool
	syncBalances bool
	imsiStem     string
	addressBlock string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remap static addresses and reconcile balances after migration",
	Long: `Recompute static address assignments for the configured address
block (in postgres and in the live-session document store) and propagate
balance changes from the legacy database, selected by the --remap-ips and
--sync-balances switches.

The relational and document stores are updated independently; there is no
cross-store transaction. Each record logs a correlation_id on both writes
so an interruption between the two can be reconciled from the logs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if imsiStem == "" {
			imsiStem = cfg.IMSIStem
		}
		if addressBlock == "" {
			addressBlock = cfg.AddressBlock
		}

		repo, err := db.NewRepository(ctx, cfg.PostgresURL())
		if err != nil {
			return err
		}
		defer repo.Close()
		slog.Info("Connected to postgres", "db", cfg.DBName, "user", cfg.DBUser)

		if remapIPs {
			block, err := netip.ParsePrefix(addressBlock)
			if err != nil {
				return err
			}
			remapper := &migrate.Remapper{Stem: imsiStem, Block: block}

			slog.Info("Beginning postgres remapping!", "stem", imsiStem, "block", block)
			report, err := remapper.RemapStaticIPs(ctx, repo, repo)
			if err != nil {
				return err
			}
			slog.Info("Postgres remapping complete",
				"remapped", report.Committed, "skipped", report.Skipped)

			sessions, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
			if err != nil {
				return err
			}
			defer sessions.Close(ctx)
			slog.Info("Connected to document store", "uri", cfg.MongoURI)

			slog.Info("Beginning session remapping!")
			report, err = remapper.RemapSessions(ctx, sessions)
			if err != nil {
				return err
			}
			slog.Info("Session remapping complete", "remapped", report.Committed)
		}

		if syncBalances {
			src, err := source.Open(cfg.MySQLDSN(mysqlDBName, mysqlDBUser, mysqlDBPass))
			if err != nil {
				return err
			}
			defer src.Close()
			slog.Info("Connected to mysql/mariadb")

			slog.Info("Beginning balance sync!")
			s := &migrate.Synchronizer{Source: src, Target: repo}
			report, err := s.SyncBalances(ctx)
			if err != nil {
				return err
			}
			slog.Info("Balance sync complete",
				"synced", report.Committed, "skipped", report.Skipped)
		}
		return nil
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&remapIPs, "remap-ips", false,
		"remap static address assignments to the configured address block")
	reconcileCmd.Flags().BoolVar(&syncBalances, "sync-balances", false,
		"propagate balance and state changes from the legacy database")
	reconcileCmd.Flags().StringVar(&imsiStem, "imsi-stem", "",
		"imsi prefix stripped before parsing the serial, defaults to the configured value")
	reconcileCmd.Flags().StringVar(&addressBlock, "address-block", "",
		"target address block in CIDR form, defaults to the configured value")
	reconcileCmd.Flags().StringVar(&mysqlDBName, "mysql-db-name", "",
		"database name for the mysql data source, defaults to the configured value")
	reconcileCmd.Flags().StringVar(&mysqlDBUser, "mysql-db-user", "",
		"database user for the mysql data source, defaults to the configured value")
	reconcileCmd.Flags().StringVar(&mysqlDBPass, "mysql-db-pass", "",
		"database password for the mysql data source, defaults to the configured value")
	rootCmd.AddCommand(reconcileCmd)
}
