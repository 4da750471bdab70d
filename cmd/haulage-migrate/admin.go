package main

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/uw-ictd/haulage/internal/db"
)

var addCmd = &cobra.Command{
	Use:   "add <imsi> <ip>",
	Short: "Add a subscriber and its static address assignment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		imsi := args[0]
		ip, err := netip.ParseAddr(args[1])
		if err != nil {
			return fmt.Errorf("parsing ip %q: %w", args[1], err)
		}

		repo, err := db.NewRepository(cmd.Context(), cfg.PostgresURL())
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.AddSubscriber(cmd.Context(), imsi, ip); err != nil {
			return err
		}
		slog.Info("Added subscriber", "imsi", imsi, "ip", ip)
		return nil
	},
}

var topupCmd = &cobra.Command{
	Use:   "topup <imsi> <bytes>",
	Short: "Add bytes to a subscriber's data balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		imsi := args[0]
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parsing byte amount %q: %w", args[1], err)
		}

		repo, err := db.NewRepository(cmd.Context(), cfg.PostgresURL())
		if err != nil {
			return err
		}
		defer repo.Close()

		newBalance, err := repo.TopUp(cmd.Context(), imsi, amount)
		if err != nil {
			return err
		}
		slog.Info("Topped up subscriber",
			"imsi", imsi, "added", amount, "new_data_balance", newBalance)
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <imsi>",
	Short: "Remove a subscriber from the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		imsi := args[0]

		repo, err := db.NewRepository(cmd.Context(), cfg.PostgresURL())
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.RemoveSubscriber(cmd.Context(), imsi); err != nil {
			return err
		}
		slog.Info("Removed subscriber", "imsi", imsi)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(topupCmd)
	rootCmd.AddCommand(removeCmd)
}
