package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uw-ictd/haulage/internal/model"
)

// Synchronizer propagates balance and state fields from the legacy store
// into the target after both are populated. It follows the migrator's
// per-record transaction and conflict-tolerance pattern.
type Synchronizer struct {
	Source SourceReader
	Target TargetStore
}

// SyncBalances writes, for each legacy customer row, the quota and bridging
// fields to the subscribers table and the monetary balance and enabled
// fields to the customers table inside one unit of work: they describe one
// conceptually atomic subscriber-state update and must commit or roll back
// together. An integrity error rolls back that row only and the pass
// continues.
//
// This pass writes no history entries; history is reserved for
// balance-affecting operations originating in the new system.
func (s *Synchronizer) SyncBalances(ctx context.Context) (Report, error) {
	var report Report

	err := s.Source.ReadCustomers(ctx, func(row model.CustomerRow) error {
		bridged := row.Bridged == 1
		enabled := row.Enabled == 1

		outcome, err := withRecordTx(ctx, s.Target, isIntegrityConflict, func(uow UnitOfWork) error {
			if err := uow.UpdateSubscriberState(ctx, row.IMSI, row.DataBalance, bridged); err != nil {
				return err
			}
			return uow.UpdateCustomerBalance(ctx, row.IMSI, row.Balance, enabled)
		})
		if err != nil {
			return fmt.Errorf("syncing balances for imsi %s: %w", row.IMSI, err)
		}

		switch outcome {
		case committed:
			slog.Debug("Synced subscriber balances",
				"imsi", row.IMSI, "data_balance", row.DataBalance, "balance", row.Balance,
				"bridged", bridged, "enabled", enabled)
			report.Committed++
		case skippedConflict:
			slog.Warn("Skipping balance sync due to integrity conflict",
				"imsi", row.IMSI, "data_balance", row.DataBalance, "bridged", bridged)
			report.Skipped++
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}
