package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/uw-ictd/haulage/internal/model"
)

// Migrator copies subscriber and static address rows from the legacy store
// into the target store, one unit of work per record. Records already
// present in the target surface as duplicate-key conflicts and are skipped,
// which makes a full re-run produce exactly the rows missing from the
// target and nothing else.
type Migrator struct {
	Source SourceReader
	Target TargetStore
}

// MigrateSubscribers streams the legacy customers table and inserts one
// subscribers row per customer, attaching currencyID and converting the
// 0/1 bridged flag to a boolean. A duplicate identifier rolls back that
// record only and the batch continues; any other store error is fatal.
func (m *Migrator) MigrateSubscribers(ctx context.Context, currencyID int64) (Report, error) {
	var report Report

	err := m.Source.ReadCustomers(ctx, func(row model.CustomerRow) error {
		sub := model.Subscriber{
			IMSI:        row.IMSI,
			DataBalance: row.DataBalance,
			Balance:     row.Balance,
			CurrencyID:  currencyID,
			Bridged:     row.Bridged == 1,
		}

		outcome, err := withRecordTx(ctx, m.Target, isDuplicate, func(uow UnitOfWork) error {
			return uow.InsertSubscriber(ctx, sub)
		})
		if err != nil {
			return fmt.Errorf("migrating subscriber %s: %w", sub.IMSI, err)
		}

		switch outcome {
		case committed:
			slog.Debug("Migrated customer row to subscriber",
				"imsi", sub.IMSI, "data_balance", sub.DataBalance, "bridged", sub.Bridged)
			report.Committed++
		case skippedConflict:
			slog.Warn("Skipping subscriber insert due to uniqueness conflict",
				"imsi", sub.IMSI, "data_balance", sub.DataBalance, "bridged", sub.Bridged)
			report.Skipped++
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

// MigrateStaticIPs copies the legacy static_ips table with the same
// per-record transaction and skip-on-conflict policy, independently of the
// subscriber migration.
func (m *Migrator) MigrateStaticIPs(ctx context.Context) (Report, error) {
	var report Report

	err := m.Source.ReadStaticIPs(ctx, func(row model.StaticIPRow) error {
		addr, err := netip.ParseAddr(row.IP)
		if err != nil {
			return fmt.Errorf("static ip for imsi %s: parsing %q: %w", row.IMSI, row.IP, err)
		}
		assignment := model.StaticIP{IMSI: row.IMSI, IP: addr}

		outcome, err := withRecordTx(ctx, m.Target, isDuplicate, func(uow UnitOfWork) error {
			return uow.InsertStaticIP(ctx, assignment)
		})
		if err != nil {
			return fmt.Errorf("migrating static ip for imsi %s: %w", row.IMSI, err)
		}

		switch outcome {
		case committed:
			slog.Debug("Migrated static ip", "imsi", row.IMSI, "ip", row.IP)
			report.Committed++
		case skippedConflict:
			slog.Warn("Skipping static ip insert due to uniqueness conflict",
				"imsi", row.IMSI, "ip", row.IP)
			report.Skipped++
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

// recordOutcome is the terminal state of one record's unit of work.
type recordOutcome int

const (
	committed recordOutcome = iota
	skippedConflict
)

// isDuplicate marks only uniqueness violations recoverable: the identifier
// is already in the target.
func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// isIntegrityConflict also tolerates other integrity violations, such as a
// foreign key to a subscriber absent from the target.
func isIntegrityConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrIntegrity)
}

// withRecordTx runs fn inside a unit of work scoped to a single record and
// guarantees rollback on every exit path. When fn fails with an error that
// recoverable reports true for, the record is rolled back and reported as
// skippedConflict; everything else propagates after rollback and aborts
// the run.
func withRecordTx(ctx context.Context, target TargetStore, recoverable func(error) bool, fn func(UnitOfWork) error) (recordOutcome, error) {
	uow, err := target.Begin(ctx)
	if err != nil {
		return skippedConflict, fmt.Errorf("beginning unit of work: %w", err)
	}

	if err := fn(uow); err != nil {
		rollbackErr := uow.Rollback(ctx)
		if recoverable(err) {
			if rollbackErr != nil {
				return skippedConflict, fmt.Errorf("rolling back conflicting record: %w", rollbackErr)
			}
			return skippedConflict, nil
		}
		return skippedConflict, err
	}

	if err := uow.Commit(ctx); err != nil {
		return skippedConflict, fmt.Errorf("committing unit of work: %w", err)
	}
	return committed, nil
}
