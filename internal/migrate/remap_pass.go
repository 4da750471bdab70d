package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"

	"github.com/uw-ictd/haulage/internal/model"
	"github.com/uw-ictd/haulage/internal/remap"
)

// Remapper recomputes static address assignments for a new address block,
// in the relational target store and in the live-session document store.
// The two stores have no cross-store transaction; each record logs a
// correlation id on both writes so a divergence left by an interruption
// can be reconciled from the logs.
type Remapper struct {
	Stem  string
	Block netip.Prefix
}

// RemapStaticIPs rewrites every static address assignment in the target to
// the address derived from its subscriber identifier, one unit of work per
// record. An integrity conflict skips the record; a ValidationError or
// OutOfRangeError aborts the pass, since an address plan that cannot hold
// an existing subscriber needs operator attention rather than a silent
// skip.
func (r *Remapper) RemapStaticIPs(ctx context.Context, assignments AssignmentReader, target TargetStore) (Report, error) {
	var report Report

	err := assignments.ReadStaticIPs(ctx, func(row model.StaticIP) error {
		newAddr, err := remap.Remap(r.Stem, row.IMSI, r.Block)
		if err != nil {
			return fmt.Errorf("remapping static ip for imsi %s: %w", row.IMSI, err)
		}

		correlationID := uuid.NewString()
		outcome, err := withRecordTx(ctx, target, isIntegrityConflict, func(uow UnitOfWork) error {
			return uow.UpdateStaticIP(ctx, row.IMSI, newAddr)
		})
		if err != nil {
			return fmt.Errorf("updating static ip for imsi %s: %w", row.IMSI, err)
		}

		switch outcome {
		case committed:
			slog.Debug("Remapped static ip",
				"imsi", row.IMSI, "old_ip", row.IP, "new_ip", newAddr,
				"correlation_id", correlationID)
			report.Committed++
		case skippedConflict:
			slog.Warn("Skipping static ip remap due to integrity conflict",
				"imsi", row.IMSI, "new_ip", newAddr, "correlation_id", correlationID)
			report.Skipped++
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

// RemapSessions rewrites the nested session address of every live-session
// document, matched by subscriber identifier. Documents are updated in
// place and never created or deleted here.
func (r *Remapper) RemapSessions(ctx context.Context, sessions SessionStore) (Report, error) {
	var report Report

	err := sessions.ReadSessions(ctx, func(imsi string, addr netip.Addr) error {
		newAddr, err := remap.Remap(r.Stem, imsi, r.Block)
		if err != nil {
			return fmt.Errorf("remapping session address for imsi %s: %w", imsi, err)
		}

		correlationID := uuid.NewString()
		if err := sessions.UpdateSessionAddr(ctx, imsi, newAddr); err != nil {
			return fmt.Errorf("updating session address for imsi %s: %w", imsi, err)
		}
		slog.Debug("Remapped session address",
			"imsi", imsi, "old_addr", addr, "new_addr", newAddr,
			"correlation_id", correlationID)
		report.Committed++
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}
