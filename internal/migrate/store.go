// Package migrate moves subscriber account state from the legacy store
// into the new schema and reconciles the two afterwards. Every record is
// written under its own unit of work, so one conflicting record never
// aborts a batch and an interrupted run leaves the target in a valid
// partial state.
package migrate

import (
	"context"
	"net/netip"

	"github.com/shopspring/decimal"

	"github.com/uw-ictd/haulage/internal/model"
)

// SourceReader streams rows from the legacy store. Implementations must
// read each sequence under a single snapshot transaction so the iteration
// sees one consistent view of the source, and must stop and return the
// first error produced by fn.
type SourceReader interface {
	ReadCustomers(ctx context.Context, fn func(model.CustomerRow) error) error
	ReadStaticIPs(ctx context.Context, fn func(model.StaticIPRow) error) error
}

// UnitOfWork is a transaction scoped to a single record. Either Commit or
// Rollback must be called on every path out of the record's processing.
// Write errors are classified with ErrDuplicateKey and ErrIntegrity.
type UnitOfWork interface {
	InsertSubscriber(ctx context.Context, sub model.Subscriber) error
	InsertStaticIP(ctx context.Context, ip model.StaticIP) error
	UpdateSubscriberState(ctx context.Context, imsi string, dataBalance int64, bridged bool) error
	UpdateCustomerBalance(ctx context.Context, imsi string, balance decimal.Decimal, enabled bool) error
	UpdateStaticIP(ctx context.Context, imsi string, ip netip.Addr) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TargetStore owns the canonical post-migration state.
type TargetStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// CurrencyStore is the slice of the target store the currency resolver
// needs. FindByCode returns every row matching the code; the unique
// constraint on code makes more than one row an invariant violation.
type CurrencyStore interface {
	FindByCode(ctx context.Context, code string) ([]model.Currency, error)
	Insert(ctx context.Context, cur model.Currency) error
}

// AssignmentReader lists the static address assignments currently in the
// target store, in identifier order.
type AssignmentReader interface {
	ReadStaticIPs(ctx context.Context, fn func(model.StaticIP) error) error
}

// SessionStore is the live-session document store. Documents are owned by
// the live-session subsystem; the remap pass only rewrites the nested
// session address in place, matched by subscriber identifier.
type SessionStore interface {
	ReadSessions(ctx context.Context, fn func(imsi string, addr netip.Addr) error) error
	UpdateSessionAddr(ctx context.Context, imsi string, addr netip.Addr) error
}

// Report summarizes one pass. Committed counts records whose unit of work
// committed; Skipped counts records rolled back on an expected conflict.
type Report struct {
	Committed int
	Skipped   int
}
