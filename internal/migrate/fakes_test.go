package migrate

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/shopspring/decimal"

	"github.com/uw-ictd/haulage/internal/model"
)

// fakeSource streams fixed rows, standing in for the legacy store.
type fakeSource struct {
	customers []model.CustomerRow
	staticIPs []model.StaticIPRow
}

func (s *fakeSource) ReadCustomers(ctx context.Context, fn func(model.CustomerRow) error) error {
	for _, row := range s.customers {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) ReadStaticIPs(ctx context.Context, fn func(model.StaticIPRow) error) error {
	for _, row := range s.staticIPs {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

type customerState struct {
	balance decimal.Decimal
	enabled bool
}

// fakeTarget is an in-memory target store with per-record transactional
// staging: writes apply on Commit and vanish on Rollback.
type fakeTarget struct {
	subscribers map[string]model.Subscriber
	staticIPs   map[string]model.StaticIP
	customers   map[string]customerState

	// failWith injects a store-level error for a given imsi.
	failWith map[string]error
	// failCustomerWrite injects an error only on the customers-table
	// write, to exercise the atomicity of multi-write units of work.
	failCustomerWrite map[string]error

	begun      int
	committed  int
	rolledBack int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		subscribers:       make(map[string]model.Subscriber),
		staticIPs:         make(map[string]model.StaticIP),
		customers:         make(map[string]customerState),
		failWith:          make(map[string]error),
		failCustomerWrite: make(map[string]error),
	}
}

func (t *fakeTarget) Begin(ctx context.Context) (UnitOfWork, error) {
	t.begun++
	return &fakeUnitOfWork{target: t}, nil
}

type fakeUnitOfWork struct {
	target  *fakeTarget
	pending []func()
}

func (u *fakeUnitOfWork) InsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	if err := u.target.failWith[sub.IMSI]; err != nil {
		return err
	}
	if _, exists := u.target.subscribers[sub.IMSI]; exists {
		return fmt.Errorf("%w: subscribers_pkey imsi=%s", ErrDuplicateKey, sub.IMSI)
	}
	u.pending = append(u.pending, func() { u.target.subscribers[sub.IMSI] = sub })
	return nil
}

func (u *fakeUnitOfWork) InsertStaticIP(ctx context.Context, ip model.StaticIP) error {
	if err := u.target.failWith[ip.IMSI]; err != nil {
		return err
	}
	if _, exists := u.target.staticIPs[ip.IMSI]; exists {
		return fmt.Errorf("%w: static_ips_pkey imsi=%s", ErrDuplicateKey, ip.IMSI)
	}
	u.pending = append(u.pending, func() { u.target.staticIPs[ip.IMSI] = ip })
	return nil
}

func (u *fakeUnitOfWork) UpdateSubscriberState(ctx context.Context, imsi string, dataBalance int64, bridged bool) error {
	if err := u.target.failWith[imsi]; err != nil {
		return err
	}
	sub, exists := u.target.subscribers[imsi]
	if !exists {
		return fmt.Errorf("%w: no subscriber for imsi=%s", ErrIntegrity, imsi)
	}
	u.pending = append(u.pending, func() {
		sub.DataBalance = dataBalance
		sub.Bridged = bridged
		u.target.subscribers[imsi] = sub
	})
	return nil
}

func (u *fakeUnitOfWork) UpdateCustomerBalance(ctx context.Context, imsi string, balance decimal.Decimal, enabled bool) error {
	if err := u.target.failWith[imsi]; err != nil {
		return err
	}
	if err := u.target.failCustomerWrite[imsi]; err != nil {
		return err
	}
	if _, exists := u.target.subscribers[imsi]; !exists {
		return fmt.Errorf("%w: no customer for imsi=%s", ErrIntegrity, imsi)
	}
	u.pending = append(u.pending, func() {
		u.target.customers[imsi] = customerState{balance: balance, enabled: enabled}
	})
	return nil
}

func (u *fakeUnitOfWork) UpdateStaticIP(ctx context.Context, imsi string, ip netip.Addr) error {
	if err := u.target.failWith[imsi]; err != nil {
		return err
	}
	assignment, exists := u.target.staticIPs[imsi]
	if !exists {
		return fmt.Errorf("%w: no assignment for imsi=%s", ErrIntegrity, imsi)
	}
	u.pending = append(u.pending, func() {
		assignment.IP = ip
		u.target.staticIPs[imsi] = assignment
	})
	return nil
}

func (u *fakeUnitOfWork) Commit(ctx context.Context) error {
	for _, apply := range u.pending {
		apply()
	}
	u.target.committed++
	return nil
}

func (u *fakeUnitOfWork) Rollback(ctx context.Context) error {
	u.pending = nil
	u.target.rolledBack++
	return nil
}

// fakeAssignments adapts the fakeTarget's static ip table to the
// AssignmentReader contract, iterating in a fixed order.
type fakeAssignments struct {
	rows []model.StaticIP
}

func (a *fakeAssignments) ReadStaticIPs(ctx context.Context, fn func(model.StaticIP) error) error {
	for _, row := range a.rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

// fakeSessions is an in-memory live-session document store.
type fakeSessions struct {
	order []string
	addrs map[string]netip.Addr
}

func (s *fakeSessions) ReadSessions(ctx context.Context, fn func(string, netip.Addr) error) error {
	for _, imsi := range s.order {
		if err := fn(imsi, s.addrs[imsi]); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSessions) UpdateSessionAddr(ctx context.Context, imsi string, addr netip.Addr) error {
	s.addrs[imsi] = addr
	return nil
}
