package model

import (
	"net/netip"
	"time"

	"github.com/shopspring/decimal"
)

// Subscriber is a row in the new schema's subscribers table. DataBalance is
// a byte count; Balance is the monetary balance in the subscriber's
// currency.
type Subscriber struct {
	IMSI        string          `json:"imsi" db:"imsi"`
	DataBalance int64           `json:"data_balance" db:"data_balance"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	CurrencyID  int64           `json:"currency" db:"currency"`
	Bridged     bool            `json:"bridged" db:"bridged"`
}

// StaticIP is a one-to-one assignment of a network address to a subscriber.
type StaticIP struct {
	IMSI string     `json:"imsi" db:"imsi"`
	IP   netip.Addr `json:"ip" db:"ip"`
}

// Currency is immutable once inserted; a code denotes exactly one
// (name, symbol) pair for the lifetime of the system.
type Currency struct {
	ID     int64  `json:"id" db:"id"`
	Code   string `json:"code" db:"code"`
	Name   string `json:"name" db:"name"`
	Symbol string `json:"symbol" db:"symbol"`
}

// HistoryEntry is an append-only snapshot of a subscriber's balance state,
// written once per committed balance change.
type HistoryEntry struct {
	Subscriber  int64     `json:"subscriber" db:"subscriber"`
	Time        time.Time `json:"time" db:"time"`
	DataBalance int64     `json:"data_balance" db:"data_balance"`
	Bridged     bool      `json:"bridged" db:"bridged"`
}

// CustomerRow is a row of the legacy customers table as stored: the bridged
// and enabled flags are 0/1 integers, not booleans.
type CustomerRow struct {
	IMSI        string
	DataBalance int64
	Balance     decimal.Decimal
	Bridged     int
	Enabled     int
}

// StaticIPRow is a row of the legacy static_ips table.
type StaticIPRow struct {
	IMSI string
	IP   string
}
