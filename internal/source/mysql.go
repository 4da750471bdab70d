// Package source reads the legacy mysql/mariadb schema. The source store
// is read-only during migration.
package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/uw-ictd/haulage/internal/model"
)

type Store struct {
	db *sql.DB
}

// Open connects to the legacy database. DSN form:
// user:pass@tcp(host:port)/dbname.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql source: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReadCustomers streams the customers table to fn under a single read-only
// transaction, so the whole iteration sees one consistent snapshot of the
// source while the many per-record target transactions come and go.
func (s *Store) ReadCustomers(ctx context.Context, fn func(model.CustomerRow) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("beginning source snapshot: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		"SELECT imsi, data_balance, balance, bridged, enabled FROM customers")
	if err != nil {
		return fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.CustomerRow
		if err := rows.Scan(&row.IMSI, &row.DataBalance, &row.Balance, &row.Bridged, &row.Enabled); err != nil {
			return fmt.Errorf("scanning customer row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading customer rows: %w", err)
	}
	return tx.Commit()
}

// ReadStaticIPs streams the static_ips table to fn under a single read-only
// transaction.
func (s *Store) ReadStaticIPs(ctx context.Context, fn func(model.StaticIPRow) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("beginning source snapshot: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT imsi, ip FROM static_ips")
	if err != nil {
		return fmt.Errorf("querying static_ips: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row model.StaticIPRow
		if err := rows.Scan(&row.IMSI, &row.IP); err != nil {
			return fmt.Errorf("scanning static ip row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading static ip rows: %w", err)
	}
	return tx.Commit()
}
