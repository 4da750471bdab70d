// Package db is the Postgres target store for the new schema. It owns the
// canonical post-migration state.
package db

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/uw-ictd/haulage/internal/migrate"
	"github.com/uw-ictd/haulage/internal/model"
)

type Repository struct {
	Pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, dbURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return &Repository{Pool: pool}, nil
}

func (r *Repository) Close() {
	r.Pool.Close()
}

// classify maps Postgres SQLSTATEs onto the engine's conflict sentinels.
// 23505 is unique_violation; the rest of class 23 covers the other
// integrity constraints (foreign key, not null, check).
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %s", migrate.ErrDuplicateKey, pgErr.Message)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return fmt.Errorf("%w: %s", migrate.ErrIntegrity, pgErr.Message)
		}
	}
	return err
}

// Begin opens a unit of work scoped to a single record.
func (r *Repository) Begin(ctx context.Context) (migrate.UnitOfWork, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx}, nil
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) InsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	query := `
		INSERT INTO subscribers (imsi, data_balance, balance, currency, bridged)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := u.tx.Exec(ctx, query, sub.IMSI, sub.DataBalance, sub.Balance, sub.CurrencyID, sub.Bridged)
	return classify(err)
}

func (u *unitOfWork) InsertStaticIP(ctx context.Context, ip model.StaticIP) error {
	query := `
		INSERT INTO static_ips (imsi, ip)
		VALUES ($1, $2)
	`
	_, err := u.tx.Exec(ctx, query, ip.IMSI, ip.IP.String())
	return classify(err)
}

func (u *unitOfWork) UpdateSubscriberState(ctx context.Context, imsi string, dataBalance int64, bridged bool) error {
	query := `
		UPDATE subscribers
		SET data_balance = $2, bridged = $3
		WHERE imsi = $1
	`
	_, err := u.tx.Exec(ctx, query, imsi, dataBalance, bridged)
	return classify(err)
}

func (u *unitOfWork) UpdateCustomerBalance(ctx context.Context, imsi string, balance decimal.Decimal, enabled bool) error {
	query := `
		UPDATE customers
		SET balance = $2, enabled = $3
		WHERE imsi = $1
	`
	_, err := u.tx.Exec(ctx, query, imsi, balance, enabled)
	return classify(err)
}

func (u *unitOfWork) UpdateStaticIP(ctx context.Context, imsi string, ip netip.Addr) error {
	query := `
		UPDATE static_ips
		SET ip = $2
		WHERE imsi = $1
	`
	_, err := u.tx.Exec(ctx, query, imsi, ip.String())
	return classify(err)
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// FindByCode returns every currencies row matching code. The unique
// constraint on code should make the result at most one row; the resolver
// treats anything else as an invariant violation.
func (r *Repository) FindByCode(ctx context.Context, code string) ([]model.Currency, error) {
	query := `
		SELECT id, code, name, symbol
		FROM currencies
		WHERE code = $1
	`
	rows, err := r.Pool.Query(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []model.Currency
	for rows.Next() {
		var cur model.Currency
		if err := rows.Scan(&cur.ID, &cur.Code, &cur.Name, &cur.Symbol); err != nil {
			return nil, err
		}
		currencies = append(currencies, cur)
	}
	return currencies, rows.Err()
}

func (r *Repository) Insert(ctx context.Context, cur model.Currency) error {
	query := `
		INSERT INTO currencies (code, name, symbol)
		VALUES ($1, $2, $3)
	`
	_, err := r.Pool.Exec(ctx, query, cur.Code, cur.Name, cur.Symbol)
	return classify(err)
}

// ReadStaticIPs streams the static address assignments currently in the
// target, in identifier order.
func (r *Repository) ReadStaticIPs(ctx context.Context, fn func(model.StaticIP) error) error {
	query := `
		SELECT imsi, ip
		FROM static_ips
		ORDER BY imsi ASC
	`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			imsi     string
			ipString string
		)
		if err := rows.Scan(&imsi, &ipString); err != nil {
			return err
		}
		addr, err := netip.ParseAddr(ipString)
		if err != nil {
			return fmt.Errorf("static ip for imsi %s: parsing %q: %w", imsi, ipString, err)
		}
		if err := fn(model.StaticIP{IMSI: imsi, IP: addr}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AddSubscriber inserts a subscriber and its static address assignment in
// one transaction.
func (r *Repository) AddSubscriber(ctx context.Context, imsi string, ip netip.Addr) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO subscribers (imsi) VALUES ($1)`, imsi); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO static_ips (imsi, ip) VALUES ($1, $2)`, imsi, ip.String()); err != nil {
		return classify(err)
	}
	return tx.Commit(ctx)
}

// RemoveSubscriber deletes a subscriber's address assignment, history and
// account in one transaction. This is an administrative operation; the
// migration passes never delete.
func (r *Repository) RemoveSubscriber(ctx context.Context, imsi string) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM static_ips WHERE imsi = $1`, imsi); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM subscriber_history
		WHERE subscriber IN (
			SELECT internal_uid
			FROM subscribers
			WHERE imsi = $1
		)
	`, imsi); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM subscribers WHERE imsi = $1`, imsi); err != nil {
		return classify(err)
	}
	return tx.Commit(ctx)
}

// TopUp adds amount bytes to a subscriber's data balance and appends a
// history entry in the same transaction. The update must affect exactly
// one row; anything else means the store no longer satisfies the unique
// identifier assumption and the operation fails with an InvariantError.
func (r *Repository) TopUp(ctx context.Context, imsi string, amount int64) (int64, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var oldBalance int64
	err = tx.QueryRow(ctx, `
		SELECT data_balance
		FROM subscribers
		WHERE imsi = $1
		FOR UPDATE
	`, imsi).Scan(&oldBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("imsi %s does not exist", imsi)
	}
	if err != nil {
		return 0, err
	}

	rows, err := tx.Query(ctx, `
		UPDATE subscribers
		SET data_balance = $2
		WHERE imsi = $1
		RETURNING internal_uid, data_balance, bridged
	`, imsi, oldBalance+amount)
	if err != nil {
		return 0, classify(err)
	}

	var updated []model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		if err := rows.Scan(&entry.Subscriber, &entry.DataBalance, &entry.Bridged); err != nil {
			rows.Close()
			return 0, err
		}
		updated = append(updated, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(updated) != 1 {
		return 0, &migrate.InvariantError{Msg: fmt.Sprintf(
			"top-up for imsi %s updated %d rows", imsi, len(updated))}
	}

	snapshot := updated[0]
	if _, err := tx.Exec(ctx, `
		INSERT INTO subscriber_history (subscriber, time, data_balance, bridged)
		VALUES ($1, CURRENT_TIMESTAMP, $2, $3)
	`, snapshot.Subscriber, snapshot.DataBalance, snapshot.Bridged); err != nil {
		return 0, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return snapshot.DataBalance, nil
}
