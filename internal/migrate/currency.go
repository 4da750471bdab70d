package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/uw-ictd/haulage/internal/model"
)

// CanonicalizeCurrency resolves a (code, name, symbol) triple to the stable
// identifier of the matching currencies row, inserting the row if the code
// is not yet known.
//
// The code is upper-cased before lookup. When the code already exists, any
// non-nil supplied name or symbol must equal the stored value field by
// field; a mismatch is a ConflictError. The existing-and-matching path
// performs no writes, so repeated calls with the same arguments are
// idempotent. More than one stored row for a code, or an insert whose
// read-back does not return exactly one row, is an InvariantError.
func CanonicalizeCurrency(ctx context.Context, store CurrencyStore, code string, name, symbol *string) (int64, error) {
	code = strings.ToUpper(code)

	rows, err := store.FindByCode(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("looking up currency %s: %w", code, err)
	}

	if len(rows) == 0 {
		if err := store.Insert(ctx, newCurrency(code, name, symbol)); err != nil {
			return 0, fmt.Errorf("inserting currency %s: %w", code, err)
		}
		slog.Info("Inserted new currency", "code", code)

		// An insert immediately followed by a unique-key lookup must be
		// self-consistent; any other outcome means the store is in an
		// impossible state.
		rows, err = store.FindByCode(ctx, code)
		if err != nil {
			return 0, fmt.Errorf("re-reading currency %s: %w", code, err)
		}
		if len(rows) != 1 {
			return 0, &InvariantError{Msg: fmt.Sprintf(
				"read-back of freshly inserted currency %s returned %d rows", code, len(rows))}
		}
		return rows[0].ID, nil
	}

	if len(rows) > 1 {
		return 0, &InvariantError{Msg: fmt.Sprintf(
			"currency code %s matches %d rows despite unique constraint", code, len(rows))}
	}

	existing := rows[0]
	if name != nil && *name != existing.Name {
		return 0, &ConflictError{Code: code, Field: "name", Have: existing.Name, Want: *name}
	}
	if symbol != nil && *symbol != existing.Symbol {
		return 0, &ConflictError{Code: code, Field: "symbol", Have: existing.Symbol, Want: *symbol}
	}
	return existing.ID, nil
}

func newCurrency(code string, name, symbol *string) model.Currency {
	cur := model.Currency{Code: code}
	if name != nil {
		cur.Name = *name
	}
	if symbol != nil {
		cur.Symbol = *symbol
	}
	return cur
}
