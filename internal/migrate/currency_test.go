package migrate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uw-ictd/haulage/internal/model"
)

// fakeCurrencyStore keeps currency rows in memory and counts writes.
// dropInserts simulates a store that loses the insert, to exercise the
// read-back invariant.
type fakeCurrencyStore struct {
	rows        []model.Currency
	nextID      int64
	inserts     int
	dropInserts bool
}

func (s *fakeCurrencyStore) FindByCode(ctx context.Context, code string) ([]model.Currency, error) {
	var out []model.Currency
	for _, row := range s.rows {
		if row.Code == code {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeCurrencyStore) Insert(ctx context.Context, cur model.Currency) error {
	s.inserts++
	if s.dropInserts {
		return nil
	}
	s.nextID++
	cur.ID = s.nextID
	s.rows = append(s.rows, cur)
	return nil
}

func strPtr(s string) *string { return &s }

func TestCanonicalizeInsertsUnknownCode(t *testing.T) {
	store := &fakeCurrencyStore{}

	id, err := CanonicalizeCurrency(context.Background(), store, "idr", strPtr("Rupiah"), strPtr("Rp"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, store.inserts)

	require.Len(t, store.rows, 1)
	assert.Equal(t, "IDR", store.rows[0].Code, "code is upper-cased before storage")
	assert.Equal(t, "Rupiah", store.rows[0].Name)
	assert.Equal(t, "Rp", store.rows[0].Symbol)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	store := &fakeCurrencyStore{}

	first, err := CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Rupiah"), strPtr("Rp"))
	require.NoError(t, err)

	second, err := CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Rupiah"), strPtr("Rp"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.inserts, "the second call must perform no additional write")
}

func TestCanonicalizeMatchingSubsetOfFields(t *testing.T) {
	store := &fakeCurrencyStore{}

	first, err := CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Rupiah"), strPtr("Rp"))
	require.NoError(t, err)

	// Absent fields are not compared.
	second, err := CanonicalizeCurrency(context.Background(), store, "IDR", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCanonicalizeConflictingMetadata(t *testing.T) {
	store := &fakeCurrencyStore{}

	_, err := CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Rupiah"), strPtr("Rp"))
	require.NoError(t, err)

	_, err = CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Dollar"), nil)
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "name", cerr.Field)

	_, err = CanonicalizeCurrency(context.Background(), store, "IDR", nil, strPtr("$"))
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "symbol", cerr.Field)
}

func TestCanonicalizeDuplicateRowsIsInvariantViolation(t *testing.T) {
	store := &fakeCurrencyStore{rows: []model.Currency{
		{ID: 1, Code: "IDR", Name: "Rupiah", Symbol: "Rp"},
		{ID: 2, Code: "IDR", Name: "Rupiah", Symbol: "Rp"},
	}}

	_, err := CanonicalizeCurrency(context.Background(), store, "IDR", nil, nil)
	var ierr *InvariantError
	require.ErrorAs(t, err, &ierr)
	assert.True(t, strings.Contains(ierr.Msg, "unique constraint"))
}

func TestCanonicalizeFailedReadBackIsInvariantViolation(t *testing.T) {
	store := &fakeCurrencyStore{dropInserts: true}

	_, err := CanonicalizeCurrency(context.Background(), store, "IDR", strPtr("Rupiah"), strPtr("Rp"))
	var ierr *InvariantError
	require.ErrorAs(t, err, &ierr)
}
