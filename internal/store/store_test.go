package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "document.json"), testLogger())
	require.NoError(t, err)
	return s
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	s := openTemp(t)
	for _, table := range Tables() {
		rows, err := s.List(context.Background(), table)
		require.NoError(t, err)
		require.Empty(t, rows)
	}
}

func TestCreateAssignsID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	row, err := s.Create(ctx, TableCustomers, Row{"Müşteri Adı": "Acme"})
	require.NoError(t, err)
	require.NotEmpty(t, row.ID())

	got, err := s.Get(ctx, TableCustomers, row.ID())
	require.NoError(t, err)
	require.Equal(t, "Acme", got.String("Müşteri Adı"))
}

func TestCreatePreservesProvidedID(t *testing.T) {
	s := openTemp(t)
	row, err := s.Create(context.Background(), TableCustomers, Row{FieldID: "fixed", "Müşteri Adı": "Acme"})
	require.NoError(t, err)
	require.Equal(t, "fixed", row.ID())
}

func TestUpdateMergesPatchAndKeepsID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	row, err := s.Create(ctx, TableProformas, Row{"Proforma No": "PF-100", "Durum": "Beklemede"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, TableProformas, row.ID(), Row{"Durum": "İptal", FieldID: "ignored"})
	require.NoError(t, err)
	require.Equal(t, row.ID(), updated.ID())
	require.Equal(t, "İptal", updated.String("Durum"))
	require.Equal(t, "PF-100", updated.String("Proforma No"))
}

func TestDeleteRemovesRow(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	row, err := s.Create(ctx, TableOrders, Row{"Proforma No": "PF-1"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, TableOrders, row.ID()))

	_, err = s.Get(ctx, TableOrders, row.ID())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownTable(t *testing.T) {
	s := openTemp(t)
	_, err := s.List(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestExclusiveFailureLeavesNoPartialWrites(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.Create(ctx, TableCustomers, Row{"Müşteri Adı": "Acme"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Exclusive(ctx, func(tx *Tx) error {
		if _, err := tx.Create(TableCustomers, Row{"Müşteri Adı": "Globex"}); err != nil {
			return err
		}
		if _, err := tx.Create(TableQuotes, Row{"Teklif No": "T-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	customers, err := s.List(ctx, TableCustomers)
	require.NoError(t, err)
	require.Len(t, customers, 1)

	quotes, err := s.List(ctx, TableQuotes)
	require.NoError(t, err)
	require.Empty(t, quotes)
}

func TestExclusiveReadsObserveStagedWrites(t *testing.T) {
	s := openTemp(t)
	err := s.Exclusive(context.Background(), func(tx *Tx) error {
		created, err := tx.Create(TableInvoices, Row{"Fatura No": "F-1"})
		if err != nil {
			return err
		}
		got, err := tx.Get(TableInvoices, created.ID())
		if err != nil {
			return err
		}
		require.Equal(t, "F-1", got.String("Fatura No"))
		return nil
	})
	require.NoError(t, err)
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "document.json")

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	row, err := s.Create(context.Background(), TableCustomers, Row{"Müşteri Adı": "Acme"})
	require.NoError(t, err)

	reopened, err := Open(path, testLogger())
	require.NoError(t, err)
	got, err := reopened.Get(context.Background(), TableCustomers, row.ID())
	require.NoError(t, err)
	require.Equal(t, "Acme", got.String("Müşteri Adı"))
}

func TestOpenFillsMissingTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "document.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"customers":[{"ID":"c1"}]}`), 0o644))

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	rows, err := s.List(context.Background(), TableProformas)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestReadsReturnClones(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	row, err := s.Create(ctx, TableCustomers, Row{"Müşteri Adı": "Acme"})
	require.NoError(t, err)

	got, err := s.Get(ctx, TableCustomers, row.ID())
	require.NoError(t, err)
	got["Müşteri Adı"] = "mutated"

	again, err := s.Get(ctx, TableCustomers, row.ID())
	require.NoError(t, err)
	require.Equal(t, "Acme", again.String("Müşteri Adı"))
}
