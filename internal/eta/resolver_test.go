package eta

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(filepath.Join(t.TempDir(), "document.json"), logger)
	require.NoError(t, err)
	return s
}

func seedProforma(t *testing.T, s *store.Store, customer, proformaNo string) store.Row {
	t.Helper()
	row, err := s.Create(context.Background(), store.TableProformas, store.Row{
		FieldCustomerName: customer,
		FieldProformaNo:   proformaNo,
	})
	require.NoError(t, err)
	return row
}

func TestUpsertCreatesRecordAndStampsProforma(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	ctx := context.Background()
	pf := seedProforma(t, s, "Acme", "PF-100")

	rec, err := r.Upsert(ctx, UpsertParams{
		CustomerName: "Acme",
		ProformaNo:   "PF-100",
		ShipDate:     "2026-03-01",
		ETADate:      "2026-03-15",
		Note:         "konteyner 1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "2026-03-15", rec.ETADate)

	row, err := s.Get(ctx, store.TableProformas, pf.ID())
	require.NoError(t, err)
	require.Equal(t, "2026-03-01", row.String(FieldShipDate))
}

func TestUpsertIsIdempotentPerKey(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	ctx := context.Background()
	seedProforma(t, s, "Acme", "PF-100")

	p := UpsertParams{CustomerName: "Acme", ProformaNo: "PF-100", ShipDate: "2026-03-01"}
	first, err := r.Upsert(ctx, p)
	require.NoError(t, err)

	p.ETADate = "2026-03-20"
	second, err := r.Upsert(ctx, p)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	records, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "2026-03-20", records[0].ETADate)
}

func TestUpsertDistinguishesCustomersWithSameProformaNo(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	ctx := context.Background()
	seedProforma(t, s, "Acme", "PF-100")
	seedProforma(t, s, "Globex", "PF-100")

	_, err := r.Upsert(ctx, UpsertParams{CustomerName: "Acme", ProformaNo: "PF-100", ShipDate: "2026-03-01"})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, UpsertParams{CustomerName: "Globex", ProformaNo: "PF-100", ShipDate: "2026-03-02"})
	require.NoError(t, err)

	records, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestUpsertRequiresOwningProforma(t *testing.T) {
	r := NewResolver(testStore(t))
	_, err := r.Upsert(context.Background(), UpsertParams{CustomerName: "Acme", ProformaNo: "PF-404"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertDefaultsShipDateToToday(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	seedProforma(t, s, "Acme", "PF-100")

	rec, err := r.Upsert(context.Background(), UpsertParams{CustomerName: "Acme", ProformaNo: "PF-100"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ShipDate)
}

func TestDeleteKeyAbsentIsNoop(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	err := s.Exclusive(context.Background(), func(tx *store.Tx) error {
		return r.DeleteKeyTx(tx, Key{CustomerName: "Acme", ProformaNo: "PF-100"})
	})
	require.NoError(t, err)
}

func TestDeleteKeyRemovesRecord(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	ctx := context.Background()
	seedProforma(t, s, "Acme", "PF-100")

	_, err := r.Upsert(ctx, UpsertParams{CustomerName: "Acme", ProformaNo: "PF-100", ShipDate: "2026-03-01"})
	require.NoError(t, err)

	err = s.Exclusive(ctx, func(tx *store.Tx) error {
		return r.DeleteKeyTx(tx, Key{CustomerName: "Acme", ProformaNo: "PF-100"})
	})
	require.NoError(t, err)

	records, err := r.List(ctx)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestByProforma(t *testing.T) {
	s := testStore(t)
	r := NewResolver(s)
	ctx := context.Background()
	seedProforma(t, s, "Acme", "PF-100")
	seedProforma(t, s, "Acme", "PF-200")

	_, err := r.Upsert(ctx, UpsertParams{CustomerName: "Acme", ProformaNo: "PF-100", ShipDate: "2026-03-01"})
	require.NoError(t, err)
	_, err = r.Upsert(ctx, UpsertParams{CustomerName: "Acme", ProformaNo: "PF-200", ShipDate: "2026-03-02"})
	require.NoError(t, err)

	records, err := r.ByProforma(ctx, "PF-200")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "PF-200", records[0].ProformaNo)
}
