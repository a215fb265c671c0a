package recon

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "document.json"), testLogger())
	require.NoError(t, err)
	return s
}

func seedInvoice(t *testing.T, s *store.Store, row store.Row) store.Row {
	t.Helper()
	created, err := s.Create(context.Background(), store.TableInvoices, row)
	require.NoError(t, err)
	return created
}

func TestServiceApplyPaymentPersists(t *testing.T) {
	s := testStore(t)
	svc := NewService(s, nil, testLogger())
	ctx := context.Background()

	inv := seedInvoice(t, s, store.Row{
		FieldCustomerName: "Acme",
		FieldProformaNo:   "PF-100",
		FieldTotal:        200.0,
		FieldPaid:         0.0,
		FieldPaidFlag:     false,
	})

	got, err := svc.ApplyPayment(ctx, inv.ID(), 75.5, false)
	require.NoError(t, err)
	require.Equal(t, 75.5, got.Paid)
	require.False(t, got.PaidFlag)

	row, err := s.Get(ctx, store.TableInvoices, inv.ID())
	require.NoError(t, err)
	require.Equal(t, 75.5, AmountOrZero(row[FieldPaid]))
	require.False(t, NormalizePaidFlag(row[FieldPaidFlag]))
}

func TestServiceApplyPaymentMissingInvoice(t *testing.T) {
	svc := NewService(testStore(t), nil, testLogger())
	_, err := svc.ApplyPayment(context.Background(), "nope", 10, false)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDuesSummaryBucketsAndSkipsSettled(t *testing.T) {
	s := testStore(t)
	svc := NewService(s, nil, testLogger())
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, s, store.Row{FieldTotal: 100.0, FieldPaid: 0.0, FieldDueDate: "2026-03-01"})
	seedInvoice(t, s, store.Row{FieldTotal: 50.0, FieldPaid: 0.0, FieldDueDate: "2026-03-10"})
	seedInvoice(t, s, store.Row{FieldTotal: 80.0, FieldPaid: 30.0, FieldDueDate: "2026-03-12"})
	seedInvoice(t, s, store.Row{FieldTotal: 900.0, FieldPaid: 0.0, FieldDueDate: "2026-04-01"})
	// Settled balance stays out of every bucket.
	seedInvoice(t, s, store.Row{FieldTotal: 60.0, FieldPaid: 60.0, FieldDueDate: "2026-03-01"})

	sum, err := svc.Dues(context.Background(), asOf)
	require.NoError(t, err)
	require.Equal(t, "2026-03-10", sum.AsOf)
	require.Equal(t, 1, sum.Overdue.Count)
	require.Equal(t, 100.0, sum.Overdue.Amount)
	require.Equal(t, 1, sum.DueToday.Count)
	require.Equal(t, 1, sum.DueSoon.Count)
	require.Equal(t, 50.0, sum.DueSoon.Amount)
	require.Equal(t, 1, sum.Future.Count)
	require.Equal(t, 900.0, sum.Future.Amount)
}

func TestCachedDuesServesFromCacheUntilBump(t *testing.T) {
	s := testStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(s, cache, testLogger())
	ctx := context.Background()
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, s, store.Row{FieldTotal: 100.0, FieldPaid: 0.0, FieldDueDate: "2026-03-01"})

	first, err := svc.CachedDues(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, first.Overdue.Count)

	// A direct store write without a bump leaves the cached copy visible.
	seedInvoice(t, s, store.Row{FieldTotal: 40.0, FieldPaid: 0.0, FieldDueDate: "2026-03-01"})
	stale, err := svc.CachedDues(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 1, stale.Overdue.Count)

	require.NoError(t, cache.Bump(ctx))
	fresh, err := svc.CachedDues(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 2, fresh.Overdue.Count)
}

func TestApplyPaymentBumpsCache(t *testing.T) {
	s := testStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(s, cache, testLogger())
	ctx := context.Background()
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	inv := seedInvoice(t, s, store.Row{FieldTotal: 100.0, FieldPaid: 0.0, FieldDueDate: "2026-03-01"})

	before, err := svc.CachedDues(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 100.0, before.Overdue.Amount)

	_, err = svc.ApplyPayment(ctx, inv.ID(), 100, false)
	require.NoError(t, err)

	after, err := svc.CachedDues(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, 0, after.Overdue.Count)
}

func TestOverdueInvoices(t *testing.T) {
	s := testStore(t)
	svc := NewService(s, nil, testLogger())
	asOf := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	seedInvoice(t, s, store.Row{FieldCustomerName: "Acme", FieldTotal: 100.0, FieldPaid: 0.0, FieldDueDate: "2026-03-01"})
	seedInvoice(t, s, store.Row{FieldCustomerName: "Globex", FieldTotal: 100.0, FieldPaid: 100.0, FieldDueDate: "2026-03-01"})
	seedInvoice(t, s, store.Row{FieldCustomerName: "Initech", FieldTotal: 100.0, FieldPaid: 0.0, FieldDueDate: "2026-04-01"})

	overdue, err := svc.OverdueInvoices(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, "Acme", overdue[0].CustomerName)
}
