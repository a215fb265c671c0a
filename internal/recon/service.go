package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// Service applies payments and aggregates dues through the store. It holds
// no state of its own; every mutation runs in one exclusive store section.
type Service struct {
	store  *store.Store
	cache  *Cache
	logger *slog.Logger
}

// NewService builds a Service instance. cache may be nil.
func NewService(st *store.Store, cache *Cache, logger *slog.Logger) *Service {
	return &Service{store: st, cache: cache, logger: logger}
}

// ApplyPayment records a remittance delta against the invoice and returns
// the reconciled invoice.
func (s *Service) ApplyPayment(ctx context.Context, invoiceID string, delta float64, markPaid bool) (Invoice, error) {
	var out Invoice
	err := s.store.Exclusive(ctx, func(tx *store.Tx) error {
		row, err := tx.Get(store.TableInvoices, invoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		out = ApplyPayment(FromRow(row), delta, markPaid)
		if _, err := tx.Update(store.TableInvoices, invoiceID, out.PaymentPatch()); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	// The cache bump happens after commit, outside the writer lock.
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("bump dues cache", slog.Any("error", err))
		}
	}
	s.logger.Info("payment applied",
		slog.String("invoice_id", invoiceID),
		slog.Float64("delta", delta),
		slog.Float64("paid", out.Paid),
		slog.Bool("paid_flag", out.PaidFlag))
	return out, nil
}

// BucketSummary aggregates the open invoices of one due bucket.
type BucketSummary struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// DueSummary groups every open invoice balance by due bucket.
type DueSummary struct {
	AsOf     string        `json:"as_of"`
	Overdue  BucketSummary `json:"overdue"`
	DueToday BucketSummary `json:"due_today"`
	DueSoon  BucketSummary `json:"due_soon"`
	Future   BucketSummary `json:"future"`
}

// Dues computes the due summary as of the given day. Paid invoices and
// settled balances are excluded.
func (s *Service) Dues(ctx context.Context, asOf time.Time) (DueSummary, error) {
	rows, err := s.store.List(ctx, store.TableInvoices)
	if err != nil {
		return DueSummary{}, fmt.Errorf("list invoices: %w", err)
	}
	sum := DueSummary{AsOf: asOf.Format(DateLayout)}
	for _, row := range rows {
		inv := FromRow(row)
		if inv.Balance() <= Epsilon {
			continue
		}
		switch ClassifyDue(inv, asOf) {
		case BucketOverdue:
			sum.Overdue.Count++
			sum.Overdue.Amount += inv.Balance()
		case BucketDueToday:
			sum.DueToday.Count++
			sum.DueToday.Amount += inv.Balance()
		case BucketDueSoon:
			sum.DueSoon.Count++
			sum.DueSoon.Amount += inv.Balance()
		case BucketFuture:
			sum.Future.Count++
			sum.Future.Amount += inv.Balance()
		}
	}
	return sum, nil
}

// CachedDues serves the due summary through the versioned cache when one is
// configured, falling back to a direct computation otherwise.
func (s *Service) CachedDues(ctx context.Context, asOf time.Time) (DueSummary, error) {
	if s.cache == nil {
		return s.Dues(ctx, asOf)
	}
	key, err := s.cache.BuildKey(ctx, "dues", asOf.Format(DateLayout))
	if err != nil {
		s.logger.Warn("dues cache key", slog.Any("error", err))
		return s.Dues(ctx, asOf)
	}
	var sum DueSummary
	err = s.cache.FetchJSON(ctx, key, &sum, func(ctx context.Context) (any, error) {
		return s.Dues(ctx, asOf)
	})
	if err != nil {
		return DueSummary{}, err
	}
	return sum, nil
}

// OverdueInvoices lists the open invoices past their due date, for the
// reminder job.
func (s *Service) OverdueInvoices(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	rows, err := s.store.List(ctx, store.TableInvoices)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := []Invoice{}
	for _, row := range rows {
		inv := FromRow(row)
		if inv.Balance() <= Epsilon {
			continue
		}
		if ClassifyDue(inv, asOf) == BucketOverdue {
			out = append(out, inv)
		}
	}
	return out, nil
}
