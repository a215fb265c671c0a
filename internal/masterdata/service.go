// Package masterdata manages the reference tables of the document: customers
// and sales representatives, plus a generic row surface over every table for
// the screens that edit the workbook directly.
package masterdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolia-crm/anatolia-crm/internal/shared"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// Name fields of the reference tables.
const (
	FieldCustomerName       = "Müşteri Adı"
	FieldRepresentativeName = "Ad Soyad"
)

// Service implements master-data operations over the store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// CreateNamed inserts a row into a reference table, rejecting a duplicate
// name. Name comparison is case-insensitive.
func (s *Service) CreateNamed(ctx context.Context, table, nameField string, row store.Row) (store.Row, error) {
	name := strings.TrimSpace(row.String(nameField))
	if name == "" {
		return nil, fmt.Errorf("%w: %s is required", shared.ErrValidation, nameField)
	}
	var out store.Row
	err := s.store.Exclusive(ctx, func(tx *store.Tx) error {
		dupes, err := tx.Search(table, func(r store.Row) bool {
			return strings.EqualFold(strings.TrimSpace(r.String(nameField)), name)
		})
		if err != nil {
			return err
		}
		if len(dupes) > 0 {
			return fmt.Errorf("%w: %s %q", shared.ErrDuplicate, nameField, name)
		}
		out, err = tx.Create(table, row)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("row created", slog.String("table", table), slog.String("name", name))
	return out, nil
}

// UpdateNamed patches a row in a reference table, rejecting a rename onto an
// existing name.
func (s *Service) UpdateNamed(ctx context.Context, table, nameField, id string, patch store.Row) (store.Row, error) {
	var out store.Row
	err := s.store.Exclusive(ctx, func(tx *store.Tx) error {
		if name := strings.TrimSpace(patch.String(nameField)); name != "" {
			dupes, err := tx.Search(table, func(r store.Row) bool {
				return r.ID() != id &&
					strings.EqualFold(strings.TrimSpace(r.String(nameField)), name)
			})
			if err != nil {
				return err
			}
			if len(dupes) > 0 {
				return fmt.Errorf("%w: %s %q", shared.ErrDuplicate, nameField, name)
			}
		}
		var err error
		out, err = tx.Update(table, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every row of the table.
func (s *Service) List(ctx context.Context, table string) ([]store.Row, error) {
	return s.store.List(ctx, table)
}

// Get returns one row by ID.
func (s *Service) Get(ctx context.Context, table, id string) (store.Row, error) {
	return s.store.Get(ctx, table, id)
}

// Create inserts a row without name checks, for the generic table surface.
func (s *Service) Create(ctx context.Context, table string, row store.Row) (store.Row, error) {
	return s.store.Create(ctx, table, row)
}

// Update patches a row without name checks.
func (s *Service) Update(ctx context.Context, table, id string, patch store.Row) (store.Row, error) {
	return s.store.Update(ctx, table, id, patch)
}

// Delete removes a row.
func (s *Service) Delete(ctx context.Context, table, id string) error {
	return s.store.Delete(ctx, table, id)
}
