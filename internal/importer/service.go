// Package importer ingests bulk snapshots of the shared document, one
// sub-table at a time. Tables import in isolation: a malformed table is
// reported and skipped without rolling back the tables that succeeded.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anatolia-crm/anatolia-crm/internal/recon"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// Mode selects how an incoming sub-table merges with the stored one.
type Mode string

const (
	// ModeAppend adds the incoming rows after the stored ones. Re-importing
	// the same snapshot appends duplicates; deduplication is the operator's
	// call, not the importer's.
	ModeAppend Mode = "append"
	// ModeReplace discards the stored rows and installs the incoming ones.
	ModeReplace Mode = "replace"
)

func (m Mode) valid() bool {
	return m == ModeAppend || m == ModeReplace
}

// Snapshot is one bulk-import request: rows per table, a default merge mode,
// optional per-table overrides, and an optional selection. When Only is set,
// tables outside it are left untouched.
type Snapshot struct {
	Mode   Mode                   `json:"mode"`
	Modes  map[string]Mode        `json:"modes,omitempty"`
	Only   []string               `json:"only,omitempty"`
	Tables map[string][]store.Row `json:"tables"`
}

func (s Snapshot) selected(table string) bool {
	if len(s.Only) == 0 {
		return true
	}
	for _, t := range s.Only {
		if t == table {
			return true
		}
	}
	return false
}

// TableResult reports the outcome of one sub-table's import.
type TableResult struct {
	Table string `json:"table"`
	Mode  Mode   `json:"mode"`
	Rows  int    `json:"rows"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Service runs snapshot imports against the store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(st *store.Store, logger *slog.Logger) *Service {
	return &Service{store: st, logger: logger}
}

// Import applies the snapshot table by table. Each table runs in its own
// exclusive store section, so one table's failure leaves the others
// committed. Results come back in the order the tables were attempted.
func (s *Service) Import(ctx context.Context, snap Snapshot) ([]TableResult, error) {
	if snap.Mode == "" {
		snap.Mode = ModeAppend
	}
	if !snap.Mode.valid() {
		return nil, fmt.Errorf("%w: mode %q", shared.ErrValidation, snap.Mode)
	}
	for table, mode := range snap.Modes {
		if !mode.valid() {
			return nil, fmt.Errorf("%w: mode %q for table %s", shared.ErrValidation, mode, table)
		}
	}
	if len(snap.Tables) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", shared.ErrValidation)
	}

	results := make([]TableResult, 0, len(snap.Tables))
	for _, table := range store.Tables() {
		rows, ok := snap.Tables[table]
		if !ok || !snap.selected(table) {
			continue
		}
		mode := snap.Mode
		if override, ok := snap.Modes[table]; ok {
			mode = override
		}
		res := TableResult{Table: table, Mode: mode, Rows: len(rows)}
		if err := s.importTable(ctx, table, mode, rows); err != nil {
			res.Error = err.Error()
			s.logger.Warn("table import failed",
				slog.String("table", table), slog.String("mode", string(mode)), slog.Any("error", err))
		} else {
			res.OK = true
			s.logger.Info("table imported",
				slog.String("table", table), slog.String("mode", string(mode)), slog.Int("rows", len(rows)))
		}
		results = append(results, res)
	}

	// Unknown table names are rejected individually, not by failing the batch.
	for table, rows := range snap.Tables {
		if store.KnownTable(table) || !snap.selected(table) {
			continue
		}
		results = append(results, TableResult{
			Table: table,
			Mode:  snap.Mode,
			Rows:  len(rows),
			Error: fmt.Sprintf("%v: %s", store.ErrUnknownTable, table),
		})
	}
	return results, nil
}

func (s *Service) importTable(ctx context.Context, table string, mode Mode, rows []store.Row) error {
	normalized := make([]store.Row, 0, len(rows))
	for i, row := range rows {
		if row == nil {
			return fmt.Errorf("%w: row %d is null", shared.ErrValidation, i)
		}
		normalized = append(normalized, normalizeRow(row))
	}
	return s.store.Exclusive(ctx, func(tx *store.Tx) error {
		if mode == ModeReplace {
			for _, row := range normalized {
				if row.ID() == "" {
					row[store.FieldID] = uuid.NewString()
				}
			}
			return tx.Replace(table, normalized)
		}
		for _, row := range normalized {
			// Append never reuses incoming IDs; a fresh row identity keeps
			// repeated imports from silently overwriting each other.
			delete(row, store.FieldID)
			if _, err := tx.Create(table, row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Field classes driving normalization. Names are shared across sub-tables.
var (
	dateFields = map[string]bool{
		"Tarih":         true,
		"Sevk Tarihi":   true,
		"ETA Tarihi":    true,
		"Ulaşma Tarihi": true,
		"Termin Tarihi": true,
		"Fatura Tarihi": true,
		"Vade Tarihi":   true,
		"Başlangıç":     true,
		"Bitiş":         true,
	}
	amountFields = map[string]bool{
		"Tutar":        true,
		"Ödenen Tutar": true,
		"Hedef":        true,
	}
	boolFields = map[string]bool{
		"Ödendi": true,
	}
)

// dateLayouts are the encodings seen in exported workbooks, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"2006-01-02T15:04:05Z07:00",
}

// normalizeRow canonicalizes one incoming row: dates to ISO, amounts to
// float64, paid flags to bool. Values that resist parsing pass through
// untouched; downstream readers already tolerate garbage cells.
func normalizeRow(row store.Row) store.Row {
	out := row.Clone()
	for field, raw := range out {
		switch {
		case dateFields[field]:
			if iso, ok := normalizeDate(raw); ok {
				out[field] = iso
			}
		case amountFields[field]:
			if n, err := recon.ParseAmount(raw); err == nil {
				out[field] = n
			}
		case boolFields[field]:
			out[field] = recon.NormalizePaidFlag(raw)
		}
	}
	return out
}

func normalizeDate(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
