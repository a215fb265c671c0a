// Package store owns the durable state of the CRM: a single shared document
// of named tables, persisted wholesale on every committed mutation. It is the
// only component allowed to touch the document; workflow, reconciliation and
// import all read and write through it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the referenced row or composite key is absent.
	ErrNotFound = errors.New("row not found")
	// ErrUnknownTable indicates a table name outside the document's set.
	ErrUnknownTable = errors.New("unknown table")
)

// Store is the single-writer, many-reader document store. Writers serialize
// on Exclusive; readers observe the most recent fully committed document.
type Store struct {
	mu     sync.RWMutex
	path   string
	doc    Document
	logger *slog.Logger
}

// Open loads the document from path, creating an empty one when the file
// does not exist yet.
func Open(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = emptyDocument()
		logger.Info("document not found, starting empty", slog.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("store: read document: %w", err)
	default:
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("store: decode document: %w", err)
		}
		for _, t := range Tables() {
			if doc[t] == nil {
				doc[t] = []Row{}
			}
		}
		s.doc = doc
	}
	return s, nil
}

// Create inserts a row into the named table, assigning a fresh ID when the
// row carries none, and returns the stored copy.
func (s *Store) Create(ctx context.Context, table string, row Row) (Row, error) {
	var out Row
	err := s.Exclusive(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Create(table, row)
		return err
	})
	return out, err
}

// Get returns a copy of the row with the given ID.
func (s *Store) Get(ctx context.Context, table, id string) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, r := range rows {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
}

// Update merges patch into the row with the given ID and returns the result.
func (s *Store) Update(ctx context.Context, table, id string, patch Row) (Row, error) {
	var out Row
	err := s.Exclusive(ctx, func(tx *Tx) error {
		var err error
		out, err = tx.Update(table, id, patch)
		return err
	})
	return out, err
}

// Delete removes the row with the given ID.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	return s.Exclusive(ctx, func(tx *Tx) error {
		return tx.Delete(table, id)
	})
}

// List returns a copy of every row in the table.
func (s *Store) List(ctx context.Context, table string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return cloneRows(rows), nil
}

// Search returns copies of the rows matching pred.
func (s *Store) Search(ctx context.Context, table string, pred func(Row) bool) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	out := []Row{}
	for _, r := range rows {
		if pred(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Exclusive runs fn as one logical operation under the writer lock. fn works
// on a staged copy of the document; the copy is persisted and swapped in only
// when fn returns nil, so a failed operation leaves no partial writes behind.
// The wait for the lock is synchronous and unbounded; callers needing a bound
// wrap the call with their own context timeout and must treat a timeout as an
// unknown outcome.
func (s *Store) Exclusive(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{doc: s.doc.Clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.persist(tx.doc); err != nil {
		return fmt.Errorf("store: persist document: %w", err)
	}
	s.doc = tx.doc
	return nil
}

// persist rewrites the whole document atomically: write to a temp file in the
// same directory, then rename over the live file.
func (s *Store) persist(doc Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".document-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

// Tx is the staged view of the document inside one Exclusive section. All
// reads through a Tx observe the staged writes of the same operation.
type Tx struct {
	doc Document
}

// Create inserts a row, assigning a uuid ID when the row has none.
func (tx *Tx) Create(table string, row Row) (Row, error) {
	rows, ok := tx.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	stored := row.Clone()
	if stored.ID() == "" {
		stored[FieldID] = uuid.NewString()
	}
	tx.doc[table] = append(rows, stored)
	return stored.Clone(), nil
}

// Get returns the staged row with the given ID.
func (tx *Tx) Get(table, id string) (Row, error) {
	rows, ok := tx.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, r := range rows {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
}

// Update merges patch into the row with the given ID.
func (tx *Tx) Update(table, id string, patch Row) (Row, error) {
	rows, ok := tx.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for i, r := range rows {
		if r.ID() != id {
			continue
		}
		merged := r.Clone()
		for k, v := range patch {
			if k == FieldID {
				continue
			}
			merged[k] = v
		}
		rows[i] = merged
		return merged.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
}

// Delete removes the row with the given ID.
func (tx *Tx) Delete(table, id string) error {
	rows, ok := tx.doc[table]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for i, r := range rows {
		if r.ID() == id {
			tx.doc[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s/%s", ErrNotFound, table, id)
}

// List returns the staged rows of the table.
func (tx *Tx) List(table string) ([]Row, error) {
	rows, ok := tx.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return rows, nil
}

// Search returns the staged rows matching pred. The returned rows are the
// staged rows themselves; callers mutate them only through Update.
func (tx *Tx) Search(table string, pred func(Row) bool) ([]Row, error) {
	rows, ok := tx.doc[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	out := []Row{}
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Replace discards the table's rows and installs rows wholesale.
func (tx *Tx) Replace(table string, rows []Row) error {
	if _, ok := tx.doc[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	tx.doc[table] = cloneRows(rows)
	return nil
}
