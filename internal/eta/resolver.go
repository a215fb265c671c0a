// Package eta maintains shipment-tracking records addressed by the natural
// composite key (customer name, proforma number). At most one live record
// exists per key; writes go through an idempotent upsert.
package eta

import (
	"context"
	"fmt"
	"time"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// ETA table field names as they appear in the shared document.
const (
	FieldCustomerName = "Müşteri Adı"
	FieldProformaNo   = "Proforma No"
	FieldShipDate     = "Sevk Tarihi"
	FieldETADate      = "ETA Tarihi"
	FieldNote         = "Açıklama"
)

// DateLayout is the document's date format.
const DateLayout = "2006-01-02"

// Key is the composite natural key of a shipment-tracking record.
type Key struct {
	CustomerName string
	ProformaNo   string
}

func (k Key) String() string {
	return k.CustomerName + "/" + k.ProformaNo
}

// Record is the typed view of an ETA row.
type Record struct {
	ID           string `json:"id"`
	CustomerName string `json:"customer_name"`
	ProformaNo   string `json:"proforma_no"`
	ShipDate     string `json:"ship_date"`
	ETADate      string `json:"eta_date"`
	Note         string `json:"note"`
}

// Key returns the record's composite key.
func (rec Record) Key() Key {
	return Key{CustomerName: rec.CustomerName, ProformaNo: rec.ProformaNo}
}

func fromRow(row store.Row) Record {
	return Record{
		ID:           row.ID(),
		CustomerName: row.String(FieldCustomerName),
		ProformaNo:   row.String(FieldProformaNo),
		ShipDate:     row.String(FieldShipDate),
		ETADate:      row.String(FieldETADate),
		Note:         row.String(FieldNote),
	}
}

func (rec Record) toRow() store.Row {
	row := store.Row{
		FieldCustomerName: rec.CustomerName,
		FieldProformaNo:   rec.ProformaNo,
		FieldShipDate:     rec.ShipDate,
		FieldETADate:      rec.ETADate,
		FieldNote:         rec.Note,
	}
	if rec.ID != "" {
		row[store.FieldID] = rec.ID
	}
	return row
}

// index is the derived composite-key index over the ETA table. It is rebuilt
// from the staged table at the start of every operation and kept in sync
// across that operation's writes, so a key lookup never scans twice.
type index map[Key]string

func buildIndex(rows []store.Row) index {
	idx := make(index, len(rows))
	for _, r := range rows {
		idx[Key{
			CustomerName: r.String(FieldCustomerName),
			ProformaNo:   r.String(FieldProformaNo),
		}] = r.ID()
	}
	return idx
}

// Resolver performs keyed upserts and lookups over the ETA table. Methods
// taking a *store.Tx compose into a larger logical operation; the exported
// context methods run standalone in their own exclusive section.
type Resolver struct {
	store *store.Store
}

// NewResolver builds a Resolver instance.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// UpsertParams carries the writable fields of an upsert.
type UpsertParams struct {
	CustomerName string
	ProformaNo   string
	ShipDate     string
	ETADate      string
	Note         string
}

// UpsertTx updates the record matching the key in place, or creates one.
// Calling it twice with identical arguments leaves exactly one record. The
// owning proforma must exist; its ship-date column is stamped when a ship
// date is supplied. A proforma with no ETA record yet is a valid state, so
// this is the only writer that creates rows in the ETA table.
func (r *Resolver) UpsertTx(tx *store.Tx, p UpsertParams) (Record, error) {
	key := Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}

	proformas, err := tx.Search(store.TableProformas, func(row store.Row) bool {
		return row.String(FieldCustomerName) == key.CustomerName &&
			row.String(FieldProformaNo) == key.ProformaNo
	})
	if err != nil {
		return Record{}, err
	}
	if len(proformas) == 0 {
		return Record{}, fmt.Errorf("%w: proforma %s", store.ErrNotFound, key)
	}

	if p.ShipDate == "" {
		p.ShipDate = time.Now().Format(DateLayout)
	}

	rows, err := tx.List(store.TableETA)
	if err != nil {
		return Record{}, err
	}
	idx := buildIndex(rows)

	rec := Record{
		CustomerName: p.CustomerName,
		ProformaNo:   p.ProformaNo,
		ShipDate:     p.ShipDate,
		ETADate:      p.ETADate,
		Note:         p.Note,
	}
	if id, ok := idx[key]; ok {
		rec.ID = id
		if _, err := tx.Update(store.TableETA, id, rec.toRow()); err != nil {
			return Record{}, err
		}
	} else {
		created, err := tx.Create(store.TableETA, rec.toRow())
		if err != nil {
			return Record{}, err
		}
		rec.ID = created.ID()
		idx[key] = rec.ID
	}

	if _, err := tx.Update(store.TableProformas, proformas[0].ID(), store.Row{FieldShipDate: p.ShipDate}); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteKeyTx removes the record matching the key. Absence is not an error:
// a just-converted order legitimately has no ETA record yet.
func (r *Resolver) DeleteKeyTx(tx *store.Tx, key Key) error {
	rows, err := tx.List(store.TableETA)
	if err != nil {
		return err
	}
	idx := buildIndex(rows)
	id, ok := idx[key]
	if !ok {
		return nil
	}
	return tx.Delete(store.TableETA, id)
}

// FindTx returns the record matching the key, if any.
func (r *Resolver) FindTx(tx *store.Tx, key Key) (Record, bool, error) {
	rows, err := tx.List(store.TableETA)
	if err != nil {
		return Record{}, false, err
	}
	idx := buildIndex(rows)
	id, ok := idx[key]
	if !ok {
		return Record{}, false, nil
	}
	row, err := tx.Get(store.TableETA, id)
	if err != nil {
		return Record{}, false, err
	}
	return fromRow(row), true, nil
}

// Upsert runs UpsertTx in its own exclusive section. Safe to retry on an
// unknown outcome.
func (r *Resolver) Upsert(ctx context.Context, p UpsertParams) (Record, error) {
	var rec Record
	err := r.store.Exclusive(ctx, func(tx *store.Tx) error {
		var err error
		rec, err = r.UpsertTx(tx, p)
		return err
	})
	return rec, err
}

// Delete removes the record with the given row ID.
func (r *Resolver) Delete(ctx context.Context, id string) error {
	return r.store.Exclusive(ctx, func(tx *store.Tx) error {
		return tx.Delete(store.TableETA, id)
	})
}

// List returns every ETA record.
func (r *Resolver) List(ctx context.Context) ([]Record, error) {
	rows, err := r.store.List(ctx, store.TableETA)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

// ByProforma returns the records carrying the given proforma number.
func (r *Resolver) ByProforma(ctx context.Context, proformaNo string) ([]Record, error) {
	rows, err := r.store.Search(ctx, store.TableETA, func(row store.Row) bool {
		return row.String(FieldProformaNo) == proformaNo
	})
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}
