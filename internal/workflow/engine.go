package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/anatolia-crm/anatolia-crm/internal/eta"
	"github.com/anatolia-crm/anatolia-crm/internal/recon"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// DefaultReturnNote is stamped on the ETA record when a delivered order is
// put back on the road without an explicit note.
const DefaultReturnNote = "Geri alındı - tekrar yolda"

// Engine runs lifecycle transitions. Every transition executes as one
// exclusive store operation: the precondition check, the proforma mutation
// and any derived ETA maintenance commit together or not at all.
type Engine struct {
	store  *store.Store
	eta    *eta.Resolver
	logger *slog.Logger
}

// NewEngine builds an Engine instance.
func NewEngine(st *store.Store, resolver *eta.Resolver, logger *slog.Logger) *Engine {
	return &Engine{store: st, eta: resolver, logger: logger}
}

func (e *Engine) get(tx *store.Tx, id string) (store.Row, error) {
	row, err := tx.Get(store.TableProformas, id)
	if err != nil {
		return nil, fmt.Errorf("proforma %s: %w", id, err)
	}
	return row, nil
}

func (e *Engine) findByKey(tx *store.Tx, customer, proformaNo string) (store.Row, error) {
	rows, err := tx.Search(store.TableProformas, func(row store.Row) bool {
		return row.String(FieldCustomerName) == customer &&
			row.String(FieldProformaNo) == proformaNo
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: proforma %s/%s", store.ErrNotFound, customer, proformaNo)
	}
	return rows[0], nil
}

func transitionErr(p Proforma, action string) error {
	return fmt.Errorf("%w: %s rejected for proforma %s (durum=%q sevk=%q)",
		shared.ErrInvalidTransition, action, p.ProformaNo, p.Status, p.Shipment)
}

// AcceptQuote closes an open quote and opens a pending proforma carrying the
// quote's customer and amount. The proforma number must be free.
func (e *Engine) AcceptQuote(ctx context.Context, quoteID, proformaNo string) (Proforma, error) {
	if strings.TrimSpace(proformaNo) == "" {
		return Proforma{}, fmt.Errorf("%w: proforma number is required", shared.ErrValidation)
	}
	var out Proforma
	err := e.store.Exclusive(ctx, func(tx *store.Tx) error {
		quote, err := tx.Get(store.TableQuotes, quoteID)
		if err != nil {
			return fmt.Errorf("quote %s: %w", quoteID, err)
		}
		if quote.String(FieldQuoteStatus) != QuoteOpen {
			return fmt.Errorf("%w: quote %s is not open (durum=%q)",
				shared.ErrInvalidTransition, quote.String(FieldQuoteNo), quote.String(FieldQuoteStatus))
		}
		customer := quote.String(FieldCustomerName)
		dupes, err := tx.Search(store.TableProformas, func(row store.Row) bool {
			return strings.EqualFold(row.String(FieldCustomerName), customer) &&
				strings.EqualFold(row.String(FieldProformaNo), proformaNo)
		})
		if err != nil {
			return err
		}
		if len(dupes) > 0 {
			return fmt.Errorf("%w: proforma %s/%s", shared.ErrDuplicate, customer, proformaNo)
		}
		if _, err := tx.Update(store.TableQuotes, quoteID, store.Row{FieldQuoteStatus: QuoteAccepted}); err != nil {
			return err
		}
		created, err := tx.Create(store.TableProformas, store.Row{
			FieldCustomerName:   customer,
			FieldProformaNo:     proformaNo,
			FieldDate:           today(),
			FieldAmount:         quote[FieldAmount],
			FieldNote:           quote.String(FieldNote),
			FieldStatus:         string(StatusPending),
			FieldShipmentStatus: string(ShipmentAwaiting),
		})
		if err != nil {
			return err
		}
		out = FromRow(created)
		return nil
	})
	if err != nil {
		return Proforma{}, err
	}
	e.logger.Info("quote accepted", "quote_id", quoteID, "proforma_no", out.ProformaNo, "customer", out.CustomerName)
	return out, nil
}

// ConvertToOrder promotes a pending proforma to a confirmed order. The order
// form reference is mandatory; the shipment sub-state starts empty.
func (e *Engine) ConvertToOrder(ctx context.Context, id, orderFormRef string) (Proforma, error) {
	if strings.TrimSpace(orderFormRef) == "" {
		return Proforma{}, fmt.Errorf("%w: order form reference is required", shared.ErrValidation)
	}
	return e.transition(ctx, id, "convert", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanConvert() {
			return nil, transitionErr(p, "convert")
		}
		return store.Row{
			FieldStatus:         string(StatusConverted),
			FieldShipmentStatus: string(ShipmentAwaiting),
			FieldOrderForm:      orderFormRef,
		}, nil
	})
}

// Ship moves an awaiting order onto the road and materializes its ETA
// record. An existing record keeps its ETA date; ship date and note are
// refreshed.
func (e *Engine) Ship(ctx context.Context, id, shipDate string) (Proforma, error) {
	if shipDate == "" {
		shipDate = today()
	}
	if _, err := time.Parse(DateLayout, shipDate); err != nil {
		return Proforma{}, fmt.Errorf("%w: ship date %q", shared.ErrValidation, shipDate)
	}
	return e.transition(ctx, id, "ship", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanShip() {
			return nil, transitionErr(p, "ship")
		}
		key := eta.Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}
		etaDate := ""
		if existing, ok, err := e.eta.FindTx(tx, key); err != nil {
			return nil, err
		} else if ok {
			etaDate = existing.ETADate
		}
		if _, err := e.eta.UpsertTx(tx, eta.UpsertParams{
			CustomerName: p.CustomerName,
			ProformaNo:   p.ProformaNo,
			ShipDate:     shipDate,
			ETADate:      etaDate,
			Note:         p.Note,
		}); err != nil {
			return nil, err
		}
		return store.Row{
			FieldShipmentStatus: string(ShipmentShipped),
			FieldShipDate:       shipDate,
		}, nil
	})
}

// RecallShipment pulls a shipped order back to the awaiting-shipment queue
// and drops its ETA record.
func (e *Engine) RecallShipment(ctx context.Context, customer, proformaNo string) (Proforma, error) {
	return e.transitionByKey(ctx, customer, proformaNo, "recall", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanRecall() {
			return nil, transitionErr(p, "recall")
		}
		if err := e.eta.DeleteKeyTx(tx, eta.Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}); err != nil {
			return nil, err
		}
		return store.Row{FieldShipmentStatus: string(ShipmentAwaiting)}, nil
	})
}

// MarkDelivered closes the shipment leg: the ETA record is retired and the
// arrival date recorded on the proforma.
func (e *Engine) MarkDelivered(ctx context.Context, customer, proformaNo, date string) (Proforma, error) {
	if date == "" {
		date = today()
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Proforma{}, fmt.Errorf("%w: delivery date %q", shared.ErrValidation, date)
	}
	return e.transitionByKey(ctx, customer, proformaNo, "deliver", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanDeliver() {
			return nil, transitionErr(p, "deliver")
		}
		if err := e.eta.DeleteKeyTx(tx, eta.Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}); err != nil {
			return nil, err
		}
		return store.Row{
			FieldShipmentStatus: string(ShipmentDelivered),
			FieldDeliveryDate:   date,
		}, nil
	})
}

// ReturnToShipping reverses a delivery: the order goes back on the road with
// a fresh ETA record and the arrival date is cleared.
func (e *Engine) ReturnToShipping(ctx context.Context, id, etaDate, note string) (Proforma, error) {
	if note == "" {
		note = DefaultReturnNote
	}
	if etaDate != "" {
		if _, err := time.Parse(DateLayout, etaDate); err != nil {
			return Proforma{}, fmt.Errorf("%w: eta date %q", shared.ErrValidation, etaDate)
		}
	}
	return e.transition(ctx, id, "return to shipping", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanReturnToShipping() {
			return nil, transitionErr(p, "return to shipping")
		}
		shipDate := p.ShipDate
		if shipDate == "" {
			shipDate = today()
		}
		if _, err := e.eta.UpsertTx(tx, eta.UpsertParams{
			CustomerName: p.CustomerName,
			ProformaNo:   p.ProformaNo,
			ShipDate:     shipDate,
			ETADate:      etaDate,
			Note:         note,
		}); err != nil {
			return nil, err
		}
		return store.Row{
			FieldShipmentStatus: string(ShipmentShipped),
			FieldDeliveryDate:   "",
		}, nil
	})
}

// UpdateDueDate changes the production due date. Allowed only while the
// order still awaits shipment.
func (e *Engine) UpdateDueDate(ctx context.Context, id, date string) (Proforma, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Proforma{}, fmt.Errorf("%w: due date %q", shared.ErrValidation, date)
	}
	return e.transition(ctx, id, "update due date", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if !p.CanUpdateDueDate() {
			return nil, transitionErr(p, "update due date")
		}
		return store.Row{FieldDueDate: date}, nil
	})
}

// UpdateDeliveryDate corrects the arrival date of a delivered order.
func (e *Engine) UpdateDeliveryDate(ctx context.Context, id, date string) (Proforma, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return Proforma{}, fmt.Errorf("%w: delivery date %q", shared.ErrValidation, date)
	}
	return e.transition(ctx, id, "update delivery date", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if p.Status != StatusConverted || p.Shipment != ShipmentDelivered {
			return nil, transitionErr(p, "update delivery date")
		}
		return store.Row{FieldDeliveryDate: date}, nil
	})
}

// Cancel retires a pending proforma. Terminal.
func (e *Engine) Cancel(ctx context.Context, id string) (Proforma, error) {
	return e.transition(ctx, id, "cancel", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if p.Status != StatusPending {
			return nil, transitionErr(p, "cancel")
		}
		return store.Row{FieldStatus: string(StatusCancelled)}, nil
	})
}

// MarkInvoiced closes a pending proforma by cutting its invoice. Terminal.
// The invoice row is created in the same exclusive section; its due date is
// derived from the invoice date and the document's net payment terms.
func (e *Engine) MarkInvoiced(ctx context.Context, id, invoiceNo, invoiceDate string) (Proforma, error) {
	if strings.TrimSpace(invoiceNo) == "" {
		return Proforma{}, fmt.Errorf("%w: invoice number is required", shared.ErrValidation)
	}
	if invoiceDate == "" {
		invoiceDate = today()
	}
	issued, err := time.Parse(DateLayout, invoiceDate)
	if err != nil {
		return Proforma{}, fmt.Errorf("%w: invoice date %q", shared.ErrValidation, invoiceDate)
	}
	return e.transition(ctx, id, "invoice", func(tx *store.Tx, p Proforma) (store.Row, error) {
		if p.Status != StatusPending {
			return nil, transitionErr(p, "invoice")
		}
		dupes, err := tx.Search(store.TableInvoices, func(row store.Row) bool {
			return strings.EqualFold(row.String(recon.FieldCustomerName), p.CustomerName) &&
				strings.EqualFold(row.String(recon.FieldProformaNo), p.ProformaNo)
		})
		if err != nil {
			return nil, err
		}
		if len(dupes) > 0 {
			return nil, fmt.Errorf("%w: invoice for proforma %s/%s", shared.ErrDuplicate, p.CustomerName, p.ProformaNo)
		}
		terms := termDays(tx, p)
		inv := store.Row{
			recon.FieldCustomerName: p.CustomerName,
			recon.FieldProformaNo:   p.ProformaNo,
			recon.FieldInvoiceNo:    invoiceNo,
			recon.FieldInvoiceDate:  invoiceDate,
			recon.FieldNetTermDays:  terms,
			recon.FieldDueDate:      issued.AddDate(0, 0, terms).Format(DateLayout),
			recon.FieldTotal:        recon.AmountOrZero(p.Amount),
			recon.FieldPaid:         0.0,
			recon.FieldPaidFlag:     false,
		}
		if _, err := tx.Create(store.TableInvoices, inv); err != nil {
			return nil, err
		}
		return store.Row{FieldStatus: string(StatusInvoiced)}, nil
	})
}

// termDays reads the document's net payment terms, falling back to the
// customer master record, then to zero.
func termDays(tx *store.Tx, p Proforma) int {
	if row, err := tx.Get(store.TableProformas, p.ID); err == nil {
		if n, ok := asDays(row[FieldNetTermDays]); ok {
			return n
		}
	}
	customers, err := tx.Search(store.TableCustomers, func(row store.Row) bool {
		return row.String(FieldCustomerName) == p.CustomerName
	})
	if err == nil && len(customers) > 0 {
		if n, ok := asDays(customers[0][FieldNetTermDays]); ok {
			return n
		}
	}
	return 0
}

func asDays(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		f, err := recon.ParseAmount(n)
		if err != nil || n == "" {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

// DeleteProforma removes a proforma that no invoice references.
func (e *Engine) DeleteProforma(ctx context.Context, id string) error {
	err := e.store.Exclusive(ctx, func(tx *store.Tx) error {
		row, err := e.get(tx, id)
		if err != nil {
			return err
		}
		p := FromRow(row)
		refs, err := tx.Search(store.TableInvoices, func(r store.Row) bool {
			return strings.EqualFold(r.String(recon.FieldCustomerName), p.CustomerName) &&
				strings.EqualFold(r.String(recon.FieldProformaNo), p.ProformaNo)
		})
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			return fmt.Errorf("%w: proforma %s/%s is referenced by an invoice",
				shared.ErrValidation, p.CustomerName, p.ProformaNo)
		}
		if err := e.eta.DeleteKeyTx(tx, eta.Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}); err != nil {
			return err
		}
		return tx.Delete(store.TableProformas, id)
	})
	if err != nil {
		return err
	}
	e.logger.Info("proforma deleted", "id", id)
	return nil
}

type mutator func(tx *store.Tx, p Proforma) (store.Row, error)

func (e *Engine) transition(ctx context.Context, id, action string, fn mutator) (Proforma, error) {
	var out Proforma
	err := e.store.Exclusive(ctx, func(tx *store.Tx) error {
		row, err := e.get(tx, id)
		if err != nil {
			return err
		}
		return e.apply(tx, row, fn, &out)
	})
	if err != nil {
		return Proforma{}, err
	}
	e.logger.Info("proforma transition",
		"action", action, "proforma_no", out.ProformaNo, "customer", out.CustomerName,
		"durum", out.Status, "sevk", out.Shipment)
	return out, nil
}

func (e *Engine) transitionByKey(ctx context.Context, customer, proformaNo, action string, fn mutator) (Proforma, error) {
	var out Proforma
	err := e.store.Exclusive(ctx, func(tx *store.Tx) error {
		row, err := e.findByKey(tx, customer, proformaNo)
		if err != nil {
			return err
		}
		return e.apply(tx, row, fn, &out)
	})
	if err != nil {
		return Proforma{}, err
	}
	e.logger.Info("proforma transition",
		"action", action, "proforma_no", out.ProformaNo, "customer", out.CustomerName,
		"durum", out.Status, "sevk", out.Shipment)
	return out, nil
}

func (e *Engine) apply(tx *store.Tx, row store.Row, fn mutator, out *Proforma) error {
	p := FromRow(row)
	patch, err := fn(tx, p)
	if err != nil {
		return err
	}
	updated, err := tx.Update(store.TableProformas, p.ID, patch)
	if err != nil {
		return err
	}
	*out = FromRow(updated)
	return nil
}

// Get returns the typed view of one proforma.
func (e *Engine) Get(ctx context.Context, id string) (Proforma, error) {
	row, err := e.store.Get(ctx, store.TableProformas, id)
	if err != nil {
		return Proforma{}, err
	}
	return FromRow(row), nil
}

// Pending returns proformas still awaiting a decision.
func (e *Engine) Pending(ctx context.Context) ([]Proforma, error) {
	return e.where(ctx, func(p Proforma) bool { return p.Status == StatusPending })
}

// AwaitingShipment returns converted orders not yet on the road.
func (e *Engine) AwaitingShipment(ctx context.Context) ([]Proforma, error) {
	return e.where(ctx, func(p Proforma) bool {
		return p.Status == StatusConverted && p.Shipment == ShipmentAwaiting
	})
}

// Shipped returns orders currently on the road.
func (e *Engine) Shipped(ctx context.Context) ([]Proforma, error) {
	return e.where(ctx, func(p Proforma) bool {
		return p.Status == StatusConverted && p.Shipment == ShipmentShipped
	})
}

// RecentDeliveries returns the latest delivered orders, newest first,
// capped at limit.
func (e *Engine) RecentDeliveries(ctx context.Context, limit int) ([]Proforma, error) {
	out, err := e.where(ctx, func(p Proforma) bool {
		return p.Status == StatusConverted && p.Shipment == ShipmentDelivered
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DeliveryDate > out[j].DeliveryDate
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TrackingEntry merges a shipped order with its ETA record for the
// live-tracking board.
type TrackingEntry struct {
	Proforma      Proforma `json:"proforma"`
	ShipDate      string   `json:"ship_date"`
	ETADate       string   `json:"eta_date,omitempty"`
	Note          string   `json:"note,omitempty"`
	DaysRemaining *int     `json:"days_remaining,omitempty"`
}

// Tracking returns every shipment on the road with its ETA, if one is
// recorded, and the whole days remaining until it.
func (e *Engine) Tracking(ctx context.Context, now time.Time) ([]TrackingEntry, error) {
	shipped, err := e.Shipped(ctx)
	if err != nil {
		return nil, err
	}
	records, err := e.eta.List(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[eta.Key]eta.Record, len(records))
	for _, rec := range records {
		byKey[rec.Key()] = rec
	}
	out := make([]TrackingEntry, 0, len(shipped))
	for _, p := range shipped {
		entry := TrackingEntry{Proforma: p, ShipDate: p.ShipDate}
		if rec, ok := byKey[eta.Key{CustomerName: p.CustomerName, ProformaNo: p.ProformaNo}]; ok {
			entry.ShipDate = rec.ShipDate
			entry.ETADate = rec.ETADate
			entry.Note = rec.Note
			if arrival, err := time.Parse(DateLayout, rec.ETADate); err == nil {
				days := int(arrival.Sub(now.Truncate(24*time.Hour)).Hours() / 24)
				entry.DaysRemaining = &days
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (e *Engine) where(ctx context.Context, keep func(Proforma) bool) ([]Proforma, error) {
	rows, err := e.store.List(ctx, store.TableProformas)
	if err != nil {
		return nil, err
	}
	out := make([]Proforma, 0, len(rows))
	for _, row := range rows {
		if p := FromRow(row); keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}
