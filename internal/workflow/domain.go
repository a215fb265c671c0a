// Package workflow enforces the lifecycle of a sales document from quote
// acceptance through shipment to delivery. The proforma row is the single
// source of truth for both axes of state; ETA records are derived data.
package workflow

import (
	"time"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// Proforma field names as they appear in the shared document.
const (
	FieldCustomerName   = "Müşteri Adı"
	FieldProformaNo     = "Proforma No"
	FieldDate           = "Tarih"
	FieldAmount         = "Tutar"
	FieldNote           = "Açıklama"
	FieldStatus         = "Durum"
	FieldShipmentStatus = "Sevk Durumu"
	FieldOrderForm      = "Sipariş Formu"
	FieldNetTermDays    = "Vade (gün)"
	FieldDueDate        = "Termin Tarihi"
	FieldShipDate       = "Sevk Tarihi"
	FieldDeliveryDate   = "Ulaşma Tarihi"
)

// Quote field names.
const (
	FieldQuoteNo     = "Teklif No"
	FieldQuoteStatus = "Durum"
)

// DateLayout is the document's date format.
const DateLayout = "2006-01-02"

// Status is the primary state of a sales document.
type Status string

const (
	StatusPending   Status = "Beklemede"
	StatusCancelled Status = "İptal"
	StatusInvoiced  Status = "Faturası Kesildi"
	StatusConverted Status = "Siparişe Dönüştü"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusInvoiced
}

// ShipmentStatus is the orthogonal shipment sub-state, meaningful only once
// the document is converted to an order.
type ShipmentStatus string

const (
	ShipmentAwaiting  ShipmentStatus = ""
	ShipmentShipped   ShipmentStatus = "Sevkedildi"
	ShipmentDelivered ShipmentStatus = "Ulaşıldı"
)

// Quote statuses.
const (
	QuoteOpen     = "Açık"
	QuoteAccepted = "Kabul Edildi"
)

// Proforma is the typed view of a proforma row.
type Proforma struct {
	ID           string         `json:"id"`
	CustomerName string         `json:"customer_name"`
	ProformaNo   string         `json:"proforma_no"`
	Date         string         `json:"date"`
	Amount       any            `json:"amount"`
	Status       Status         `json:"status"`
	Shipment     ShipmentStatus `json:"shipment_status"`
	OrderForm    string         `json:"order_form"`
	DueDate      string         `json:"due_date"`
	ShipDate     string         `json:"ship_date"`
	DeliveryDate string         `json:"delivery_date"`
	Note         string         `json:"note"`
}

// FromRow builds the typed view from a raw row.
func FromRow(row store.Row) Proforma {
	return Proforma{
		ID:           row.ID(),
		CustomerName: row.String(FieldCustomerName),
		ProformaNo:   row.String(FieldProformaNo),
		Date:         row.String(FieldDate),
		Amount:       row[FieldAmount],
		Status:       Status(row.String(FieldStatus)),
		Shipment:     ShipmentStatus(row.String(FieldShipmentStatus)),
		OrderForm:    row.String(FieldOrderForm),
		DueDate:      row.String(FieldDueDate),
		ShipDate:     row.String(FieldShipDate),
		DeliveryDate: row.String(FieldDeliveryDate),
		Note:         row.String(FieldNote),
	}
}

// CanConvert reports whether the document may become an order.
func (p Proforma) CanConvert() bool {
	return p.Status == StatusPending
}

// CanShip reports whether the order may leave the factory.
func (p Proforma) CanShip() bool {
	return p.Status == StatusConverted && p.Shipment == ShipmentAwaiting
}

// CanRecall reports whether the shipment may be pulled back to the
// awaiting-shipment queue.
func (p Proforma) CanRecall() bool {
	return p.Status == StatusConverted && p.Shipment == ShipmentShipped
}

// CanDeliver reports whether the shipment may be marked as arrived.
func (p Proforma) CanDeliver() bool {
	return p.Status == StatusConverted && p.Shipment == ShipmentShipped
}

// CanReturnToShipping reports whether a delivered order may be put back on
// the road.
func (p Proforma) CanReturnToShipping() bool {
	return p.Status == StatusConverted && p.Shipment == ShipmentDelivered
}

// CanUpdateDueDate reports whether the production due date may change: only
// while the order still awaits shipment.
func (p Proforma) CanUpdateDueDate() bool {
	return p.Status == StatusConverted && p.Shipment == ShipmentAwaiting
}

func today() string {
	return time.Now().Format(DateLayout)
}
