// Package recon reconciles invoice payments: remaining balances, due-date
// bucketing, and idempotent application of partial remittances. All
// arithmetic clamps instead of rejecting, since negative corrective payments
// are legitimate bookkeeping.
package recon

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/anatolia-crm/anatolia-crm/internal/store"
)

// Invoice field names as they appear in the shared document.
const (
	FieldCustomerName = "Müşteri Adı"
	FieldProformaNo   = "Proforma No"
	FieldInvoiceNo    = "Fatura No"
	FieldInvoiceDate  = "Fatura Tarihi"
	FieldDueDate      = "Vade Tarihi"
	FieldNetTermDays  = "Vade (gün)"
	FieldTotal        = "Tutar"
	FieldPaid         = "Ödenen Tutar"
	FieldPaidFlag     = "Ödendi"
)

// Epsilon is the settlement tolerance: an invoice counts as paid when the
// open balance is at most one cent.
const Epsilon = 0.01

// DateLayout is the document's date format.
const DateLayout = "2006-01-02"

// ErrMalformedAmount indicates a value that cannot be read as money.
var ErrMalformedAmount = errors.New("malformed amount")

// Invoice is the typed view of an invoice row.
type Invoice struct {
	ID           string
	CustomerName string
	ProformaNo   string
	InvoiceNo    string
	Total        float64
	Paid         float64
	PaidFlag     bool
	DueDate      time.Time
}

// FromRow builds the typed view from a raw row, tolerating the heterogeneous
// encodings bulk-imported data carries.
func FromRow(row store.Row) Invoice {
	inv := Invoice{
		ID:           row.ID(),
		CustomerName: row.String(FieldCustomerName),
		ProformaNo:   row.String(FieldProformaNo),
		InvoiceNo:    row.String(FieldInvoiceNo),
		Total:        AmountOrZero(row[FieldTotal]),
		Paid:         AmountOrZero(row[FieldPaid]),
		PaidFlag:     NormalizePaidFlag(row[FieldPaidFlag]),
	}
	if due, err := time.Parse(DateLayout, row.String(FieldDueDate)); err == nil {
		inv.DueDate = due
	}
	return inv
}

// PaymentPatch renders the fields ApplyPayment changes back into row form.
func (inv Invoice) PaymentPatch() store.Row {
	return store.Row{
		FieldPaid:     inv.Paid,
		FieldPaidFlag: inv.PaidFlag,
	}
}

// Balance is the open amount of the invoice, never negative.
func (inv Invoice) Balance() float64 {
	return math.Max(inv.Total-inv.Paid, 0)
}

// ApplyPayment records a remittance delta against the invoice. The new paid
// amount is clamped into [0, total]; markPaid forces full settlement
// regardless of delta. The paid flag follows the Epsilon tolerance unless
// forced. Amounts are rounded to two decimals after every application.
func ApplyPayment(inv Invoice, delta float64, markPaid bool) Invoice {
	paid := math.Max(math.Min(inv.Paid+delta, inv.Total), 0)
	if markPaid || paid >= math.Max(inv.Total-Epsilon, 0) {
		paid = inv.Total
		inv.PaidFlag = true
	} else {
		inv.PaidFlag = false
	}
	inv.Paid = round2(paid)
	return inv
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DueBucket classifies an open invoice by how close its due date is.
type DueBucket int

const (
	// Paid invoices fall outside every bucket.
	BucketNone DueBucket = iota
	BucketOverdue
	BucketDueToday
	BucketDueSoon // within three days
	BucketFuture
)

func (b DueBucket) String() string {
	switch b {
	case BucketOverdue:
		return "overdue"
	case BucketDueToday:
		return "due_today"
	case BucketDueSoon:
		return "due_soon"
	case BucketFuture:
		return "future"
	default:
		return "none"
	}
}

// ClassifyDue buckets the invoice by days remaining until its due date.
func ClassifyDue(inv Invoice, today time.Time) DueBucket {
	if inv.PaidFlag {
		return BucketNone
	}
	days := daysBetween(today, inv.DueDate)
	switch {
	case days < 0:
		return BucketOverdue
	case days == 0:
		return BucketDueToday
	case days <= 3:
		return BucketDueSoon
	default:
		return BucketFuture
	}
}

func daysBetween(from, to time.Time) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

var turkishUpper = cases.Upper(language.Turkish)

// NormalizePaidFlag reduces the heterogeneous truthy encodings found in the
// document (bool, "true"/"false" in any case, 1/0, the Turkish DOĞRU/YANLIŞ
// tokens) to a canonical bool. Unrecognized values are false.
func NormalizePaidFlag(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v == 1
	case int:
		return v == 1
	case string:
		switch turkishUpper.String(strings.TrimSpace(v)) {
		case "TRUE", "DOĞRU", "1":
			return true
		}
		return false
	default:
		return false
	}
}

var amountCleaner = strings.NewReplacer(
	"USD", "", "EUR", "", "TL", "", "TRY", "",
	"$", "", "€", "", "₺", "", " ", "",
)

// ParseAmount reads a document value as money. String values may carry
// currency symbols and Turkish digit grouping ("1.234,56").
func ParseAmount(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case nil:
		return 0, nil
	case string:
		cleaned := amountCleaner.Replace(strings.TrimSpace(turkishUpper.String(v)))
		if cleaned == "" {
			return 0, nil
		}
		if strings.Contains(cleaned, ",") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrMalformedAmount, raw)
	}
}

// AmountOrZero is the lenient variant used when reading existing rows:
// unreadable values count as zero, matching how the workbook's own formulas
// treat garbage cells.
func AmountOrZero(raw any) float64 {
	n, err := ParseAmount(raw)
	if err != nil {
		return 0
	}
	return n
}
