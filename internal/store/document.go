package store

// Table names inside the shared document. One table per entity kind,
// matching the sheets of the workbook the company shares.
const (
	TableCustomers       = "customers"
	TableQuotes          = "quotes"
	TableProformas       = "proformas"
	TableInvoices        = "invoices"
	TableOrders          = "orders"
	TableETA             = "eta"
	TableFairs           = "fairs"
	TableInteractions    = "interactions"
	TablePaymentPlans    = "paymentPlans"
	TableGoals           = "goals"
	TableRepresentatives = "representatives"
)

// FieldID is the stable row identifier column present in every table.
const FieldID = "ID"

// Row is a single record of a table. Column headers are kept verbatim from
// the shared workbook, so domain packages address fields like "Müşteri Adı"
// or "Proforma No" directly.
type Row map[string]any

// Document is the whole shared workbook: every table, every row.
type Document map[string][]Row

// Tables returns the standard table set of an empty document.
func Tables() []string {
	return []string{
		TableCustomers,
		TableQuotes,
		TableProformas,
		TableInvoices,
		TableOrders,
		TableETA,
		TableFairs,
		TableInteractions,
		TablePaymentPlans,
		TableGoals,
		TableRepresentatives,
	}
}

// KnownTable reports whether name is one of the document's tables.
func KnownTable(name string) bool {
	for _, t := range Tables() {
		if t == name {
			return true
		}
	}
	return false
}

// ID returns the row's stable identifier, or "" when unassigned.
func (r Row) ID() string {
	if v, ok := r[FieldID].(string); ok {
		return v
	}
	return ""
}

// String returns the named field as a string; non-string values and missing
// fields yield "".
func (r Row) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// Clone deep-copies the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func cloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Clone deep-copies the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for name, rows := range d {
		out[name] = cloneRows(rows)
	}
	return out
}

func emptyDocument() Document {
	doc := make(Document, len(Tables()))
	for _, t := range Tables() {
		doc[t] = []Row{}
	}
	return doc
}
