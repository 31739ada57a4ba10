// Package erp is the read-only adapter onto the accounting system backing
// the business checks: vendor master data, registered bank accounts, the
// invoice journal and purchase orders.
package erp

import (
	"context"

	"github.com/shopspring/decimal"
)

// Vendor is one creditor from the vendor master. Inactive vendors are still
// returned by lookups; the business stage decides what inactivity means.
type Vendor struct {
	ID     string
	VATID  string
	Active bool
}

// BankDetails is one registered bank account of a vendor.
type BankDetails struct {
	IBAN string
}

// PurchaseOrderLine is one order position, aggregated by item identifier.
type PurchaseOrderLine struct {
	ItemIdentifier   string
	QuantityOrdered  decimal.Decimal
	QuantityInvoiced decimal.Decimal
}

// QuantityOpen is the quantity still billable on this position.
func (l PurchaseOrderLine) QuantityOpen() decimal.Decimal {
	return l.QuantityOrdered.Sub(l.QuantityInvoiced)
}

// PurchaseOrder is an order header with its positions keyed by the
// HAN/EAN/GTIN item identifier for the line match.
type PurchaseOrder struct {
	Number   string
	VendorID string
	TotalNet decimal.Decimal
	Open     bool
	Lines    map[string]PurchaseOrderLine
}

// Adapter is the read-only contract against the ERP store. A query failure
// is a transient error the driver retries; a query returning no rows is a
// nil result, not an error.
type Adapter interface {
	// FindVendorByVATID looks a vendor up by VAT id. Inactive vendors are
	// returned with Active set to false; an unknown VAT id returns nil.
	FindVendorByVATID(ctx context.Context, vatID string) (*Vendor, error)

	// IsDuplicateInvoice reports whether the journal already holds this
	// exact external invoice number for the vendor. Case-sensitive.
	IsDuplicateInvoice(ctx context.Context, vendorID, invoiceNumber string) (bool, error)

	// GetVendorBankDetails returns every IBAN registered for the vendor.
	GetVendorBankDetails(ctx context.Context, vendorID string) ([]BankDetails, error)

	// GetPurchaseOrder fetches an order with its positions. A missing order
	// or one belonging to a different vendor returns nil; the vendor scope
	// is a safety cross-check, not an error path.
	GetPurchaseOrder(ctx context.Context, poNumber, vendorID string) (*PurchaseOrder, error)
}
