package erp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAdapter implements the read-only contract over a PostgreSQL
// replica of the ERP tables. The pool must be created with credentials
// that carry no write privilege.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func (a *PostgresAdapter) FindVendorByVATID(ctx context.Context, vatID string) (*Vendor, error) {
	if vatID == "" {
		return nil, nil
	}
	var v Vendor
	var status string
	err := a.pool.QueryRow(ctx,
		`SELECT vendor_id, vat_id, status FROM vendor_master WHERE vat_id = $1`,
		vatID).Scan(&v.ID, &v.VATID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vendor lookup for %s: %w", vatID, err)
	}
	v.Active = status == "ACTIVE"
	return &v, nil
}

func (a *PostgresAdapter) IsDuplicateInvoice(ctx context.Context, vendorID, invoiceNumber string) (bool, error) {
	var count int
	err := a.pool.QueryRow(ctx,
		`SELECT count(*) FROM invoice_journal WHERE vendor_id = $1 AND external_invoice_number = $2`,
		vendorID, invoiceNumber).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("duplicate check for %s: %w", invoiceNumber, err)
	}
	return count > 0, nil
}

func (a *PostgresAdapter) GetVendorBankDetails(ctx context.Context, vendorID string) ([]BankDetails, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT iban FROM vendor_banks WHERE vendor_id = $1 AND iban <> ''`,
		vendorID)
	if err != nil {
		return nil, fmt.Errorf("bank details for %s: %w", vendorID, err)
	}
	defer rows.Close()

	var details []BankDetails
	for rows.Next() {
		var d BankDetails
		if err := rows.Scan(&d.IBAN); err != nil {
			return nil, fmt.Errorf("bank details for %s: %w", vendorID, err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bank details for %s: %w", vendorID, err)
	}
	return details, nil
}

func (a *PostgresAdapter) GetPurchaseOrder(ctx context.Context, poNumber, vendorID string) (*PurchaseOrder, error) {
	if poNumber == "" {
		return nil, nil
	}

	po := PurchaseOrder{Lines: make(map[string]PurchaseOrderLine)}
	var status string
	err := a.pool.QueryRow(ctx,
		`SELECT po_number, vendor_id, total_net_amount, status FROM purchase_orders WHERE po_number = $1`,
		poNumber).Scan(&po.Number, &po.VendorID, &po.TotalNet, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("purchase order %s: %w", poNumber, err)
	}

	// The order must belong to the invoicing vendor; anything else is
	// treated as not found.
	if po.VendorID != vendorID {
		return nil, nil
	}
	po.Open = status == "OPEN" || status == "PARTIALLY_DELIVERED"

	rows, err := a.pool.Query(ctx,
		`SELECT item_identifier, quantity_ordered, quantity_invoiced FROM purchase_order_lines WHERE po_number = $1`,
		poNumber)
	if err != nil {
		return nil, fmt.Errorf("purchase order lines %s: %w", poNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ItemIdentifier, &l.QuantityOrdered, &l.QuantityInvoiced); err != nil {
			return nil, fmt.Errorf("purchase order lines %s: %w", poNumber, err)
		}
		// Duplicate identifiers on one order aggregate into a single
		// matchable position.
		if existing, ok := po.Lines[l.ItemIdentifier]; ok {
			existing.QuantityOrdered = existing.QuantityOrdered.Add(l.QuantityOrdered)
			existing.QuantityInvoiced = existing.QuantityInvoiced.Add(l.QuantityInvoiced)
			po.Lines[l.ItemIdentifier] = existing
		} else {
			po.Lines[l.ItemIdentifier] = l
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase order lines %s: %w", poNumber, err)
	}
	return &po, nil
}
