// Package business runs the ERP-backed checks on a mapped invoice: vendor
// identity, duplicate detection, bank account membership and the three-way
// match against the referenced purchase order.
package business

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SHDeniz/IIEV-Ultra/internal/erp"
	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// Result carries the facts the driver denormalises onto the transaction.
type Result struct {
	VendorID  string
	Duplicate bool
	Findings  []report.Finding
}

// Validator holds the ERP adapter and the monetary tolerance shared with
// the arithmetic stage.
type Validator struct {
	adapter   erp.Adapter
	tolerance decimal.Decimal
}

func NewValidator(adapter erp.Adapter, tolerance decimal.Decimal) *Validator {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = decimal.RequireFromString("0.02")
	}
	return &Validator{adapter: adapter, tolerance: tolerance}
}

// Validate runs the checks in their fixed order. An unknown vendor and a
// duplicate invoice stop the stage early; every other deviation is recorded
// and the remaining checks continue. A returned error is a transient ERP
// failure the driver retries.
func (v *Validator) Validate(ctx context.Context, inv *model.Invoice) (*Result, error) {
	res := &Result{}

	vendor, err := v.adapter.FindVendorByVATID(ctx, inv.Seller.VATID)
	if err != nil {
		return nil, fmt.Errorf("vendor lookup: %w", err)
	}
	if vendor == nil {
		res.add(report.Finding{
			Severity: report.SeverityError,
			Code:     report.CodeERPVendorUnknown,
			Message:  fmt.Sprintf("no vendor registered for VAT id %q", inv.Seller.VATID),
			Actual:   inv.Seller.VATID,
		})
		return res, nil
	}
	res.VendorID = vendor.ID
	if !vendor.Active {
		res.add(report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeERPVendorInactive,
			Message:  fmt.Sprintf("vendor %s is flagged inactive in the vendor master", vendor.ID),
		})
	}

	res.Duplicate, err = v.adapter.IsDuplicateInvoice(ctx, vendor.ID, inv.InvoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if res.Duplicate {
		res.add(report.Finding{
			Severity: report.SeverityFatal,
			Code:     report.CodeERPDuplicate,
			Message:  fmt.Sprintf("invoice number %q already posted for vendor %s", inv.InvoiceNumber, vendor.ID),
		})
		return res, nil
	}

	if err := v.checkBankDetails(ctx, vendor.ID, inv, res); err != nil {
		return nil, err
	}
	if err := v.checkPurchaseOrder(ctx, vendor.ID, inv, res); err != nil {
		return nil, err
	}
	return res, nil
}

// checkBankDetails requires every IBAN on the invoice to be registered for
// the vendor. A mismatch does not stop the stage; the terminal outcome
// mapping turns it into a manual review.
func (v *Validator) checkBankDetails(ctx context.Context, vendorID string, inv *model.Invoice, res *Result) error {
	if len(inv.PaymentDetails) == 0 {
		return nil
	}
	registered, err := v.adapter.GetVendorBankDetails(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("bank details: %w", err)
	}
	known := make(map[string]bool, len(registered))
	for _, b := range registered {
		known[model.NormalizeIBAN(b.IBAN)] = true
	}
	for _, d := range inv.PaymentDetails {
		if !known[d.IBAN] {
			res.add(report.Finding{
				Severity: report.SeverityError,
				Code:     report.CodeERPBankMismatch,
				Message:  "payee IBAN is not registered for this vendor",
				Actual:   d.IBAN,
			})
		}
	}
	return nil
}

func (v *Validator) checkPurchaseOrder(ctx context.Context, vendorID string, inv *model.Invoice, res *Result) error {
	if inv.POReference == nil || inv.POReference.ID == "" {
		res.add(report.Finding{
			Severity: report.SeverityInfo,
			Code:     report.CodeERPPOUnknown,
			Message:  "no purchase order referenced, three-way match skipped",
		})
		return nil
	}
	poNumber := inv.POReference.ID

	po, err := v.adapter.GetPurchaseOrder(ctx, poNumber, vendorID)
	if err != nil {
		return fmt.Errorf("purchase order: %w", err)
	}
	if po == nil {
		res.add(report.Finding{
			Severity: report.SeverityError,
			Code:     report.CodeERPPOUnknown,
			Message:  fmt.Sprintf("purchase order %q not found for vendor %s", poNumber, vendorID),
			Actual:   poNumber,
		})
		return nil
	}
	if !po.Open {
		res.add(report.Finding{
			Severity: report.SeverityError,
			Code:     report.CodeERPPOClosed,
			Message:  fmt.Sprintf("purchase order %q is not open for invoicing", poNumber),
			Actual:   poNumber,
		})
		return nil
	}

	v.matchHeader(inv, po, res)
	v.matchLines(inv, po, res)
	return nil
}

// matchHeader compares the invoice net amount against the order volume.
// Billing less than ordered is permitted partial billing; billing more is
// an overbill.
func (v *Validator) matchHeader(inv *model.Invoice, po *erp.PurchaseOrder, res *Result) {
	diff := inv.TaxExclusiveTotal.Sub(po.TotalNet)
	if diff.Abs().LessThanOrEqual(v.tolerance) {
		return
	}
	if diff.IsNegative() {
		res.add(report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeERPPOPartial,
			Message:  fmt.Sprintf("invoice bills less than purchase order %s, assuming partial billing", po.Number),
			Expected: po.TotalNet.StringFixed(2),
			Actual:   inv.TaxExclusiveTotal.StringFixed(2),
		})
		return
	}
	res.add(report.Finding{
		Severity: report.SeverityError,
		Code:     report.CodeERPPOOverbill,
		Message:  fmt.Sprintf("invoice exceeds the net volume of purchase order %s", po.Number),
		Expected: po.TotalNet.StringFixed(2),
		Actual:   inv.TaxExclusiveTotal.StringFixed(2),
	})
}

// matchLines joins invoice lines to order positions by item identifier and
// enforces the open quantity per position.
func (v *Validator) matchLines(inv *model.Invoice, po *erp.PurchaseOrder, res *Result) {
	for _, line := range inv.Lines {
		if line.ItemIdentifier == "" {
			res.add(report.Finding{
				Severity: report.SeverityWarning,
				Code:     report.CodeERPLineUnidentified,
				Message:  "line has no item identifier, position match not possible",
				Location: line.LineID,
			})
			continue
		}
		poLine, ok := po.Lines[line.ItemIdentifier]
		if !ok {
			res.add(report.Finding{
				Severity: report.SeverityError,
				Code:     report.CodeERPLineUnknown,
				Message:  fmt.Sprintf("item %q is not on purchase order %s", line.ItemIdentifier, po.Number),
				Location: line.LineID,
				Actual:   line.ItemIdentifier,
			})
			continue
		}
		if line.Quantity.GreaterThan(poLine.QuantityOpen()) {
			res.add(report.Finding{
				Severity: report.SeverityError,
				Code:     report.CodeERPQtyExceeded,
				Message:  fmt.Sprintf("billed quantity exceeds the open quantity of item %q", line.ItemIdentifier),
				Location: line.LineID,
				Expected: poLine.QuantityOpen().String(),
				Actual:   line.Quantity.String(),
			})
		}
	}
}

func (r *Result) add(f report.Finding) {
	r.Findings = append(r.Findings, f)
}
