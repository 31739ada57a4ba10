// Package validate holds the structural, semantic and arithmetic validation
// stages that run between mapping and the business checks.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// DefaultTolerance is the absolute monetary deviation accepted by the
// arithmetic checks. Rounding differences below it are ignored.
var DefaultTolerance = decimal.RequireFromString("0.02")

// Calc recomputes the invoice totals chain from the line items and the tax
// breakdown and reports every deviation beyond the tolerance. Tax amounts
// are recomputed with banker's rounding at two decimals.
func Calc(inv *model.Invoice, tolerance decimal.Decimal) []report.Finding {
	if tolerance.LessThanOrEqual(decimal.Zero) {
		tolerance = DefaultTolerance
	}

	var findings []report.Finding
	mismatch := func(code, message, location string, expected, actual decimal.Decimal) {
		if actual.Sub(expected).Abs().LessThanOrEqual(tolerance) {
			return
		}
		findings = append(findings, report.Finding{
			Severity: report.SeverityError,
			Code:     code,
			Message:  message,
			Location: location,
			Expected: expected.StringFixed(2),
			Actual:   actual.StringFixed(2),
		})
	}

	lineSum := decimal.Zero
	for _, l := range inv.Lines {
		lineSum = lineSum.Add(l.NetAmount)
	}
	mismatch(report.CodeCalcTotalMismatch,
		"sum of line net amounts disagrees with the line extension total",
		"LineExtensionTotal", lineSum, inv.LineExtensionTotal)

	netTotal := inv.LineExtensionTotal.Sub(inv.AllowanceTotal).Add(inv.ChargeTotal)
	mismatch(report.CodeCalcTotalMismatch,
		"line extension total minus allowances plus charges disagrees with the tax exclusive total",
		"TaxExclusiveTotal", netTotal, inv.TaxExclusiveTotal)

	taxSum := decimal.Zero
	for i, b := range inv.TaxBreakdown {
		taxSum = taxSum.Add(b.TaxAmount)
		if b.CategoryCode == model.TaxReverseCharge || b.Rate.LessThanOrEqual(decimal.Zero) {
			continue
		}
		expected := b.TaxableAmount.Mul(b.Rate).Div(decimal.NewFromInt(100)).RoundBank(2)
		mismatch(report.CodeCalcTaxMismatch,
			fmt.Sprintf("tax amount for category %s at %s%% disagrees with the recomputed value", b.CategoryCode, b.Rate),
			fmt.Sprintf("TaxBreakdown[%d]", i), expected, b.TaxAmount)
	}

	mismatch(report.CodeCalcTaxMismatch,
		"sum of the tax breakdown disagrees with the inclusive/exclusive total difference",
		"TaxInclusiveTotal", inv.TaxExclusiveTotal.Add(taxSum), inv.TaxInclusiveTotal)

	mismatch(report.CodeCalcPayableMismatch,
		"payable amount disagrees with the inclusive total minus prepayments",
		"PayableAmount", inv.TaxInclusiveTotal.Sub(inv.PrepaidAmount), inv.PayableAmount)

	return findings
}
