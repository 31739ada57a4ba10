package validate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func consistentInvoice() *model.Invoice {
	return &model.Invoice{
		Lines: []model.InvoiceLine{
			{LineID: "1", NetAmount: dec("100.00")},
			{LineID: "2", NetAmount: dec("50.00")},
		},
		LineExtensionTotal: dec("150.00"),
		TaxExclusiveTotal:  dec("150.00"),
		TaxInclusiveTotal:  dec("178.50"),
		PayableAmount:      dec("178.50"),
		TaxBreakdown: []model.TaxBreakdown{
			{CategoryCode: "S", Rate: dec("19"), TaxableAmount: dec("150.00"), TaxAmount: dec("28.50")},
		},
	}
}

func codes(findings []report.Finding) []string {
	var out []string
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func TestCalcConsistent(t *testing.T) {
	if findings := Calc(consistentInvoice(), DefaultTolerance); len(findings) != 0 {
		t.Errorf("consistent invoice must pass, got %+v", findings)
	}
}

func TestCalcWithinTolerance(t *testing.T) {
	inv := consistentInvoice()
	// One cent of rounding drift is acceptable.
	inv.TaxBreakdown[0].TaxAmount = dec("28.51")
	inv.TaxInclusiveTotal = dec("178.51")
	inv.PayableAmount = dec("178.51")
	if findings := Calc(inv, DefaultTolerance); len(findings) != 0 {
		t.Errorf("drift within tolerance must pass, got %+v", findings)
	}
}

func TestCalcLineSumMismatch(t *testing.T) {
	inv := consistentInvoice()
	inv.Lines[1].NetAmount = dec("40.00")
	findings := Calc(inv, DefaultTolerance)
	if len(findings) != 1 || findings[0].Code != report.CodeCalcTotalMismatch {
		t.Fatalf("want one %s, got %v", report.CodeCalcTotalMismatch, codes(findings))
	}
	if findings[0].Expected != "140.00" || findings[0].Actual != "150.00" {
		t.Errorf("finding must carry both amounts: %+v", findings[0])
	}
	if findings[0].Severity != report.SeverityError {
		t.Errorf("arithmetic deviations are errors, got %s", findings[0].Severity)
	}
}

func TestCalcTaxRecomputation(t *testing.T) {
	inv := consistentInvoice()
	inv.TaxBreakdown[0].TaxAmount = dec("30.00")
	inv.TaxInclusiveTotal = dec("180.00")
	inv.PayableAmount = dec("180.00")
	findings := Calc(inv, DefaultTolerance)
	if len(findings) != 1 || findings[0].Code != report.CodeCalcTaxMismatch {
		t.Fatalf("want one %s, got %v", report.CodeCalcTaxMismatch, codes(findings))
	}
}

func TestCalcBankersRounding(t *testing.T) {
	// 19% of 33.25 is 6.3175, which rounds to 6.32 half-to-even.
	inv := &model.Invoice{
		Lines:              []model.InvoiceLine{{LineID: "1", NetAmount: dec("33.25")}},
		LineExtensionTotal: dec("33.25"),
		TaxExclusiveTotal:  dec("33.25"),
		TaxInclusiveTotal:  dec("39.57"),
		PayableAmount:      dec("39.57"),
		TaxBreakdown: []model.TaxBreakdown{
			{CategoryCode: "S", Rate: dec("19"), TaxableAmount: dec("33.25"), TaxAmount: dec("6.32")},
		},
	}
	if findings := Calc(inv, DefaultTolerance); len(findings) != 0 {
		t.Errorf("half-to-even rounding must be accepted, got %+v", findings)
	}
}

func TestCalcReverseChargeSkipsRecomputation(t *testing.T) {
	inv := &model.Invoice{
		Lines:              []model.InvoiceLine{{LineID: "1", NetAmount: dec("500.00")}},
		LineExtensionTotal: dec("500.00"),
		TaxExclusiveTotal:  dec("500.00"),
		TaxInclusiveTotal:  dec("500.00"),
		PayableAmount:      dec("500.00"),
		TaxBreakdown: []model.TaxBreakdown{
			{CategoryCode: model.TaxReverseCharge, Rate: decimal.Zero, TaxableAmount: dec("500.00"), TaxAmount: decimal.Zero},
		},
	}
	if findings := Calc(inv, DefaultTolerance); len(findings) != 0 {
		t.Errorf("reverse charge invoice must pass without tax recomputation, got %+v", findings)
	}
}

func TestCalcPayableMismatch(t *testing.T) {
	inv := consistentInvoice()
	inv.PrepaidAmount = dec("50.00")
	// Payable was not reduced by the prepayment.
	findings := Calc(inv, DefaultTolerance)
	if len(findings) != 1 || findings[0].Code != report.CodeCalcPayableMismatch {
		t.Fatalf("want one %s, got %v", report.CodeCalcPayableMismatch, codes(findings))
	}
	if findings[0].Expected != "128.50" {
		t.Errorf("expected amount must account for the prepayment: %+v", findings[0])
	}
}

func TestCalcMultipleDeviations(t *testing.T) {
	inv := consistentInvoice()
	inv.Lines[0].NetAmount = dec("90.00")
	inv.PayableAmount = dec("170.00")
	findings := Calc(inv, DefaultTolerance)
	if len(findings) != 2 {
		t.Fatalf("independent checks must all report, got %v", codes(findings))
	}
}
