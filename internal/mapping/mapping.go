package mapping

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"

	"github.com/SHDeniz/IIEV-Ultra/internal/extract"
	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
	"github.com/SHDeniz/IIEV-Ultra/internal/xmlpath"
)

// mapper accumulates recoverable findings while a document is normalised.
type mapper struct {
	findings []report.Finding
}

// warn is the sink for optional values that failed to parse.
func (m *mapper) warn(path, value string) {
	m.findings = append(m.findings, report.Finding{
		Severity: report.SeverityWarning,
		Code:     report.CodeMapInvalidValue,
		Message:  fmt.Sprintf("unparsable optional value %q, default used", value),
		Location: path,
		Actual:   value,
	})
}

// checkVATPrefix flags VAT ids whose two-letter prefix is not a known
// country. A suspicious prefix stays a warning; the business stage decides
// what an unusable VAT id means.
func (m *mapper) checkVATPrefix(vatID, role string) {
	if vatID == "" {
		return
	}
	if prefix := model.VATCountryPrefix(vatID); !model.KnownCountry(prefix) {
		m.findings = append(m.findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeMapInvalidValue,
			Message:  fmt.Sprintf("VAT id %q of %s has no recognised country prefix", vatID, role),
			Location: role,
			Actual:   vatID,
		})
	}
}

// bankDetails normalises an IBAN and verifies its checksum. A failing
// checksum is an error finding; an unknown country prefix with a valid
// checksum only warns.
func (m *mapper) bankDetails(iban, bic, location string) model.BankDetails {
	normalised := model.NormalizeIBAN(iban)
	if err := model.ValidateIBAN(normalised); err != nil {
		m.findings = append(m.findings, report.Finding{
			Severity: report.SeverityError,
			Code:     report.CodeMapInvalidValue,
			Message:  fmt.Sprintf("IBAN fails checksum validation: %v", err),
			Location: location,
			Actual:   normalised,
		})
	} else if len(normalised) >= 2 && !model.KnownCountry(normalised[:2]) {
		m.findings = append(m.findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeMapInvalidValue,
			Message:  fmt.Sprintf("IBAN country prefix %q is not recognised", normalised[:2]),
			Location: location,
			Actual:   normalised,
		})
	}
	return model.BankDetails{IBAN: normalised, BIC: bic}
}

// unitPrice divides the price amount by its basis quantity. A missing basis
// defaults to 1; a zero basis is a permanent mapping fault.
func unitPrice(price *cxpath.Context, amountPath, basisPath string, warn xmlpath.WarnFunc) (decimal.Decimal, error) {
	amount, err := xmlpath.MandatoryDecimal(price, amountPath)
	if err != nil {
		return decimal.Zero, err
	}
	basis := xmlpath.Decimal(price, basisPath, decimal.NewFromInt(1), warn)
	if basis.IsZero() {
		return decimal.Zero, &xmlpath.MappingError{
			Path:  basisPath,
			Value: "0",
			Err:   errors.New("basis quantity of zero makes the unit price undefined"),
		}
	}
	return amount.Div(basis), nil
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// prefixed extends the path of a MappingError with its document context.
func prefixed(prefix string, err error) error {
	var me *xmlpath.MappingError
	if errors.As(err, &me) {
		return &xmlpath.MappingError{Path: prefix + me.Path, Value: me.Value, Err: me.Err}
	}
	return err
}

// Map dispatches the routed document to the matching mapper, cross-checks
// the declared format against the observed syntax, and translates mapper
// faults into findings. A nil invoice with a FATAL finding means the
// document is permanently unmappable.
func Map(res *extract.Result) (*model.Invoice, []report.Finding) {
	var findings []report.Finding

	observedCII := res.Syntax == extract.SyntaxCII
	if res.Format != model.FormatUnknown && res.Format.IsCII() != observedCII {
		findings = append(findings, report.Finding{
			Severity: report.SeverityWarning,
			Code:     report.CodeMapInvalidValue,
			Message: fmt.Sprintf("declared format %s disagrees with observed syntax %s, proceeding with observed",
				res.Format, res.Syntax),
		})
	}

	var (
		inv        *model.Invoice
		mapperWarn []report.Finding
		err        error
	)
	if observedCII {
		var root *cxpath.Context
		root, err = ParseCII(res.XML)
		if err == nil {
			inv, mapperWarn, err = MapCII(root)
		}
	} else {
		var root *cxpath.Context
		root, err = ParseUBL(res.XML)
		if err == nil {
			inv, mapperWarn, err = MapUBL(root, res.Syntax)
		}
	}
	findings = append(findings, mapperWarn...)

	if err != nil {
		findings = append(findings, faultFinding(err))
		return nil, findings
	}
	return inv, findings
}

// faultFinding converts a mapper fault into its FATAL catalogue finding.
func faultFinding(err error) report.Finding {
	var me *xmlpath.MappingError
	if errors.As(err, &me) {
		code := report.CodeMapInvalidValue
		if me.Missing() {
			code = report.CodeMapFieldMissing
		}
		return report.Finding{
			Severity: report.SeverityFatal,
			Code:     code,
			Message:  me.Error(),
			Location: me.Path,
			Actual:   me.Value,
		}
	}
	return report.Finding{
		Severity: report.SeverityFatal,
		Code:     report.CodeMapInvalidValue,
		Message:  err.Error(),
	}
}
