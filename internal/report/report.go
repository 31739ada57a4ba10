// Package report defines the structured validation report assembled by the
// pipeline: one ordered step per stage, each carrying zero or more findings
// from a closed code catalogue.
package report

import "time"

// Severity of a single finding.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
)

// Outcome of one validation step.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeWarnings Outcome = "WARNINGS"
	OutcomeErrors   Outcome = "ERRORS"
	OutcomeFatal    Outcome = "FATAL"
	OutcomeSkipped  Outcome = "SKIPPED"
)

// Finding codes. The catalogue is closed; stages never invent ad-hoc codes.
// Schematron findings use the rule id of the failed assertion as code.
const (
	CodeXSDViolation     = "XSD_VIOLATION"
	CodeXSDSchemaMissing = "XSD_SCHEMA_MISSING"
	CodeXMLSyntaxError   = "XML_SYNTAX_ERROR"
	CodeMapFieldMissing  = "MAP_FIELD_MISSING"
	CodeMapInvalidValue  = "MAP_INVALID_VALUE"

	CodeNoEmbeddedXML    = "NO_EMBEDDED_XML"
	CodeKositUnavailable = "KOSIT_UNAVAILABLE"
	CodePriorStageFatal  = "PRIOR_STAGE_FATAL"

	CodeCalcTotalMismatch   = "CALC_TOTAL_MISMATCH"
	CodeCalcTaxMismatch     = "CALC_TAX_MISMATCH"
	CodeCalcPayableMismatch = "CALC_PAYABLE_MISMATCH"

	CodeERPVendorUnknown    = "ERP_VENDOR_UNKNOWN"
	CodeERPVendorInactive   = "ERP_VENDOR_INACTIVE"
	CodeERPDuplicate        = "ERP_DUPLICATE"
	CodeERPBankMismatch     = "ERP_BANK_MISMATCH"
	CodeERPPOUnknown        = "ERP_PO_UNKNOWN"
	CodeERPPOClosed         = "ERP_PO_CLOSED"
	CodeERPPOOverbill       = "ERP_PO_OVERBILL"
	CodeERPPOPartial        = "ERP_PO_PARTIAL"
	CodeERPLineUnknown      = "ERP_LINE_UNKNOWN"
	CodeERPQtyExceeded      = "ERP_QTY_EXCEEDED"
	CodeERPLineUnidentified = "ERP_LINE_UNIDENTIFIED"
)

// Finding is one validation result. Location is an XPath pointer or a line id
// where one applies; Expected/Actual carry the value pair for mismatches.
type Finding struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location string   `json:"location,omitempty"`
	Expected string   `json:"expected,omitempty"`
	Actual   string   `json:"actual,omitempty"`
}

// Step is the outcome of one pipeline stage.
type Step struct {
	Name     string        `json:"name"`
	Outcome  Outcome       `json:"outcome"`
	Findings []Finding     `json:"findings,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
}

// OutcomeOf derives the step outcome from its findings.
func OutcomeOf(findings []Finding) Outcome {
	out := OutcomeSuccess
	for _, f := range findings {
		switch f.Severity {
		case SeverityFatal:
			return OutcomeFatal
		case SeverityError:
			out = OutcomeErrors
		case SeverityWarning:
			if out == OutcomeSuccess {
				out = OutcomeWarnings
			}
		}
	}
	return out
}

// Report is the aggregate of one processing run. Steps are append-only and
// ordered as the pipeline executed them.
type Report struct {
	TransactionID  string    `json:"transaction_id"`
	InvoiceNumber  string    `json:"invoice_number,omitempty"`
	DetectedFormat string    `json:"detected_format,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	Steps          []Step    `json:"steps"`
}

// AddStep appends a stage result with the outcome derived from findings.
func (r *Report) AddStep(name string, started time.Time, findings []Finding) Step {
	step := Step{
		Name:     name,
		Outcome:  OutcomeOf(findings),
		Findings: findings,
		Duration: time.Since(started),
	}
	r.Steps = append(r.Steps, step)
	return step
}

// AddSkipped appends a SKIPPED stage, optionally with an explanatory finding.
func (r *Report) AddSkipped(name string, findings ...Finding) {
	r.Steps = append(r.Steps, Step{Name: name, Outcome: OutcomeSkipped, Findings: findings})
}

// HasFatal reports whether any step carries a FATAL finding.
func (r *Report) HasFatal() bool {
	for _, s := range r.Steps {
		for _, f := range s.Findings {
			if f.Severity == SeverityFatal {
				return true
			}
		}
	}
	return false
}

// HasErrors reports whether any step carries an ERROR finding.
func (r *Report) HasErrors() bool {
	for _, s := range r.Steps {
		for _, f := range s.Findings {
			if f.Severity == SeverityError {
				return true
			}
		}
	}
	return false
}

// Findings returns all findings across all steps in order.
func (r *Report) Findings() []Finding {
	var all []Finding
	for _, s := range r.Steps {
		all = append(all, s.Findings...)
	}
	return all
}
