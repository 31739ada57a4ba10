package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

const svrlSample = `<?xml version="1.0" encoding="UTF-8"?>
<svrl:schematron-output xmlns:svrl="http://purl.oclc.org/dsdl/svrl">
  <svrl:active-pattern document="input.xml"/>
  <svrl:fired-rule context="/ubl:Invoice"/>
  <svrl:failed-assert id="BR-DE-1" test="cac:PaymentMeans" location="/*[local-name()='Invoice']">
    <svrl:text>An invoice must contain payment instructions.</svrl:text>
  </svrl:failed-assert>
  <svrl:failed-assert id="BR-DE-18" flag="warning" test="cbc:PaymentTerms" location="/*[local-name()='Invoice']">
    <svrl:text>Payment terms should be given.</svrl:text>
  </svrl:failed-assert>
  <svrl:successful-report id="BR-DE-26" role="warning" location="/*[local-name()='Invoice']">
    <svrl:text>Self-billing detected.</svrl:text>
  </svrl:successful-report>
  <svrl:successful-report id="BR-DE-27" location="/*[local-name()='Invoice']">
    <svrl:text>Report without a role is ignored.</svrl:text>
  </svrl:successful-report>
</svrl:schematron-output>`

func writeSVRL(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.xml-report.xml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseSVRL(t *testing.T) {
	findings, err := parseSVRL(writeSVRL(t, svrlSample))
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 3 {
		t.Fatalf("want 3 findings, got %d: %+v", len(findings), findings)
	}

	if findings[0].Severity != report.SeverityError || findings[0].Code != "SCHEMATRON_BR-DE-1" {
		t.Errorf("failed assert must be an error with the rule id as code: %+v", findings[0])
	}
	if findings[0].Message != "An invoice must contain payment instructions." {
		t.Errorf("assertion text not carried: %+v", findings[0])
	}
	if findings[0].Location == "" {
		t.Error("assertion location must be preserved")
	}

	if findings[1].Severity != report.SeverityWarning {
		t.Errorf("warning-flagged assert must downgrade to warning: %+v", findings[1])
	}
	if findings[2].Severity != report.SeverityWarning || findings[2].Code != "SCHEMATRON_BR-DE-26" {
		t.Errorf("successful report with warning role: %+v", findings[2])
	}
}

func TestParseSVRLCleanReport(t *testing.T) {
	clean := `<?xml version="1.0"?>
<svrl:schematron-output xmlns:svrl="http://purl.oclc.org/dsdl/svrl">
  <svrl:active-pattern document="input.xml"/>
  <svrl:fired-rule context="/ubl:Invoice"/>
</svrl:schematron-output>`
	findings, err := parseSVRL(writeSVRL(t, clean))
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("clean report must yield no findings, got %+v", findings)
	}
}

func TestParseSVRLUnreadable(t *testing.T) {
	if _, err := parseSVRL(filepath.Join(t.TempDir(), "missing.xml")); err == nil {
		t.Error("missing report must fail")
	}
}

func TestKositValidatorMissingAssets(t *testing.T) {
	v := NewKositValidator(NewAssets(t.TempDir()), 0)
	_, err := v.Validate(t.Context(), "tx-1", []byte("<Invoice/>"))
	if !errors.Is(err, ErrKositUnavailable) {
		t.Fatalf("want ErrKositUnavailable, got %v", err)
	}
}
