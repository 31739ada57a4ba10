package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// ErrKositUnavailable marks a semantic validation run that could not take
// place: missing validator assets, no Java runtime, or a timeout. The driver
// marks the stage SKIPPED and continues; this never fails a transaction.
var ErrKositUnavailable = errors.New("KoSIT validator unavailable")

// DefaultKositTimeout bounds one validator run.
const DefaultKositTimeout = 120 * time.Second

// KositValidator runs the external KoSIT validation tool against the invoice
// XML and translates its SVRL report into findings. The engine is a Java
// subprocess; one run is scoped to one temporary directory that is removed
// on every exit path.
type KositValidator struct {
	assets  *Assets
	timeout time.Duration
}

func NewKositValidator(assets *Assets, timeout time.Duration) *KositValidator {
	if timeout <= 0 {
		timeout = DefaultKositTimeout
	}
	return &KositValidator{assets: assets, timeout: timeout}
}

// Validate writes the XML to a scoped temporary file, runs the validator and
// parses the SVRL report it produced. A non-zero exit code with a report is
// normal, it signals validation findings, not an engine failure.
func (v *KositValidator) Validate(ctx context.Context, transactionID string, xmlData []byte) ([]report.Finding, error) {
	jar, err := v.assets.KositJar()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKositUnavailable, err)
	}
	scenarios, err := v.assets.KositScenarios()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKositUnavailable, err)
	}

	workDir, err := os.MkdirTemp("", "kosit-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, transactionID+".xml")
	if err := os.WriteFile(inputPath, xmlData, 0o600); err != nil {
		return nil, fmt.Errorf("write validator input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "java", "-Dfile.encoding=UTF-8", "-jar", jar,
		"--scenarios", scenarios,
		"--repository", v.assets.KositRepository(),
		"--output", workDir,
		inputPath)
	output, runErr := cmd.CombinedOutput()

	if runCtx.Err() != nil {
		return nil, fmt.Errorf("%w: run exceeded %s", ErrKositUnavailable, v.timeout)
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: no Java runtime on PATH", ErrKositUnavailable)
	}

	// The tool writes <input>.xml-report.xml next to its output. A failed
	// run without a report is an engine failure, not a validation result.
	reportPath := inputPath + "-report.xml"
	if _, statErr := os.Stat(reportPath); statErr != nil {
		if runErr != nil {
			return nil, fmt.Errorf("%w: exit error %v, output: %s", ErrKositUnavailable, runErr, truncate(output, 512))
		}
		return nil, nil
	}

	return parseSVRL(reportPath)
}

// parseSVRL extracts findings from a Schematron Validation Report Language
// document. Failed assertions map to ERROR unless flagged as warnings;
// successful reports carry advisory roles only.
func parseSVRL(path string) ([]report.Finding, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("%w: unreadable SVRL report: %v", ErrKositUnavailable, err)
	}

	var findings []report.Finding
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		switch e.Tag {
		case "failed-assert":
			severity := report.SeverityError
			if strings.EqualFold(e.SelectAttrValue("flag", ""), "warning") {
				severity = report.SeverityWarning
			}
			findings = append(findings, svrlFinding(e, severity))
		case "successful-report":
			switch strings.ToUpper(e.SelectAttrValue("role", "")) {
			case "WARNING":
				findings = append(findings, svrlFinding(e, report.SeverityWarning))
			case "INFO", "INFORMATION":
				findings = append(findings, svrlFinding(e, report.SeverityInfo))
			}
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	return findings, nil
}

func svrlFinding(e *etree.Element, severity report.Severity) report.Finding {
	message := "no message in report"
	for _, child := range e.ChildElements() {
		if child.Tag == "text" {
			message = strings.TrimSpace(child.Text())
			break
		}
	}
	return report.Finding{
		Severity: severity,
		Code:     "SCHEMATRON_" + e.SelectAttrValue("id", "UNSPECIFIED"),
		Message:  message,
		Location: e.SelectAttrValue("location", ""),
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
