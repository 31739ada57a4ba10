package validate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SHDeniz/IIEV-Ultra/internal/extract"
)

// Assets resolves the validation artefacts shipped alongside the binary:
// the EN 16931 XSD schema sets and the KoSIT validator distribution.
//
// Expected layout under the base directory:
//
//	xsd/ubl/UBL-Invoice-2.1.xsd
//	xsd/ubl/UBL-CreditNote-2.1.xsd
//	xsd/cii/CrossIndustryInvoice_13p1.xsd
//	kosit/validationtool-*.jar
//	kosit/configuration/scenarios.xml
type Assets struct {
	BaseDir string
}

func NewAssets(baseDir string) *Assets {
	return &Assets{BaseDir: baseDir}
}

// XSDPath returns the main schema file for the observed syntax. The schema
// sets resolve their imports relative to this file.
func (a *Assets) XSDPath(syntax extract.Syntax) (string, error) {
	var rel string
	switch syntax {
	case extract.SyntaxUBLInvoice:
		rel = filepath.Join("xsd", "ubl", "UBL-Invoice-2.1.xsd")
	case extract.SyntaxUBLCreditNote:
		rel = filepath.Join("xsd", "ubl", "UBL-CreditNote-2.1.xsd")
	case extract.SyntaxCII:
		rel = filepath.Join("xsd", "cii", "CrossIndustryInvoice_13p1.xsd")
	default:
		return "", fmt.Errorf("no schema for syntax %s", syntax)
	}
	path := filepath.Join(a.BaseDir, rel)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("schema %s: %w", rel, err)
	}
	return path, nil
}

// KositJar locates the validator JAR inside the kosit asset directory. The
// distribution names its JAR by version, so the lookup globs.
func (a *Assets) KositJar() (string, error) {
	matches, err := filepath.Glob(filepath.Join(a.BaseDir, "kosit", "*.jar"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("no KoSIT validator JAR under %s", filepath.Join(a.BaseDir, "kosit"))
	}
	return matches[0], nil
}

// KositScenarios returns the scenario configuration path.
func (a *Assets) KositScenarios() (string, error) {
	path := filepath.Join(a.BaseDir, "kosit", "configuration", "scenarios.xml")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("KoSIT scenarios: %w", err)
	}
	return path, nil
}

// KositRepository returns the scenario repository directory, which the
// engine resolves rule artefacts against.
func (a *Assets) KositRepository() string {
	return filepath.Join(a.BaseDir, "kosit", "configuration")
}
