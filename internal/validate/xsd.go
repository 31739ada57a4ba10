package validate

import (
	"fmt"
	"sync"

	"github.com/lestrrat-go/libxml2"
	"github.com/lestrrat-go/libxml2/parser"
	"github.com/lestrrat-go/libxml2/xsd"

	"github.com/SHDeniz/IIEV-Ultra/internal/extract"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// XSDValidator validates invoice XML against the EN 16931 schema sets.
// Compiled schemas are cached for the process lifetime and shared across
// workers; compilation happens once per schema on first use.
type XSDValidator struct {
	assets *Assets

	mu    sync.Mutex
	cache map[string]*xsd.Schema
}

func NewXSDValidator(assets *Assets) *XSDValidator {
	return &XSDValidator{
		assets: assets,
		cache:  make(map[string]*xsd.Schema),
	}
}

func (v *XSDValidator) schema(path string) (*xsd.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.cache[path]; ok {
		return s, nil
	}
	// Imports inside the schema sets are relative, so compile from the file.
	s, err := xsd.ParseFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	v.cache[path] = s
	return s, nil
}

// Validate checks the document against the schema matching its syntax.
// Schema violations are ERROR findings; a document that is not well-formed
// XML, or a missing schema asset, is FATAL.
func (v *XSDValidator) Validate(syntax extract.Syntax, data []byte) []report.Finding {
	path, err := v.assets.XSDPath(syntax)
	if err != nil {
		return []report.Finding{{
			Severity: report.SeverityFatal,
			Code:     report.CodeXSDSchemaMissing,
			Message:  err.Error(),
		}}
	}
	schema, err := v.schema(path)
	if err != nil {
		return []report.Finding{{
			Severity: report.SeverityFatal,
			Code:     report.CodeXSDSchemaMissing,
			Message:  err.Error(),
		}}
	}

	// Entity expansion and network fetches stay disabled; invoice XML has no
	// legitimate use for either.
	doc, err := libxml2.Parse(data, parser.XMLParseNoNet)
	if err != nil {
		return []report.Finding{{
			Severity: report.SeverityFatal,
			Code:     report.CodeXMLSyntaxError,
			Message:  fmt.Sprintf("document is not well-formed XML: %v", err),
		}}
	}
	defer doc.Free()

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var findings []report.Finding
	if sve, ok := err.(xsd.SchemaValidationError); ok {
		for _, e := range sve.Errors() {
			findings = append(findings, report.Finding{
				Severity: report.SeverityError,
				Code:     report.CodeXSDViolation,
				Message:  e.Error(),
			})
		}
		return findings
	}
	return []report.Finding{{
		Severity: report.SeverityError,
		Code:     report.CodeXSDViolation,
		Message:  err.Error(),
	}}
}
