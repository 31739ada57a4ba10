package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

// Carrier is the outer file type of an upload.
type Carrier string

const (
	CarrierPDF Carrier = "PDF"
	CarrierXML Carrier = "XML"
)

// UnsupportedCarrierError marks an upload that is neither PDF nor XML. This
// is a permanent error.
type UnsupportedCarrierError struct {
	ContentType string
}

func (e *UnsupportedCarrierError) Error() string {
	return fmt.Sprintf("unsupported carrier (content type %q): neither PDF nor XML", e.ContentType)
}

// Result of routing one raw upload.
type Result struct {
	Carrier Carrier
	Syntax  Syntax // empty for an opaque PDF
	Format  model.Format
	XML     []byte // nil for an opaque PDF
}

// Opaque reports whether the upload is a PDF without embedded invoice XML.
// Such documents go to manual review; they are not an error.
func (r *Result) Opaque() bool {
	return r.Carrier == CarrierPDF && len(r.XML) == 0
}

var bom = []byte{0xef, 0xbb, 0xbf}

// Route decides the processing path of a raw upload: hybrid PDF, pure XML,
// or unsupported. contentType is the declared MIME hint and is used for
// error reporting only; detection goes by content sniffing.
func Route(data []byte, contentType string) (*Result, error) {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return routePDF(data)
	}

	trimmed := bytes.TrimPrefix(data, bom)
	trimmed = bytes.TrimLeft(trimmed, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("<")) {
		return routeXML(data)
	}

	return nil, &UnsupportedCarrierError{ContentType: contentType}
}

func routePDF(data []byte) (*Result, error) {
	format, xml, err := EmbeddedInvoiceXML(data)
	if err != nil {
		return nil, err
	}
	if xml == nil {
		return &Result{Carrier: CarrierPDF, Format: model.FormatOtherPDF}, nil
	}

	// The attachment bytes must themselves be a supported invoice document.
	syntax, err := Classify(xml)
	if err != nil {
		var unknown *UnknownFormatError
		if errors.As(err, &unknown) {
			return nil, fmt.Errorf("embedded %s attachment: %w", format, err)
		}
		return nil, fmt.Errorf("embedded %s attachment is not well-formed XML: %w", format, err)
	}

	return &Result{Carrier: CarrierPDF, Syntax: syntax, Format: format, XML: xml}, nil
}

func routeXML(data []byte) (*Result, error) {
	syntax, err := Classify(data)
	if err != nil {
		return nil, err
	}

	format := model.FormatXRechnungUBL
	if syntax == SyntaxCII {
		format = model.FormatXRechnungCII
	}
	return &Result{Carrier: CarrierXML, Syntax: syntax, Format: format, XML: data}, nil
}
