// Package extract turns a raw upload into normalised invoice XML: it sniffs
// the carrier, pulls the embedded invoice out of hybrid PDF/A-3 files, and
// classifies the XML syntax.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

// ErrCorruptPDF marks a byte stream that announced itself as PDF but cannot
// be parsed. This is a permanent structural failure.
var ErrCorruptPDF = errors.New("corrupt PDF")

// maxAttachments bounds the number of embedded files inspected per document.
const maxAttachments = 32

// maxAttachmentSize bounds the size of a single extracted invoice XML.
const maxAttachmentSize = 50 << 20

// attachmentFormats maps the standardised embedded filenames onto the format
// they declare. order-x.xml is an order document, not an invoice, and is
// deliberately absent.
var attachmentFormats = map[string]model.Format{
	"factur-x.xml":        model.FormatFacturXCII,
	"zugferd-invoice.xml": model.FormatZUGFeRDCII,
	"xrechnung.xml":       model.FormatXRechnungCII,
}

// normalizeFilename lowercases the attachment name for the case-insensitive
// match mandated for the standardised filenames.
func normalizeFilename(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EmbeddedInvoiceXML locates the embedded invoice XML in a PDF/A-3 byte
// stream. It returns the declared format and the XML bytes, or
// (FormatOtherPDF, nil, nil) when the PDF is structurally valid but carries
// no recognised attachment. A PDF that cannot be parsed at all yields
// ErrCorruptPDF.
func EmbeddedInvoiceXML(data []byte) (model.Format, []byte, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	attachments, err := api.ExtractAttachmentsRaw(bytes.NewReader(data), "", nil, conf)
	if err != nil {
		return model.FormatUnknown, nil, fmt.Errorf("%w: %v", ErrCorruptPDF, err)
	}

	for i, att := range attachments {
		if i >= maxAttachments {
			break
		}
		format, ok := attachmentFormats[normalizeFilename(att.FileName)]
		if !ok {
			continue
		}
		xml, err := io.ReadAll(io.LimitReader(att.Reader, maxAttachmentSize))
		if err != nil {
			return model.FormatUnknown, nil, fmt.Errorf("read attachment %s: %w", att.FileName, err)
		}
		return format, xml, nil
	}

	return model.FormatOtherPDF, nil, nil
}
