package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

// minimalPDF builds the smallest parseable carrier document: one empty page,
// a correct cross reference table, no attachments.
func minimalPDF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(s string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(s)
	}
	buf.WriteString("%PDF-1.7\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << >> >>\nendobj\n")
	xref := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1))
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xref))
	return buf.Bytes()
}

// hybridPDF embeds the given XML into a carrier PDF under the standardised
// attachment filename.
func hybridPDF(t *testing.T, filename string, xml []byte) []byte {
	t.Helper()
	attachment := filepath.Join(t.TempDir(), filename)
	if err := os.WriteFile(attachment, xml, 0o600); err != nil {
		t.Fatal(err)
	}

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	var out bytes.Buffer
	if err := api.AddAttachments(bytes.NewReader(minimalPDF(t)), &out, []string{attachment}, false, conf); err != nil {
		t.Fatal(err)
	}
	return out.Bytes()
}

func TestEmbeddedInvoiceXMLRoundTrip(t *testing.T) {
	xml := []byte(ciiHeader)
	pdf := hybridPDF(t, "factur-x.xml", xml)

	format, got, err := EmbeddedInvoiceXML(pdf)
	if err != nil {
		t.Fatal(err)
	}
	if format != model.FormatFacturXCII {
		t.Errorf("got format %s, want %s", format, model.FormatFacturXCII)
	}
	if !bytes.Equal(got, xml) {
		t.Errorf("extracted XML differs from the embedded bytes:\ngot  %q\nwant %q", got, xml)
	}
}

func TestEmbeddedInvoiceXMLIgnoresUnknownAttachment(t *testing.T) {
	pdf := hybridPDF(t, "terms.xml", []byte("<terms/>"))

	format, xml, err := EmbeddedInvoiceXML(pdf)
	if err != nil {
		t.Fatal(err)
	}
	if format != model.FormatOtherPDF || xml != nil {
		t.Errorf("got (%s, %d bytes), want opaque", format, len(xml))
	}
}

func TestRouteHybridPDF(t *testing.T) {
	pdf := hybridPDF(t, "factur-x.xml", []byte(ciiHeader))

	res, err := Route(pdf, "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if res.Carrier != CarrierPDF || res.Syntax != SyntaxCII {
		t.Errorf("got carrier %s syntax %s", res.Carrier, res.Syntax)
	}
	if res.Format != model.FormatFacturXCII {
		t.Errorf("got format %s, want %s", res.Format, model.FormatFacturXCII)
	}
	if res.Opaque() {
		t.Error("hybrid PDF must not be opaque")
	}
}

func TestRouteOpaquePDF(t *testing.T) {
	res, err := Route(minimalPDF(t), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Opaque() {
		t.Errorf("PDF without attachments must be opaque, got %+v", res)
	}
	if res.Format != model.FormatOtherPDF {
		t.Errorf("got format %s, want %s", res.Format, model.FormatOtherPDF)
	}
}
