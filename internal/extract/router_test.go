package extract

import (
	"errors"
	"testing"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

func TestRoutePureXML(t *testing.T) {
	res, err := Route([]byte(ublInvoiceHeader), "application/xml")
	if err != nil {
		t.Fatal(err)
	}
	if res.Carrier != CarrierXML || res.Syntax != SyntaxUBLInvoice {
		t.Errorf("got carrier %s syntax %s", res.Carrier, res.Syntax)
	}
	if res.Format != model.FormatXRechnungUBL {
		t.Errorf("got format %s, want %s", res.Format, model.FormatXRechnungUBL)
	}
	if res.Opaque() {
		t.Error("pure XML must not be opaque")
	}
}

func TestRouteXMLWithBOM(t *testing.T) {
	in := append([]byte{0xef, 0xbb, 0xbf}, []byte(ciiHeader)...)
	res, err := Route(in, "text/xml")
	if err != nil {
		t.Fatal(err)
	}
	if res.Syntax != SyntaxCII || res.Format != model.FormatXRechnungCII {
		t.Errorf("got syntax %s format %s", res.Syntax, res.Format)
	}
}

func TestRouteUnsupportedCarrier(t *testing.T) {
	_, err := Route([]byte("PK\x03\x04 not an invoice"), "application/zip")
	var unsupported *UnsupportedCarrierError
	if !errors.As(err, &unsupported) {
		t.Fatalf("want UnsupportedCarrierError, got %v", err)
	}
	if unsupported.ContentType != "application/zip" {
		t.Errorf("error must carry the declared content type, got %q", unsupported.ContentType)
	}
}

func TestRouteTruncatedPDF(t *testing.T) {
	_, err := Route([]byte("%PDF-1.7\nthis is not a PDF body"), "application/pdf")
	if !errors.Is(err, ErrCorruptPDF) {
		t.Fatalf("want ErrCorruptPDF, got %v", err)
	}
}

func TestAttachmentFilenames(t *testing.T) {
	tests := []struct {
		filename string
		want     model.Format
		ok       bool
	}{
		{"factur-x.xml", model.FormatFacturXCII, true},
		{"FACTUR-X.XML", model.FormatFacturXCII, true},
		{"zugferd-invoice.xml", model.FormatZUGFeRDCII, true},
		{"xrechnung.xml", model.FormatXRechnungCII, true},
		{"order-x.xml", "", false},
		{"invoice.xml", "", false},
	}
	for _, tt := range tests {
		got, ok := attachmentFormats[normalizeFilename(tt.filename)]
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("%s: got (%s, %v), want (%s, %v)", tt.filename, got, ok, tt.want, tt.ok)
		}
	}
}
