package extract

import (
	"errors"
	"testing"
)

const ublInvoiceHeader = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
  xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>R-1</cbc:ID>
</Invoice>`

const ublCreditNoteHeader = `<CreditNote xmlns="urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"/>`

const ciiHeader = `<rsm:CrossIndustryInvoice
  xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
  xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100">
</rsm:CrossIndustryInvoice>`

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Syntax
	}{
		{"UBL invoice", ublInvoiceHeader, SyntaxUBLInvoice},
		{"UBL credit note", ublCreditNoteHeader, SyntaxUBLCreditNote},
		{"CII", ciiHeader, SyntaxCII},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyUnknownRoot(t *testing.T) {
	_, err := Classify([]byte(`<Order xmlns="urn:example:order"/>`))
	var unknown *UnknownFormatError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownFormatError, got %v", err)
	}
	if unknown.LocalName != "Order" {
		t.Errorf("got root %q, want Order", unknown.LocalName)
	}
}

func TestClassifyWrongNamespace(t *testing.T) {
	// Correct local name in the wrong namespace must not pass.
	_, err := Classify([]byte(`<Invoice xmlns="urn:example:not-ubl"/>`))
	var unknown *UnknownFormatError
	if !errors.As(err, &unknown) {
		t.Fatalf("want UnknownFormatError, got %v", err)
	}
}

func TestClassifyMalformed(t *testing.T) {
	if _, err := Classify([]byte(`<Invoice`)); err == nil {
		t.Error("malformed XML must fail")
	}
}
