package extract

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
)

// Syntax is the XML syntax family of an invoice document.
type Syntax string

const (
	SyntaxUBLInvoice    Syntax = "UBL_INVOICE"
	SyntaxUBLCreditNote Syntax = "UBL_CREDITNOTE"
	SyntaxCII           Syntax = "CII"
)

// Root namespaces of the supported syntaxes.
const (
	NSUBLInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NSUBLCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	NSCII           = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
)

// UnknownFormatError reports an XML document whose root element is none of
// the supported invoice syntaxes.
type UnknownFormatError struct {
	LocalName string
	Namespace string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unrecognised XML root element %q in namespace %q", e.LocalName, e.Namespace)
}

// Classify inspects the root element of an XML byte stream and returns its
// syntax. Entity expansion and DTD loading are not performed.
func Classify(data []byte) (Syntax, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = false
	if err := doc.ReadFromBytes(bytes.TrimLeft(data, "\xef\xbb\xbf")); err != nil {
		return "", fmt.Errorf("parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("parse XML: no root element")
	}

	ns := root.NamespaceURI()
	switch {
	case root.Tag == "Invoice" && ns == NSUBLInvoice:
		return SyntaxUBLInvoice, nil
	case root.Tag == "CreditNote" && ns == NSUBLCreditNote:
		return SyntaxUBLCreditNote, nil
	case root.Tag == "CrossIndustryInvoice" && ns == NSCII:
		return SyntaxCII, nil
	}
	return "", &UnknownFormatError{LocalName: root.Tag, Namespace: ns}
}
