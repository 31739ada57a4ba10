package mapping

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"

	"github.com/SHDeniz/IIEV-Ultra/internal/extract"
	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
	"github.com/SHDeniz/IIEV-Ultra/internal/xmlpath"
)

// UBL common component namespaces.
const (
	nsCBC = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsCAC = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
)

// ParseUBL builds a namespace-aware evaluation context over a UBL document.
func ParseUBL(data []byte) (*cxpath.Context, error) {
	ctx, err := cxpath.NewFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse UBL: %w", err)
	}
	ctx.SetNamespace("cbc", nsCBC)
	ctx.SetNamespace("cac", nsCAC)
	return ctx.Root(), nil
}

// ublShape carries the element names that differ between the two UBL
// document types.
type ublShape struct {
	docType     model.DocType
	typeCodeTag string
	defaultType string
	lineTag     string
	quantityTag string
}

var ublShapes = map[extract.Syntax]ublShape{
	extract.SyntaxUBLInvoice: {
		docType:     model.DocTypeInvoice,
		typeCodeTag: "cbc:InvoiceTypeCode",
		defaultType: "380",
		lineTag:     "cac:InvoiceLine",
		quantityTag: "cbc:InvoicedQuantity",
	},
	extract.SyntaxUBLCreditNote: {
		docType:     model.DocTypeCreditNote,
		typeCodeTag: "cbc:CreditNoteTypeCode",
		defaultType: "381",
		lineTag:     "cac:CreditNoteLine",
		quantityTag: "cbc:CreditedQuantity",
	},
}

// MapUBL transforms a UBL Invoice or CreditNote root into the canonical
// invoice.
func MapUBL(root *cxpath.Context, syntax extract.Syntax) (*model.Invoice, []report.Finding, error) {
	shape, ok := ublShapes[syntax]
	if !ok {
		return nil, nil, fmt.Errorf("not a UBL syntax: %s", syntax)
	}

	m := &mapper{}
	inv := &model.Invoice{DocType: shape.docType}

	number, err := xmlpath.MandatoryText(root, "cbc:ID")
	if err != nil {
		return nil, m.findings, err
	}
	inv.InvoiceNumber = number

	inv.IssueDate, err = xmlpath.MandatoryDate(root, "cbc:IssueDate")
	if err != nil {
		return nil, m.findings, err
	}
	inv.DueDate, err = xmlpath.Date(root, "cbc:DueDate")
	if err != nil {
		return nil, m.findings, err
	}
	inv.DeliveryDate, err = xmlpath.Date(root, "cac:Delivery/cbc:ActualDeliveryDate")
	if err != nil {
		return nil, m.findings, err
	}

	inv.TypeCode = xmlpath.TextDefault(root, shape.typeCodeTag, shape.defaultType)

	currency, err := xmlpath.MandatoryText(root, "cbc:DocumentCurrencyCode")
	if err != nil {
		return nil, m.findings, err
	}
	if !model.KnownCurrency(currency) {
		return nil, m.findings, &xmlpath.MappingError{
			Path:  "cbc:DocumentCurrencyCode",
			Value: currency,
			Err:   fmt.Errorf("unknown ISO 4217 currency"),
		}
	}
	inv.CurrencyCode = currency

	inv.Seller, err = m.ublParty(root.Eval("cac:AccountingSupplierParty/cac:Party"), "AccountingSupplierParty")
	if err != nil {
		return nil, m.findings, err
	}
	inv.Buyer, err = m.ublParty(root.Eval("cac:AccountingCustomerParty/cac:Party"), "AccountingCustomerParty")
	if err != nil {
		return nil, m.findings, err
	}

	if err := m.ublTotals(root, inv); err != nil {
		return nil, m.findings, err
	}
	if err := m.ublTaxBreakdown(root, inv); err != nil {
		return nil, m.findings, err
	}
	if err := m.ublLines(root, shape, inv); err != nil {
		return nil, m.findings, err
	}
	m.ublPaymentMeans(root, inv)

	if po := xmlpath.Text(root, "cac:OrderReference/cbc:ID"); po != "" {
		inv.POReference = &model.DocumentReference{ID: po, Type: "ORDER"}
	}
	inv.Note = xmlpath.Text(root, "cbc:Note")

	return inv, m.findings, nil
}

func (m *mapper) ublParty(party *cxpath.Context, role string) (model.Party, error) {
	p := model.Party{}

	// Name may live in PartyName or in the legal entity registration.
	p.Name = xmlpath.Text(party, "cac:PartyName/cbc:Name")
	if p.Name == "" {
		name, err := xmlpath.MandatoryText(party, "cac:PartyLegalEntity/cbc:RegistrationName")
		if err != nil {
			return p, prefixed(role+"/cac:Party/", err)
		}
		p.Name = name
	}

	for scheme := range party.Each("cac:PartyTaxScheme") {
		id := scheme.Eval("cbc:CompanyID").String()
		switch scheme.Eval("cac:TaxScheme/cbc:ID").String() {
		case "VAT":
			p.VATID = id
		case "FC":
			p.TaxID = id
		}
	}
	m.checkVATPrefix(p.VATID, role)
	if p.TaxID == "" {
		if legalID := xmlpath.Text(party, "cac:PartyLegalEntity/cbc:CompanyID"); legalID != "" && legalID != p.VATID {
			p.TaxID = legalID
		}
	}

	address := party.Eval("cac:PostalAddress")
	country, err := xmlpath.MandatoryText(address, "cac:Country/cbc:IdentificationCode")
	if err != nil {
		return p, prefixed(role+"/cac:PostalAddress/", err)
	}
	if !model.KnownCountry(country) {
		return p, &xmlpath.MappingError{
			Path:  role + "/cac:PostalAddress/cac:Country/cbc:IdentificationCode",
			Value: country,
			Err:   fmt.Errorf("unknown ISO 3166-1 country"),
		}
	}
	p.Address = model.Address{
		Line1:       xmlpath.Text(address, "cbc:StreetName"),
		Line2:       xmlpath.Text(address, "cbc:AdditionalStreetName"),
		City:        xmlpath.Text(address, "cbc:CityName"),
		PostalZone:  xmlpath.Text(address, "cbc:PostalZone"),
		CountryCode: country,
	}
	return p, nil
}

func (m *mapper) ublTotals(root *cxpath.Context, inv *model.Invoice) error {
	total := root.Eval("cac:LegalMonetaryTotal")
	if total.Eval("count(cbc:LineExtensionAmount)").Int() == 0 {
		// Some credit note profiles use RequestedMonetaryTotal instead.
		total = root.Eval("cac:RequestedMonetaryTotal")
	}
	base := "cac:LegalMonetaryTotal/"

	var err error
	if inv.LineExtensionTotal, err = xmlpath.MandatoryDecimal(total, "cbc:LineExtensionAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.TaxExclusiveTotal, err = xmlpath.MandatoryDecimal(total, "cbc:TaxExclusiveAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.TaxInclusiveTotal, err = xmlpath.MandatoryDecimal(total, "cbc:TaxInclusiveAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.PayableAmount, err = xmlpath.MandatoryDecimal(total, "cbc:PayableAmount"); err != nil {
		return prefixed(base, err)
	}
	inv.AllowanceTotal = xmlpath.Decimal(total, "cbc:AllowanceTotalAmount", decimal.Zero, m.warn)
	inv.ChargeTotal = xmlpath.Decimal(total, "cbc:ChargeTotalAmount", decimal.Zero, m.warn)
	inv.PrepaidAmount = xmlpath.Decimal(total, "cbc:PrepaidAmount", decimal.Zero, m.warn)
	return nil
}

func (m *mapper) ublTaxBreakdown(root *cxpath.Context, inv *model.Invoice) error {
	for taxTotal := range root.Each("cac:TaxTotal") {
		for sub := range taxTotal.Each("cac:TaxSubtotal") {
			category := sub.Eval("cac:TaxCategory")
			if category.Eval("cac:TaxScheme/cbc:ID").String() != "VAT" {
				continue
			}

			categoryCode, err := xmlpath.MandatoryText(category, "cbc:ID")
			if err != nil {
				return prefixed("cac:TaxSubtotal/cac:TaxCategory/", err)
			}
			taxable, err := xmlpath.MandatoryDecimal(sub, "cbc:TaxableAmount")
			if err != nil {
				return prefixed("cac:TaxSubtotal/", err)
			}
			amount, err := xmlpath.MandatoryDecimal(sub, "cbc:TaxAmount")
			if err != nil {
				return prefixed("cac:TaxSubtotal/", err)
			}
			rate, err := ublTaxRate(category, categoryCode)
			if err != nil {
				return err
			}

			inv.TaxBreakdown = append(inv.TaxBreakdown, model.TaxBreakdown{
				CategoryCode:  categoryCode,
				Rate:          rate,
				TaxableAmount: taxable,
				TaxAmount:     amount,
			})
		}
	}

	// A breakdown may legitimately be absent only when no tax is due.
	if len(inv.TaxBreakdown) == 0 && inv.TaxInclusiveTotal.GreaterThan(inv.TaxExclusiveTotal) {
		return &xmlpath.MappingError{Path: "cac:TaxTotal/cac:TaxSubtotal"}
	}
	return nil
}

func ublTaxRate(category *cxpath.Context, categoryCode string) (decimal.Decimal, error) {
	if category.Eval("cbc:Percent").String() != "" {
		return xmlpath.MandatoryDecimal(category, "cbc:Percent")
	}
	switch categoryCode {
	case model.TaxZeroRate, model.TaxExempt, model.TaxReverseCharge, model.TaxNotSubject:
		return decimal.Zero, nil
	}
	return decimal.Zero, &xmlpath.MappingError{Path: "cac:TaxCategory/cbc:Percent"}
}

func (m *mapper) ublLines(root *cxpath.Context, shape ublShape, inv *model.Invoice) error {
	for line := range root.Each(shape.lineTag) {
		l := model.InvoiceLine{}

		lineID, err := xmlpath.MandatoryText(line, "cbc:ID")
		if err != nil {
			return prefixed(shape.lineTag+"/", err)
		}
		l.LineID = lineID

		l.Quantity, err = xmlpath.MandatoryDecimal(line, shape.quantityTag)
		if err != nil {
			return prefixed(shape.lineTag+"/", err)
		}
		l.UnitCode = xmlpath.TextDefault(line, shape.quantityTag+"/@unitCode", "C62")

		l.NetAmount, err = xmlpath.MandatoryDecimal(line, "cbc:LineExtensionAmount")
		if err != nil {
			return prefixed(shape.lineTag+"/", err)
		}

		item := line.Eval("cac:Item")
		l.ItemName, err = xmlpath.MandatoryText(item, "cbc:Name")
		if err != nil {
			return prefixed(shape.lineTag+"/cac:Item/", err)
		}
		l.ItemIdentifier = firstNonEmpty(
			xmlpath.Text(item, "cac:StandardItemIdentification/cbc:ID"),
			xmlpath.Text(item, "cac:SellersItemIdentification/cbc:ID"),
			xmlpath.Text(item, "cac:BuyersItemIdentification/cbc:ID"),
		)

		taxCategory := item.Eval("cac:ClassifiedTaxCategory")
		l.TaxCategory = xmlpath.Text(taxCategory, "cbc:ID")
		l.TaxRate = xmlpath.Decimal(taxCategory, "cbc:Percent", decimal.Zero, m.warn)

		price := line.Eval("cac:Price")
		l.UnitPrice, err = unitPrice(price, "cbc:PriceAmount", "cbc:BaseQuantity", m.warn)
		if err != nil {
			return prefixed(shape.lineTag+"/cac:Price/", err)
		}

		inv.Lines = append(inv.Lines, l)
	}

	if len(inv.Lines) == 0 {
		return &xmlpath.MappingError{Path: shape.lineTag}
	}
	return nil
}

func (m *mapper) ublPaymentMeans(root *cxpath.Context, inv *model.Invoice) {
	for means := range root.Each("cac:PaymentMeans") {
		code := means.Eval("cbc:PaymentMeansCode").String()
		if code != "30" && code != "58" {
			continue
		}
		account := means.Eval("cac:PayeeFinancialAccount")
		iban := account.Eval("cbc:ID").String()
		if iban == "" {
			continue
		}
		bic := account.Eval("cac:FinancialInstitutionBranch/cac:FinancialInstitution/cbc:ID").String()
		if bic == "" {
			bic = account.Eval("cac:FinancialInstitutionBranch/cbc:ID").String()
		}
		inv.PaymentDetails = append(inv.PaymentDetails, m.bankDetails(iban, bic,
			"cac:PaymentMeans/cac:PayeeFinancialAccount/cbc:ID"))
	}
}
