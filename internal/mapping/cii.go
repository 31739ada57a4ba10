// Package mapping normalises CII and UBL invoice documents into the
// canonical model. Both mappers are free-standing procedures over a parsed
// tree; the orchestrator dispatches on the observed syntax and translates
// mapper faults into report findings.
package mapping

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
	"github.com/SHDeniz/IIEV-Ultra/internal/xmlpath"
)

// CII namespaces.
const (
	nsRSM = "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100"
	nsRAM = "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100"
	nsUDT = "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100"
	nsQDT = "urn:un:unece:uncefact:data:standard:QualifiedDataType:100"
)

// ParseCII builds a namespace-aware evaluation context over a CII document.
func ParseCII(data []byte) (*cxpath.Context, error) {
	ctx, err := cxpath.NewFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse CII: %w", err)
	}
	ctx.SetNamespace("rsm", nsRSM)
	ctx.SetNamespace("ram", nsRAM)
	ctx.SetNamespace("udt", nsUDT)
	ctx.SetNamespace("qdt", nsQDT)
	return ctx.Root(), nil
}

// MapCII transforms a CII root into the canonical invoice. Violations of the
// mandatory field contract surface as *xmlpath.MappingError; recoverable
// oddities (unparsable optional values, suspicious VAT ids, IBAN problems)
// surface as findings.
func MapCII(root *cxpath.Context) (*model.Invoice, []report.Finding, error) {
	m := &mapper{}
	inv := &model.Invoice{}

	doc := root.Eval("rsm:ExchangedDocument")

	number, err := xmlpath.MandatoryText(doc, "ram:ID")
	if err != nil {
		return nil, m.findings, prefixed("ExchangedDocument/", err)
	}
	inv.InvoiceNumber = number

	issueDate, err := xmlpath.MandatoryDate(doc, "ram:IssueDateTime/udt:DateTimeString")
	if err != nil {
		return nil, m.findings, prefixed("ExchangedDocument/", err)
	}
	inv.IssueDate = issueDate

	inv.TypeCode = xmlpath.TextDefault(doc, "ram:TypeCode", "380")
	inv.DocType = docTypeFromCode(inv.TypeCode)

	transaction := root.Eval("rsm:SupplyChainTradeTransaction")
	settlement := transaction.Eval("ram:ApplicableHeaderTradeSettlement")

	currency, err := xmlpath.MandatoryText(settlement, "ram:InvoiceCurrencyCode")
	if err != nil {
		return nil, m.findings, err
	}
	if !model.KnownCurrency(currency) {
		return nil, m.findings, &xmlpath.MappingError{
			Path:  "ram:InvoiceCurrencyCode",
			Value: currency,
			Err:   fmt.Errorf("unknown ISO 4217 currency"),
		}
	}
	inv.CurrencyCode = currency

	delivery := transaction.Eval("ram:ApplicableHeaderTradeDelivery")
	inv.DeliveryDate, err = xmlpath.Date(delivery, "ram:ActualDeliverySupplyChainEvent/ram:OccurrenceDateTime/udt:DateTimeString")
	if err != nil {
		return nil, m.findings, err
	}
	inv.DueDate, err = xmlpath.Date(settlement, "ram:SpecifiedTradePaymentTerms/ram:DueDateDateTime/udt:DateTimeString")
	if err != nil {
		return nil, m.findings, err
	}

	agreement := transaction.Eval("ram:ApplicableHeaderTradeAgreement")

	inv.Seller, err = m.ciiParty(agreement.Eval("ram:SellerTradeParty"), "SellerTradeParty")
	if err != nil {
		return nil, m.findings, err
	}
	inv.Buyer, err = m.ciiParty(agreement.Eval("ram:BuyerTradeParty"), "BuyerTradeParty")
	if err != nil {
		return nil, m.findings, err
	}

	if po := xmlpath.Text(agreement, "ram:BuyerOrderReferencedDocument/ram:IssuerAssignedID"); po != "" {
		inv.POReference = &model.DocumentReference{ID: po, Type: "ORDER"}
	}

	if err := m.ciiTotals(settlement, inv); err != nil {
		return nil, m.findings, err
	}
	if err := m.ciiTaxBreakdown(settlement, inv); err != nil {
		return nil, m.findings, err
	}
	if err := m.ciiLines(transaction, inv); err != nil {
		return nil, m.findings, err
	}
	m.ciiPaymentMeans(settlement, inv)

	inv.Note = xmlpath.Text(doc, "ram:IncludedNote/ram:Content")

	return inv, m.findings, nil
}

func (m *mapper) ciiParty(party *cxpath.Context, role string) (model.Party, error) {
	p := model.Party{}

	name, err := xmlpath.MandatoryText(party, "ram:Name")
	if err != nil {
		return p, prefixed(role+"/", err)
	}
	p.Name = name

	p.VATID = party.Eval("ram:SpecifiedTaxRegistration/ram:ID[@schemeID='VA']").String()
	p.TaxID = party.Eval("ram:SpecifiedTaxRegistration/ram:ID[@schemeID='FC']").String()
	m.checkVATPrefix(p.VATID, role)

	address := party.Eval("ram:PostalTradeAddress")
	country, err := xmlpath.MandatoryText(address, "ram:CountryID")
	if err != nil {
		return p, prefixed(role+"/PostalTradeAddress/", err)
	}
	if !model.KnownCountry(country) {
		return p, &xmlpath.MappingError{
			Path:  role + "/PostalTradeAddress/ram:CountryID",
			Value: country,
			Err:   fmt.Errorf("unknown ISO 3166-1 country"),
		}
	}
	p.Address = model.Address{
		Line1:       xmlpath.Text(address, "ram:LineOne"),
		Line2:       xmlpath.Text(address, "ram:LineTwo"),
		City:        xmlpath.Text(address, "ram:CityName"),
		PostalZone:  xmlpath.Text(address, "ram:PostcodeCode"),
		CountryCode: country,
	}
	return p, nil
}

func (m *mapper) ciiTotals(settlement *cxpath.Context, inv *model.Invoice) error {
	summation := settlement.Eval("ram:SpecifiedTradeSettlementHeaderMonetarySummation")
	base := "SpecifiedTradeSettlementHeaderMonetarySummation/"

	var err error
	if inv.LineExtensionTotal, err = xmlpath.MandatoryDecimal(summation, "ram:LineTotalAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.TaxExclusiveTotal, err = xmlpath.MandatoryDecimal(summation, "ram:TaxBasisTotalAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.TaxInclusiveTotal, err = xmlpath.MandatoryDecimal(summation, "ram:GrandTotalAmount"); err != nil {
		return prefixed(base, err)
	}
	if inv.PayableAmount, err = xmlpath.MandatoryDecimal(summation, "ram:DuePayableAmount"); err != nil {
		return prefixed(base, err)
	}
	inv.AllowanceTotal = xmlpath.Decimal(summation, "ram:AllowanceTotalAmount", decimal.Zero, m.warn)
	inv.ChargeTotal = xmlpath.Decimal(summation, "ram:ChargeTotalAmount", decimal.Zero, m.warn)
	inv.PrepaidAmount = xmlpath.Decimal(summation, "ram:TotalPrepaidAmount", decimal.Zero, m.warn)
	return nil
}

func (m *mapper) ciiTaxBreakdown(settlement *cxpath.Context, inv *model.Invoice) error {
	for tax := range settlement.Each("ram:ApplicableTradeTax") {
		// Only VAT groups participate in the breakdown.
		if xmlpath.TextDefault(tax, "ram:TypeCode", "VAT") != "VAT" {
			continue
		}

		category, err := xmlpath.MandatoryText(tax, "ram:CategoryCode")
		if err != nil {
			return prefixed("ApplicableTradeTax/", err)
		}
		basis, err := xmlpath.MandatoryDecimal(tax, "ram:BasisAmount")
		if err != nil {
			return prefixed("ApplicableTradeTax/", err)
		}
		amount, err := xmlpath.MandatoryDecimal(tax, "ram:CalculatedAmount")
		if err != nil {
			return prefixed("ApplicableTradeTax/", err)
		}

		rate, err := ciiTaxRate(tax, category)
		if err != nil {
			return err
		}

		inv.TaxBreakdown = append(inv.TaxBreakdown, model.TaxBreakdown{
			CategoryCode:  category,
			Rate:          rate,
			TaxableAmount: basis,
			TaxAmount:     amount,
		})
	}

	if len(inv.TaxBreakdown) == 0 {
		return &xmlpath.MappingError{Path: "ApplicableHeaderTradeSettlement/ram:ApplicableTradeTax"}
	}
	return nil
}

// ciiTaxRate reads the rate from RateApplicablePercent with the legacy
// ApplicablePercent fallback. An absent rate is only legal for the tax-free
// categories.
func ciiTaxRate(tax *cxpath.Context, category string) (decimal.Decimal, error) {
	for _, path := range []string{"ram:RateApplicablePercent", "ram:ApplicablePercent"} {
		if tax.Eval(path).String() != "" {
			return xmlpath.MandatoryDecimal(tax, path)
		}
	}
	switch category {
	case model.TaxZeroRate, model.TaxExempt, model.TaxReverseCharge, model.TaxNotSubject:
		return decimal.Zero, nil
	}
	return decimal.Zero, &xmlpath.MappingError{Path: "ApplicableTradeTax/ram:RateApplicablePercent"}
}

func (m *mapper) ciiLines(transaction *cxpath.Context, inv *model.Invoice) error {
	for item := range transaction.Each("ram:IncludedSupplyChainTradeLineItem") {
		line := model.InvoiceLine{}

		lineID, err := xmlpath.MandatoryText(item, "ram:AssociatedDocumentLineDocument/ram:LineID")
		if err != nil {
			return prefixed("IncludedSupplyChainTradeLineItem/", err)
		}
		line.LineID = lineID

		product := item.Eval("ram:SpecifiedTradeProduct")
		line.ItemName, err = xmlpath.MandatoryText(product, "ram:Name")
		if err != nil {
			return prefixed("SpecifiedTradeProduct/", err)
		}
		line.ItemIdentifier = firstNonEmpty(
			xmlpath.Text(product, "ram:GlobalID"),
			xmlpath.Text(product, "ram:SellerAssignedID"),
			xmlpath.Text(product, "ram:BuyerAssignedID"),
		)

		line.Quantity, err = xmlpath.MandatoryDecimal(item, "ram:SpecifiedLineTradeDelivery/ram:BilledQuantity")
		if err != nil {
			return prefixed("IncludedSupplyChainTradeLineItem/", err)
		}
		line.UnitCode = xmlpath.TextDefault(item, "ram:SpecifiedLineTradeDelivery/ram:BilledQuantity/@unitCode", "C62")

		line.NetAmount, err = xmlpath.MandatoryDecimal(item, "ram:SpecifiedLineTradeSettlement/ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount")
		if err != nil {
			return prefixed("IncludedSupplyChainTradeLineItem/", err)
		}

		price := item.Eval("ram:SpecifiedLineTradeAgreement/ram:NetPriceProductTradePrice")
		line.UnitPrice, err = unitPrice(price, "ram:ChargeAmount", "ram:BasisQuantity", m.warn)
		if err != nil {
			return err
		}

		lineTax := item.Eval("ram:SpecifiedLineTradeSettlement/ram:ApplicableTradeTax")
		line.TaxCategory = xmlpath.Text(lineTax, "ram:CategoryCode")
		line.TaxRate = xmlpath.Decimal(lineTax, "ram:RateApplicablePercent", decimal.Zero, m.warn)

		inv.Lines = append(inv.Lines, line)
	}

	if len(inv.Lines) == 0 {
		return &xmlpath.MappingError{Path: "SupplyChainTradeTransaction/ram:IncludedSupplyChainTradeLineItem"}
	}
	return nil
}

func (m *mapper) ciiPaymentMeans(settlement *cxpath.Context, inv *model.Invoice) {
	for means := range settlement.Each("ram:SpecifiedTradeSettlementPaymentMeans") {
		typeCode := means.Eval("ram:TypeCode").String()
		// 30 = credit transfer, 58 = SEPA credit transfer.
		if typeCode != "30" && typeCode != "58" {
			continue
		}
		iban := means.Eval("ram:PayeePartyCreditorFinancialAccount/ram:IBANID").String()
		if iban == "" {
			continue
		}
		bic := means.Eval("ram:PayeeSpecifiedCreditorFinancialInstitution/ram:BICID").String()
		inv.PaymentDetails = append(inv.PaymentDetails, m.bankDetails(iban, bic,
			"SpecifiedTradeSettlementPaymentMeans/ram:PayeePartyCreditorFinancialAccount/ram:IBANID"))
	}
}

func docTypeFromCode(code string) model.DocType {
	if code == "381" {
		return model.DocTypeCreditNote
	}
	// 380 commercial invoice, 384 corrected invoice.
	return model.DocTypeInvoice
}
