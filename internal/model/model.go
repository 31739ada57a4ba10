// Package model holds the canonical invoice representation shared by the
// mapping and validation stages, together with the transaction metadata
// tracked for every incoming document.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the processing state of an invoice transaction.
type Status string

const (
	StatusReceived     Status = "RECEIVED"
	StatusProcessing   Status = "PROCESSING"
	StatusValid        Status = "VALID"
	StatusInvalid      Status = "INVALID"
	StatusManualReview Status = "MANUAL_REVIEW"
	StatusError        Status = "ERROR"
)

// Terminal reports whether s is an absorbing state.
func (s Status) Terminal() bool {
	switch s {
	case StatusValid, StatusInvalid, StatusManualReview, StatusError:
		return true
	}
	return false
}

// Format is the detected invoice format of the raw upload.
type Format string

const (
	FormatXRechnungUBL Format = "XRECHNUNG_UBL"
	FormatXRechnungCII Format = "XRECHNUNG_CII"
	FormatZUGFeRDCII   Format = "ZUGFERD_CII"
	FormatFacturXCII   Format = "FACTURX_CII"
	FormatOtherPDF     Format = "OTHER_PDF"
	FormatPlainXML     Format = "PLAIN_XML"
	FormatUnknown      Format = "UNKNOWN"
)

// IsCII reports whether the underlying syntax of f is Cross Industry Invoice.
func (f Format) IsCII() bool {
	switch f {
	case FormatXRechnungCII, FormatZUGFeRDCII, FormatFacturXCII:
		return true
	}
	return false
}

// Level is the highest validation level a transaction has passed.
type Level string

const (
	LevelNone        Level = "NONE"
	LevelStructure   Level = "STRUCTURE"
	LevelSemantic    Level = "SEMANTIC"
	LevelCalculation Level = "CALCULATION"
	LevelBusiness    Level = "BUSINESS"
)

// DocType distinguishes invoices from credit notes.
type DocType string

const (
	DocTypeInvoice    DocType = "Invoice"
	DocTypeCreditNote DocType = "CreditNote"
)

// TaxCategory codes as used by EN 16931 (UNCL 5305 subset).
const (
	TaxStandardRate  = "S"
	TaxZeroRate      = "Z"
	TaxExempt        = "E"
	TaxReverseCharge = "AE"
	TaxNotSubject    = "O"
)

// Address of a trade party. Only the country is mandatory.
type Address struct {
	Line1       string
	Line2       string
	City        string
	PostalZone  string
	CountryCode string // ISO 3166-1 alpha-2
}

// Party is the seller or buyer of the invoice.
type Party struct {
	Name    string // BT-27 / BT-44
	VATID   string // BT-31 / BT-48
	TaxID   string
	Address Address
}

// BankDetails is one payment account stated on the invoice.
type BankDetails struct {
	IBAN string // normalised: uppercase, no spaces
	BIC  string
}

// TaxBreakdown is one VAT group of the document (BG-23).
type TaxBreakdown struct {
	CategoryCode  string          // BT-118
	Rate          decimal.Decimal // BT-119, percent
	TaxableAmount decimal.Decimal // BT-116
	TaxAmount     decimal.Decimal // BT-117
}

// InvoiceLine is one line of the invoice (BG-25).
type InvoiceLine struct {
	LineID         string // BT-126
	ItemName       string // BT-153
	ItemIdentifier string // HAN/EAN/GTIN joining key for the PO match
	Quantity       decimal.Decimal
	UnitCode       string
	UnitPrice      decimal.Decimal
	NetAmount      decimal.Decimal // BT-131
	TaxCategory    string
	TaxRate        decimal.Decimal
}

// DocumentReference points at another business document, e.g. the purchase
// order the invoice bills against.
type DocumentReference struct {
	ID   string
	Type string
}

// Invoice is the canonical normalised invoice. Both the CII and the UBL
// mapper produce this shape; the arithmetic and business validators consume
// it. All monetary values are decimals, never floats.
type Invoice struct {
	InvoiceNumber string // BT-1
	DocType       DocType
	TypeCode      string    // BT-3 (380, 381, 384, ...)
	IssueDate     time.Time // BT-2
	DeliveryDate  time.Time // BT-72, zero if absent
	DueDate       time.Time // zero if absent
	CurrencyCode  string    // BT-5

	Seller Party
	Buyer  Party

	Lines []InvoiceLine

	LineExtensionTotal decimal.Decimal // BT-106
	AllowanceTotal     decimal.Decimal // BT-107
	ChargeTotal        decimal.Decimal // BT-108
	TaxExclusiveTotal  decimal.Decimal // BT-109
	TaxInclusiveTotal  decimal.Decimal // BT-112
	PrepaidAmount      decimal.Decimal // BT-113
	PayableAmount      decimal.Decimal // BT-115

	TaxBreakdown []TaxBreakdown

	PaymentDetails []BankDetails
	POReference    *DocumentReference

	Note string
}

// TotalTax is the sum of all tax amounts in the breakdown.
func (inv *Invoice) TotalTax() decimal.Decimal {
	sum := decimal.Zero
	for _, tb := range inv.TaxBreakdown {
		sum = sum.Add(tb.TaxAmount)
	}
	return sum
}

// IsReverseCharge reports whether any tax group uses the reverse charge
// category.
func (inv *Invoice) IsReverseCharge() bool {
	for _, tb := range inv.TaxBreakdown {
		if tb.CategoryCode == TaxReverseCharge {
			return true
		}
	}
	return false
}

// Transaction is the metadata row tracked for one incoming document. It is
// created when the blob lands and mutated only by the driver under the claim
// protocol.
type Transaction struct {
	ID     uuid.UUID
	Status Status
	Format Format

	Source           string // api | email
	OriginalFilename string
	ContentType      string
	FileSize         int64

	RawURI       string
	ProcessedURI string

	LevelReached Level

	// Denormalised key fields for lookups and reporting.
	InvoiceNumber string
	IssueDate     time.Time
	PayableAmount decimal.Decimal
	CurrencyCode  string
	SellerName    string
	SellerVATID   string
	BuyerName     string
	BuyerVATID    string
	ERPVendorID   string
	PONumber      string
	IsDuplicate   bool

	ErrorMessage string
	RetryCount   int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt time.Time
}
