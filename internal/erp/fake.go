package erp

import (
	"context"
	"sync"
)

// Fake is an in-memory Adapter for tests. All methods are safe for
// concurrent use. The zero value is usable and knows nothing.
type Fake struct {
	mu sync.Mutex

	Vendors    map[string]*Vendor        // by VAT id
	Banks      map[string][]BankDetails  // by vendor id
	Duplicates map[string]bool           // vendor id + "/" + invoice number
	Orders     map[string]*PurchaseOrder // by PO number

	// Err, when set, is returned by every method to simulate an
	// unreachable ERP store.
	Err error
}

func NewFake() *Fake {
	return &Fake{
		Vendors:    make(map[string]*Vendor),
		Banks:      make(map[string][]BankDetails),
		Duplicates: make(map[string]bool),
		Orders:     make(map[string]*PurchaseOrder),
	}
}

func (f *Fake) FindVendorByVATID(_ context.Context, vatID string) (*Vendor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Vendors[vatID], nil
}

func (f *Fake) IsDuplicateInvoice(_ context.Context, vendorID, invoiceNumber string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	return f.Duplicates[vendorID+"/"+invoiceNumber], nil
}

func (f *Fake) GetVendorBankDetails(_ context.Context, vendorID string) ([]BankDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Banks[vendorID], nil
}

func (f *Fake) GetPurchaseOrder(_ context.Context, poNumber, vendorID string) (*PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	po := f.Orders[poNumber]
	if po == nil || po.VendorID != vendorID {
		return nil, nil
	}
	return po, nil
}
