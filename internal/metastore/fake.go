package metastore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// Fake is an in-memory Store for tests. The claim protocol is serialised by
// a single mutex, which makes it exact under concurrent callers.
type Fake struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*model.Transaction
	reports      map[uuid.UUID]*report.Report
	logs         map[uuid.UUID][]string

	// Fail, when set, is returned by every method.
	Fail error
}

func NewFake() *Fake {
	return &Fake{
		transactions: make(map[uuid.UUID]*model.Transaction),
		reports:      make(map[uuid.UUID]*report.Report),
		logs:         make(map[uuid.UUID][]string),
	}
}

func (f *Fake) Insert(_ context.Context, tx *model.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	cp := *tx
	cp.Status = model.StatusReceived
	cp.CreatedAt = time.Now()
	f.transactions[tx.ID] = &cp
	return nil
}

func (f *Fake) Get(_ context.Context, id uuid.UUID) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return nil, f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	cp := *tx
	return &cp, nil
}

func (f *Fake) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return false, f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return false, nil
	}
	if tx.Status != model.StatusReceived && tx.Status != model.StatusError {
		return false, nil
	}
	tx.Status = model.StatusProcessing
	tx.UpdatedAt = time.Now()
	return true, nil
}

func (f *Fake) Release(_ context.Context, id uuid.UUID, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return 0, f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return 0, fmt.Errorf("transaction %s not found", id)
	}
	tx.Status = model.StatusReceived
	tx.RetryCount++
	tx.ErrorMessage = reason
	return tx.RetryCount, nil
}

func (f *Fake) MarkError(_ context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	tx.Status = model.StatusError
	tx.ErrorMessage = reason
	tx.ProcessedAt = time.Now()
	return nil
}

func (f *Fake) SetFormat(_ context.Context, id uuid.UUID, format model.Format, level model.Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	tx.Format = format
	tx.LevelReached = level
	return nil
}

func (f *Fake) Finalize(_ context.Context, id uuid.UUID, status model.Status, fin Final) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	tx, ok := f.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s not found", id)
	}
	if tx.Status != model.StatusProcessing {
		return fmt.Errorf("transaction %s not claimed", id)
	}
	if _, exists := f.reports[id]; !exists {
		f.reports[id] = fin.Report
	}
	tx.Status = status
	tx.LevelReached = fin.LevelReached
	tx.ProcessedURI = fin.ProcessedURI
	tx.ERPVendorID = fin.ERPVendorID
	tx.IsDuplicate = fin.IsDuplicate
	tx.ProcessedAt = time.Now()
	if fin.Invoice != nil {
		tx.InvoiceNumber = fin.Invoice.InvoiceNumber
		tx.IssueDate = fin.Invoice.IssueDate
		tx.PayableAmount = fin.Invoice.PayableAmount
		tx.CurrencyCode = fin.Invoice.CurrencyCode
		tx.SellerName = fin.Invoice.Seller.Name
		tx.SellerVATID = fin.Invoice.Seller.VATID
		tx.BuyerName = fin.Invoice.Buyer.Name
		tx.BuyerVATID = fin.Invoice.Buyer.VATID
		if fin.Invoice.POReference != nil {
			tx.PONumber = fin.Invoice.POReference.ID
		}
	}
	return nil
}

func (f *Fake) AppendLog(_ context.Context, id uuid.UUID, stage, level, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Fail != nil {
		return f.Fail
	}
	f.logs[id] = append(f.logs[id], fmt.Sprintf("%s %s %s", level, stage, message))
	return nil
}

// Report returns the stored report for inspection in tests.
func (f *Fake) Report(id uuid.UUID) *report.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reports[id]
}
