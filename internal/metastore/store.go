// Package metastore is the read/write metadata persistence of the pipeline:
// the transaction table with its status machine, the processing log, and the
// stored validation reports.
package metastore

import (
	"context"

	"github.com/google/uuid"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
)

// Store is the metadata contract of the task driver. Every error returned
// here is treated as transient; the queue redelivers the task.
type Store interface {
	// Insert creates a transaction in RECEIVED state.
	Insert(ctx context.Context, tx *model.Transaction) error

	// Get loads one transaction.
	Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error)

	// Claim attempts the RECEIVED|ERROR -> PROCESSING transition as one
	// conditional update. It reports false when another worker holds the
	// row or the transaction is already terminal. This is the only
	// serialisation point in the pipeline.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// Release reverts a claimed transaction to RECEIVED after a transient
	// failure and increments the retry counter. It returns the new count.
	Release(ctx context.Context, id uuid.UUID, reason string) (int, error)

	// MarkError sets the terminal ERROR status after retries are
	// exhausted or on a programmer error.
	MarkError(ctx context.Context, id uuid.UUID, reason string) error

	// SetFormat records the detected format and the level reached so far.
	SetFormat(ctx context.Context, id uuid.UUID, format model.Format, level model.Level) error

	// Finalize writes the terminal status, the denormalised invoice
	// fields and the validation report in one transaction.
	Finalize(ctx context.Context, id uuid.UUID, status model.Status, f Final) error

	// AppendLog adds one processing log row. Log failures are reported
	// but never fail the task.
	AppendLog(ctx context.Context, id uuid.UUID, stage, level, message string) error
}

// Final carries everything written together with a terminal status.
type Final struct {
	Report       *report.Report
	Invoice      *model.Invoice // nil when mapping never succeeded
	LevelReached model.Level
	ProcessedURI string
	ERPVendorID  string
	IsDuplicate  bool
}
