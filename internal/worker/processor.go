// Package worker drives invoice transactions end-to-end: it claims the row,
// runs the validation stages in order, assembles the report and writes the
// terminal status. Tasks arrive at least once; the claim protocol makes
// replays safe.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SHDeniz/IIEV-Ultra/internal/business"
	"github.com/SHDeniz/IIEV-Ultra/internal/extract"
	"github.com/SHDeniz/IIEV-Ultra/internal/mapping"
	"github.com/SHDeniz/IIEV-Ultra/internal/metastore"
	"github.com/SHDeniz/IIEV-Ultra/internal/model"
	"github.com/SHDeniz/IIEV-Ultra/internal/queue"
	"github.com/SHDeniz/IIEV-Ultra/internal/report"
	"github.com/SHDeniz/IIEV-Ultra/internal/storage"
	"github.com/SHDeniz/IIEV-Ultra/internal/validate"
)

// Stage names as they appear in reports and the processing log.
const (
	StageFormat      = "format_detection"
	StageMapping     = "mapping"
	StageStructure   = "structure_validation"
	StageSemantic    = "semantic_validation"
	StageCalculation = "calculation_validation"
	StageBusiness    = "business_validation"
)

// StructureValidator is the schema validation dependency of the driver.
// *validate.XSDValidator is the production implementation.
type StructureValidator interface {
	Validate(syntax extract.Syntax, data []byte) []report.Finding
}

// SemanticValidator is the Schematron dependency of the driver.
// *validate.KositValidator is the production implementation.
type SemanticValidator interface {
	Validate(ctx context.Context, transactionID string, xmlData []byte) ([]report.Finding, error)
}

// Processor runs one transaction at a time through the pipeline.
type Processor struct {
	Store     metastore.Store
	Blobs     storage.BlobStore
	Queue     queue.Queue
	XSD       StructureValidator
	Kosit     SemanticValidator
	Business  *business.Validator
	Tolerance decimal.Decimal
	Backoff   queue.Backoff

	ProcessedBucket string
	Log             *slog.Logger
}

// Handle consumes one delivery. It returns an error only when even the
// retry bookkeeping failed; normal transient failures are rescheduled here.
func (p *Processor) Handle(ctx context.Context, task *queue.Task) error {
	log := p.Log.With("transaction_id", task.TransactionID, "delivery", task.DeliveryCount)

	claimed, err := p.Store.Claim(ctx, task.TransactionID)
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	if !claimed {
		// Another worker holds the row or it is already terminal.
		log.Info("transaction not claimable, dropping delivery")
		return nil
	}

	tx, err := p.Store.Get(ctx, task.TransactionID)
	if err != nil {
		return p.retry(ctx, task, err)
	}

	if err := p.run(ctx, tx, log); err != nil {
		log.Warn("transient failure", "error", err)
		return p.retry(ctx, task, err)
	}
	return nil
}

// retry reverts the claim and reschedules with backoff. Once the attempt
// cap is reached the transaction goes terminal ERROR.
func (p *Processor) retry(ctx context.Context, task *queue.Task, cause error) error {
	count, err := p.Store.Release(ctx, task.TransactionID, cause.Error())
	if err != nil {
		return errors.Join(cause, err)
	}
	if count >= p.Backoff.MaxAttempts {
		p.Log.Error("retries exhausted", "transaction_id", task.TransactionID, "error", cause)
		return p.Store.MarkError(ctx, task.TransactionID, cause.Error())
	}
	delay := p.Backoff.Delay(count)
	if err := p.Queue.EnqueueAfter(ctx, *task, delay); err != nil {
		return errors.Join(cause, err)
	}
	p.log(ctx, task.TransactionID, "retry", "WARNING",
		fmt.Sprintf("attempt %d failed, retry in %s: %v", count, delay.Round(time.Second), cause))
	return nil
}

// run executes the stages. A returned error is transient; permanent
// outcomes finalize the transaction and return nil.
func (p *Processor) run(ctx context.Context, tx *model.Transaction, log *slog.Logger) error {
	rep := &report.Report{TransactionID: tx.ID.String(), StartedAt: time.Now()}

	data, err := p.Blobs.Get(ctx, tx.RawURI)
	if errors.Is(err, storage.ErrNotFound) {
		// The raw blob is gone; no retry will bring it back.
		return p.Store.MarkError(ctx, tx.ID, err.Error())
	}
	if err != nil {
		return err
	}

	// Stage 1: carrier routing and XML extraction.
	started := time.Now()
	res, err := extract.Route(data, tx.ContentType)
	if err != nil {
		rep.AddStep(StageFormat, started, []report.Finding{structuralFailure(err)})
		p.skipFrom(rep, StageMapping)
		return p.finalize(ctx, tx, rep, metastore.Final{LevelReached: model.LevelNone})
	}
	rep.AddStep(StageFormat, started, nil)
	rep.DetectedFormat = string(res.Format)

	if err := p.Store.SetFormat(ctx, tx.ID, res.Format, model.LevelStructure); err != nil {
		return err
	}

	if res.Opaque() {
		// A structurally valid PDF without embedded invoice XML goes to a
		// human, there is nothing to validate.
		rep.AddSkipped(StageMapping, report.Finding{
			Severity: report.SeverityInfo,
			Code:     report.CodeNoEmbeddedXML,
			Message:  "PDF carries no embedded invoice XML, routed to manual review",
		})
		p.skipFrom(rep, StageStructure)
		return p.finalize(ctx, tx, rep, metastore.Final{LevelReached: model.LevelStructure})
	}

	// The extracted XML is archived even when validation fails later.
	processedURI := fmt.Sprintf("%s/%s/invoice.xml", p.ProcessedBucket, tx.ID)
	if err := p.Blobs.Put(ctx, processedURI, res.XML, "application/xml"); err != nil {
		return err
	}

	// Stage 2: canonical mapping.
	started = time.Now()
	inv, findings := mapping.Map(res)
	step := rep.AddStep(StageMapping, started, findings)
	p.log(ctx, tx.ID, StageMapping, string(step.Outcome), stepSummary(step))
	if inv != nil {
		rep.InvoiceNumber = inv.InvoiceNumber
	}

	final := metastore.Final{ProcessedURI: processedURI, Invoice: inv, LevelReached: model.LevelStructure}

	// Stage 3: schema validation.
	if rep.HasFatal() {
		p.skipFrom(rep, StageStructure)
		return p.finalize(ctx, tx, rep, final)
	}
	started = time.Now()
	step = rep.AddStep(StageStructure, started, p.XSD.Validate(res.Syntax, res.XML))
	p.log(ctx, tx.ID, StageStructure, string(step.Outcome), stepSummary(step))
	if rep.HasFatal() {
		p.skipFrom(rep, StageSemantic)
		return p.finalize(ctx, tx, rep, final)
	}

	// Stage 4: semantic validation through the external engine.
	started = time.Now()
	semFindings, err := p.Kosit.Validate(ctx, tx.ID.String(), res.XML)
	switch {
	case errors.Is(err, validate.ErrKositUnavailable):
		rep.AddSkipped(StageSemantic, report.Finding{
			Severity: report.SeverityInfo,
			Code:     report.CodeKositUnavailable,
			Message:  err.Error(),
		})
	case err != nil:
		return err
	default:
		step = rep.AddStep(StageSemantic, started, semFindings)
		p.log(ctx, tx.ID, StageSemantic, string(step.Outcome), stepSummary(step))
	}
	final.LevelReached = model.LevelSemantic
	if rep.HasFatal() {
		p.skipFrom(rep, StageCalculation)
		return p.finalize(ctx, tx, rep, final)
	}

	// Stage 5: arithmetic validation on the canonical record.
	started = time.Now()
	step = rep.AddStep(StageCalculation, started, validate.Calc(inv, p.Tolerance))
	p.log(ctx, tx.ID, StageCalculation, string(step.Outcome), stepSummary(step))
	final.LevelReached = model.LevelCalculation
	if rep.HasFatal() {
		p.skipFrom(rep, StageBusiness)
		return p.finalize(ctx, tx, rep, final)
	}

	// Stage 6: ERP business validation. Errors from earlier stages do not
	// stop the pipeline, only fatals do.
	started = time.Now()
	bizRes, err := p.Business.Validate(ctx, inv)
	if err != nil {
		return err
	}
	step = rep.AddStep(StageBusiness, started, bizRes.Findings)
	p.log(ctx, tx.ID, StageBusiness, string(step.Outcome), stepSummary(step))
	final.LevelReached = model.LevelBusiness
	final.ERPVendorID = bizRes.VendorID
	final.IsDuplicate = bizRes.Duplicate

	return p.finalize(ctx, tx, rep, final)
}

// finalize derives the terminal status from the report and persists both
// atomically.
func (p *Processor) finalize(ctx context.Context, tx *model.Transaction, rep *report.Report, final metastore.Final) error {
	status := model.StatusValid
	switch {
	case rep.HasFatal():
		status = model.StatusInvalid
	case rep.HasErrors():
		status = model.StatusManualReview
	case opaqueRun(rep):
		status = model.StatusManualReview
	}
	final.Report = rep
	if err := p.Store.Finalize(ctx, tx.ID, status, final); err != nil {
		return err
	}
	p.log(ctx, tx.ID, "completed", string(status),
		fmt.Sprintf("terminal status %s after %d stages", status, len(rep.Steps)))
	return nil
}

// opaqueRun detects the opaque-PDF shape: every stage after format
// detection was skipped without a fatal.
func opaqueRun(rep *report.Report) bool {
	for i, s := range rep.Steps {
		if i == 0 {
			continue
		}
		if s.Outcome != report.OutcomeSkipped {
			return false
		}
	}
	return len(rep.Steps) > 1
}

// stageOrder is the fixed pipeline sequence used when marking skips.
var stageOrder = []string{StageFormat, StageMapping, StageStructure, StageSemantic, StageCalculation, StageBusiness}

// skipFrom marks the named stage and everything after it as SKIPPED.
func (p *Processor) skipFrom(rep *report.Report, stage string) {
	skipping := false
	for _, name := range stageOrder {
		if name == stage {
			skipping = true
		}
		if skipping {
			rep.AddSkipped(name, report.Finding{
				Severity: report.SeverityInfo,
				Code:     report.CodePriorStageFatal,
				Message:  "not executed, an earlier stage failed fatally",
			})
		}
	}
}

// structuralFailure maps a routing error onto its finding.
func structuralFailure(err error) report.Finding {
	var unsupported *extract.UnsupportedCarrierError
	if errors.As(err, &unsupported) {
		return report.Finding{
			Severity: report.SeverityFatal,
			Code:     report.CodeXMLSyntaxError,
			Message:  err.Error(),
			Actual:   unsupported.ContentType,
		}
	}
	return report.Finding{
		Severity: report.SeverityFatal,
		Code:     report.CodeXMLSyntaxError,
		Message:  err.Error(),
	}
}

func stepSummary(step report.Step) string {
	return fmt.Sprintf("%d findings in %s", len(step.Findings), step.Duration.Round(time.Millisecond))
}

// log appends to the processing log; failures there are logged locally and
// never fail the task.
func (p *Processor) log(ctx context.Context, id uuid.UUID, stage, level, message string) {
	if err := p.Store.AppendLog(ctx, id, stage, level, message); err != nil {
		p.Log.Warn("processing log write failed", "stage", stage, "error", err)
	}
}
