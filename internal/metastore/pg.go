package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SHDeniz/IIEV-Ultra/internal/model"
)

// PgStore implements Store on PostgreSQL. Status transitions are row-level
// conditional updates; the terminal write and the report insert share one
// database transaction.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Insert(ctx context.Context, tx *model.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoice_transactions
			(id, status, format, source, original_filename, content_type, file_size,
			 raw_uri, level_reached, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, now(), now())`,
		tx.ID, model.StatusReceived, model.FormatUnknown, tx.Source,
		tx.OriginalFilename, tx.ContentType, tx.FileSize, tx.RawURI, model.LevelNone)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	tx := &model.Transaction{}
	var processedAt *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, format, source, original_filename, content_type, file_size,
		       raw_uri, coalesce(processed_uri, ''), level_reached,
		       coalesce(invoice_number, ''), coalesce(issue_date, 'epoch'::timestamptz),
		       coalesce(payable_amount, 0), coalesce(currency_code, ''),
		       coalesce(seller_name, ''), coalesce(seller_vat_id, ''),
		       coalesce(buyer_name, ''), coalesce(buyer_vat_id, ''),
		       coalesce(erp_vendor_id, ''), coalesce(po_number, ''), is_duplicate,
		       coalesce(error_message, ''), retry_count, created_at, updated_at, processed_at
		FROM invoice_transactions WHERE id = $1`, id).Scan(
		&tx.ID, &tx.Status, &tx.Format, &tx.Source, &tx.OriginalFilename, &tx.ContentType,
		&tx.FileSize, &tx.RawURI, &tx.ProcessedURI, &tx.LevelReached,
		&tx.InvoiceNumber, &tx.IssueDate, &tx.PayableAmount, &tx.CurrencyCode,
		&tx.SellerName, &tx.SellerVATID, &tx.BuyerName, &tx.BuyerVATID,
		&tx.ERPVendorID, &tx.PONumber, &tx.IsDuplicate,
		&tx.ErrorMessage, &tx.RetryCount, &tx.CreatedAt, &tx.UpdatedAt, &processedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", id, err)
	}
	if processedAt != nil {
		tx.ProcessedAt = *processedAt
	}
	return tx, nil
}

func (s *PgStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoice_transactions
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status IN ($3, $4)`,
		model.StatusProcessing, id, model.StatusReceived, model.StatusError)
	if err != nil {
		return false, fmt.Errorf("claim transaction %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Release(ctx context.Context, id uuid.UUID, reason string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE invoice_transactions
		SET status = $1, retry_count = retry_count + 1, error_message = $2, updated_at = now()
		WHERE id = $3
		RETURNING retry_count`,
		model.StatusReceived, reason, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("release transaction %s: %w", id, err)
	}
	return count, nil
}

func (s *PgStore) MarkError(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE invoice_transactions
		SET status = $1, error_message = $2, processed_at = now(), updated_at = now()
		WHERE id = $3`,
		model.StatusError, reason, id)
	if err != nil {
		return fmt.Errorf("mark transaction %s failed: %w", id, err)
	}
	return nil
}

func (s *PgStore) SetFormat(ctx context.Context, id uuid.UUID, format model.Format, level model.Level) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE invoice_transactions
		SET format = $1, level_reached = $2, updated_at = now()
		WHERE id = $3`, format, level, id)
	if err != nil {
		return fmt.Errorf("set format on %s: %w", id, err)
	}
	return nil
}

func (s *PgStore) Finalize(ctx context.Context, id uuid.UUID, status model.Status, f Final) error {
	reportJSON, err := json.Marshal(f.Report)
	if err != nil {
		return fmt.Errorf("encode report for %s: %w", id, err)
	}

	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("finalize %s: %w", id, err)
	}
	defer dbtx.Rollback(ctx)

	if f.Invoice != nil {
		inv := f.Invoice
		var po string
		if inv.POReference != nil {
			po = inv.POReference.ID
		}
		_, err = dbtx.Exec(ctx, `
			UPDATE invoice_transactions
			SET status = $1, level_reached = $2, processed_uri = $3,
			    invoice_number = $4, issue_date = $5, payable_amount = $6,
			    currency_code = $7, seller_name = $8, seller_vat_id = $9,
			    buyer_name = $10, buyer_vat_id = $11, erp_vendor_id = $12,
			    po_number = $13, is_duplicate = $14,
			    processed_at = now(), updated_at = now()
			WHERE id = $15 AND status = $16`,
			status, f.LevelReached, f.ProcessedURI,
			inv.InvoiceNumber, inv.IssueDate, inv.PayableAmount,
			inv.CurrencyCode, inv.Seller.Name, inv.Seller.VATID,
			inv.Buyer.Name, inv.Buyer.VATID, f.ERPVendorID,
			po, f.IsDuplicate, id, model.StatusProcessing)
	} else {
		_, err = dbtx.Exec(ctx, `
			UPDATE invoice_transactions
			SET status = $1, level_reached = $2, processed_at = now(), updated_at = now()
			WHERE id = $3 AND status = $4`,
			status, f.LevelReached, id, model.StatusProcessing)
	}
	if err != nil {
		return fmt.Errorf("finalize %s: %w", id, err)
	}

	_, err = dbtx.Exec(ctx, `
		INSERT INTO validation_reports (transaction_id, report, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (transaction_id) DO NOTHING`,
		id, reportJSON)
	if err != nil {
		return fmt.Errorf("store report for %s: %w", id, err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("finalize %s: %w", id, err)
	}
	return nil
}

func (s *PgStore) AppendLog(ctx context.Context, id uuid.UUID, stage, level, message string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_log (transaction_id, stage, level, message, created_at)
		VALUES ($1, $2, $3, $4, now())`,
		id, stage, level, message)
	if err != nil {
		return fmt.Errorf("append log for %s: %w", id, err)
	}
	return nil
}
