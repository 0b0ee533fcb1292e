package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.InvoicingRecordRepository = (*InvoicingRecordRepo)(nil)

// InvoicingRecordRepo implementación sobre PostgreSQL (usable con pool o tx).
// La tabla invoicing_records es append-only: no hay DELETE y los UPDATE solo
// tocan los campos de seguimiento de la remisión.
type InvoicingRecordRepo struct {
	q Querier
}

// NewInvoicingRecordRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoicingRecordRepository(q Querier) *InvoicingRecordRepo {
	return &InvoicingRecordRepo{q: q}
}

const invoicingRecordColumns = `
	id, company_id, invoice_id, record_type, issuer_nif, invoice_number,
	expedition_date, invoice_type, tax_amount, total_amount,
	previous_hash, hash, generated_at, xml_content, submission_status,
	csv, error_message, created_at`

// Create persiste un nuevo eslabón del libro.
func (r *InvoicingRecordRepo) Create(ctx context.Context, rec *entity.InvoicingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoicing_records (id, company_id, invoice_id, record_type, issuer_nif, invoice_number,
			expedition_date, invoice_type, tax_amount, total_amount,
			previous_hash, hash, generated_at, xml_content, submission_status,
			csv, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.CompanyID, rec.InvoiceID, rec.RecordType, rec.IssuerNIF, rec.InvoiceNumber,
		rec.ExpeditionDate, rec.InvoiceType, rec.TaxAmount, rec.TotalAmount,
		rec.PreviousHash, rec.Hash, rec.GeneratedAt, nullIfEmpty(rec.XMLContent), rec.SubmissionStatus,
		nullIfEmpty(rec.CSV), nullIfEmpty(rec.ErrorMessage), rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registro duplicado: %w", err)
		}
		return fmt.Errorf("insert invoicing_record: %w", err)
	}
	return nil
}

// GetByID recupera un registro por su ID (nil, nil si no existe).
func (r *InvoicingRecordRepo) GetByID(ctx context.Context, id string) (*entity.InvoicingRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+invoicingRecordColumns+` FROM invoicing_records WHERE id = $1`, id)
	return scanInvoicingRecord(row)
}

// GetLatestByCompany devuelve el último eslabón del libro del tenant
// (nil, nil si el libro está vacío). Invocar dentro de la transacción
// serializada de RunChain.
func (r *InvoicingRecordRepo) GetLatestByCompany(ctx context.Context, companyID string) (*entity.InvoicingRecord, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+invoicingRecordColumns+`
		FROM invoicing_records
		WHERE company_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, companyID)
	return scanInvoicingRecord(row)
}

// ListByCompany devuelve una página del libro en orden de creación ascendente.
func (r *InvoicingRecordRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.InvoicingRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+invoicingRecordColumns+`
		FROM invoicing_records
		WHERE company_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list invoicing_records: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoicingRecord
	for rows.Next() {
		rec, err := scanInvoicingRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByCompany devuelve el número de eslabones del libro del tenant.
func (r *InvoicingRecordRepo) CountByCompany(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM invoicing_records WHERE company_id = $1`, companyID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count invoicing_records: %w", err)
	}
	return n, nil
}

// ListByInvoice devuelve los registros asociados a una factura en orden de
// creación ascendente.
func (r *InvoicingRecordRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.InvoicingRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+invoicingRecordColumns+`
		FROM invoicing_records
		WHERE invoice_id = $1
		ORDER BY created_at ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoicing_records by invoice: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoicingRecord
	for rows.Next() {
		rec, err := scanInvoicingRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateXML anota el payload generado para el registro.
func (r *InvoicingRecordRepo) UpdateXML(ctx context.Context, id, xmlContent string) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoicing_records SET xml_content = $2 WHERE id = $1`, id, xmlContent)
	if err != nil {
		return fmt.Errorf("update xml_content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registro %s no encontrado", id)
	}
	return nil
}

// UpdateSubmissionState persiste el seguimiento de la remisión; el resto de
// columnas participa en la huella y no se toca.
func (r *InvoicingRecordRepo) UpdateSubmissionState(ctx context.Context, rec *entity.InvoicingRecord) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoicing_records
		SET submission_status = $2,
		    csv               = $3,
		    error_message     = $4
		WHERE id = $1`,
		rec.ID, rec.SubmissionStatus, nullIfEmpty(rec.CSV), nullIfEmpty(rec.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("update submission state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registro %s no encontrado", rec.ID)
	}
	return nil
}

// ListStale devuelve registros en pending/submitted creados antes de olderThan.
func (r *InvoicingRecordRepo) ListStale(ctx context.Context, olderThan time.Time) ([]*entity.InvoicingRecord, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+invoicingRecordColumns+`
		FROM invoicing_records
		WHERE submission_status IN ($1, $2) AND created_at < $3
		ORDER BY created_at ASC`,
		entity.RecordStatusPending, entity.RecordStatusSubmitted, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stale invoicing_records: %w", err)
	}
	defer rows.Close()

	var out []*entity.InvoicingRecord
	for rows.Next() {
		rec, err := scanInvoicingRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanInvoicingRecord(row pgx.Row) (*entity.InvoicingRecord, error) {
	var rec entity.InvoicingRecord
	var xmlContent, csv, errorMessage *string
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.InvoiceID, &rec.RecordType, &rec.IssuerNIF, &rec.InvoiceNumber,
		&rec.ExpeditionDate, &rec.InvoiceType, &rec.TaxAmount, &rec.TotalAmount,
		&rec.PreviousHash, &rec.Hash, &rec.GeneratedAt, &xmlContent, &rec.SubmissionStatus,
		&csv, &errorMessage, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan invoicing_record: %w", err)
	}
	rec.XMLContent = orEmpty(xmlContent)
	rec.CSV = orEmpty(csv)
	rec.ErrorMessage = orEmpty(errorMessage)
	return &rec, nil
}
