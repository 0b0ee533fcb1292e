package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.AeatSubmissionRepository = (*AeatSubmissionRepo)(nil)

// AeatSubmissionRepo implementación sobre PostgreSQL (usable con pool o tx).
type AeatSubmissionRepo struct {
	q Querier
}

// NewAeatSubmissionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAeatSubmissionRepository(q Querier) *AeatSubmissionRepo {
	return &AeatSubmissionRepo{q: q}
}

// Create persiste un intento; se invoca antes de la llamada de red para que
// un crash a mitad de envío deje rastro.
func (r *AeatSubmissionRepo) Create(ctx context.Context, sub *entity.AeatSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	query := `
		INSERT INTO aeat_submissions (id, record_id, attempt_number, request_xml, response_xml,
			http_status, status, csv, error_code, error_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		sub.ID, sub.RecordID, sub.AttemptNumber, nullIfEmpty(sub.RequestXML), nullIfEmpty(sub.ResponseXML),
		sub.HTTPStatus, sub.Status, nullIfEmpty(sub.CSV), nullIfEmpty(sub.ErrorCode),
		nullIfEmpty(sub.ErrorDescription), sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert aeat_submission: %w", err)
	}
	return nil
}

// Update persiste el desenlace del intento.
func (r *AeatSubmissionRepo) Update(ctx context.Context, sub *entity.AeatSubmission) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE aeat_submissions
		SET response_xml      = $2,
		    http_status       = $3,
		    status            = $4,
		    csv               = $5,
		    error_code        = $6,
		    error_description = $7
		WHERE id = $1`,
		sub.ID, nullIfEmpty(sub.ResponseXML), sub.HTTPStatus, sub.Status,
		nullIfEmpty(sub.CSV), nullIfEmpty(sub.ErrorCode), nullIfEmpty(sub.ErrorDescription),
	)
	if err != nil {
		return fmt.Errorf("update aeat_submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("intento %s no encontrado", sub.ID)
	}
	return nil
}

// CountByRecord devuelve los intentos ya registrados para el registro.
func (r *AeatSubmissionRepo) CountByRecord(ctx context.Context, recordID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM aeat_submissions WHERE record_id = $1`, recordID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count aeat_submissions: %w", err)
	}
	return n, nil
}

// ListByRecord devuelve los intentos en orden de numeración.
func (r *AeatSubmissionRepo) ListByRecord(ctx context.Context, recordID string) ([]*entity.AeatSubmission, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, record_id, attempt_number, request_xml, response_xml,
		       http_status, status, csv, error_code, error_description, created_at
		FROM aeat_submissions
		WHERE record_id = $1
		ORDER BY attempt_number ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list aeat_submissions: %w", err)
	}
	defer rows.Close()

	var out []*entity.AeatSubmission
	for rows.Next() {
		var sub entity.AeatSubmission
		var requestXML, responseXML, csv, errorCode, errorDescription *string
		if err := rows.Scan(
			&sub.ID, &sub.RecordID, &sub.AttemptNumber, &requestXML, &responseXML,
			&sub.HTTPStatus, &sub.Status, &csv, &errorCode, &errorDescription, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan aeat_submission: %w", err)
		}
		sub.RequestXML = orEmpty(requestXML)
		sub.ResponseXML = orEmpty(responseXML)
		sub.CSV = orEmpty(csv)
		sub.ErrorCode = orEmpty(errorCode)
		sub.ErrorDescription = orEmpty(errorDescription)
		out = append(out, &sub)
	}
	return out, rows.Err()
}
