package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo implementación sobre PostgreSQL (usable con pool o tx).
type CertificateRepo struct {
	q Querier
}

// NewCertificateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

const certificateColumns = `
	id, company_id, label, subject_cn, serial_number, not_before, not_after,
	bundle_path, encrypted_passphrase, is_active, created_at, updated_at`

// Create persiste una identidad subida.
func (r *CertificateRepo) Create(ctx context.Context, cert *entity.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	query := `
		INSERT INTO certificates (id, company_id, label, subject_cn, serial_number, not_before, not_after,
			bundle_path, encrypted_passphrase, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		cert.ID, cert.CompanyID, cert.Label, cert.SubjectCN, cert.SerialNumber,
		cert.NotBefore, cert.NotAfter, cert.BundlePath, cert.EncryptedPassphrase,
		cert.IsActive, cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// GetByID recupera un certificado (nil, nil si no existe).
func (r *CertificateRepo) GetByID(ctx context.Context, id string) (*entity.Certificate, error) {
	row := r.q.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	return scanCertificate(row)
}

// GetActiveByCompany devuelve la fila activa más reciente: no se fuerza un
// único activo por empresa, gana el último.
func (r *CertificateRepo) GetActiveByCompany(ctx context.Context, companyID string) (*entity.Certificate, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE company_id = $1 AND is_active = true
		ORDER BY created_at DESC
		LIMIT 1`, companyID)
	return scanCertificate(row)
}

// ListByCompany devuelve todas las identidades del tenant, recientes primero.
func (r *CertificateRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Certificate, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE company_id = $1
		ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	var out []*entity.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	return out, rows.Err()
}

// SetActive cambia el flag de activación de una identidad.
func (r *CertificateRepo) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE certificates SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("certificado %s no encontrado", id)
	}
	return nil
}

func scanCertificate(row pgx.Row) (*entity.Certificate, error) {
	var cert entity.Certificate
	err := row.Scan(
		&cert.ID, &cert.CompanyID, &cert.Label, &cert.SubjectCN, &cert.SerialNumber,
		&cert.NotBefore, &cert.NotAfter, &cert.BundlePath, &cert.EncryptedPassphrase,
		&cert.IsActive, &cert.CreatedAt, &cert.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	return &cert, nil
}
