package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo acceso de lectura al perfil del tenant.
type CompanyRepo struct {
	q Querier
}

// NewCompanyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

// GetByID recupera la empresa (nil, nil si no existe).
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, legal_name, nif, address, email, status, verifactu_enabled, created_at, updated_at
		FROM companies
		WHERE id = $1`, id)

	var c entity.Company
	var legalName, nif, address, email *string
	err := row.Scan(
		&c.ID, &legalName, &nif, &address, &email, &c.Status,
		&c.VerifactuEnabled, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	c.LegalName = orEmpty(legalName)
	c.NIF = orEmpty(nif)
	c.Address = orEmpty(address)
	c.Email = orEmpty(email)
	return &c, nil
}
