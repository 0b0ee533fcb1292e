package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo acceso de lectura a contrapartes.
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID recupera el cliente (nil, nil si no existe).
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, company_id, name, tax_id, country, created_at, updated_at
		FROM customers
		WHERE id = $1`, id)

	var c entity.Customer
	var taxID, country *string
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &taxID, &country, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.TaxID = orEmpty(taxID)
	c.Country = orEmpty(country)
	return &c, nil
}
