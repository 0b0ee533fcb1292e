package repository

import (
	"context"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// CertificateRepository persistencia de identidades de cliente X.509.
type CertificateRepository interface {
	Create(ctx context.Context, cert *entity.Certificate) error
	GetByID(ctx context.Context, id string) (*entity.Certificate, error)

	// GetActiveByCompany devuelve el certificado activo más reciente del tenant
	// (nil, nil si no hay ninguno marcado activo).
	GetActiveByCompany(ctx context.Context, companyID string) (*entity.Certificate, error)

	ListByCompany(ctx context.Context, companyID string) ([]*entity.Certificate, error)
	SetActive(ctx context.Context, id string, active bool) error
}
