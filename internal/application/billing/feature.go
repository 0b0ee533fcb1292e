package billing

import (
	"context"
	"fmt"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

// FeatureGate responde si el canal VERI*FACTU está operativo para una empresa:
// feature contratada Y perfil de emisor completo.
type FeatureGate struct {
	companies repository.CompanyRepository
}

// NewFeatureGate construye el gate sobre el repositorio de empresas.
func NewFeatureGate(companies repository.CompanyRepository) *FeatureGate {
	return &FeatureGate{companies: companies}
}

// VerifactuEnabled indica si el canal está activo para la empresa.
func (g *FeatureGate) VerifactuEnabled(ctx context.Context, companyID string) (bool, error) {
	company, err := g.companies.GetByID(ctx, companyID)
	if err != nil {
		return false, fmt.Errorf("billing: cargar empresa %s: %w", companyID, err)
	}
	if company == nil {
		return false, nil
	}
	return company.VerifactuEnabled && company.IssuerConfigured(), nil
}
