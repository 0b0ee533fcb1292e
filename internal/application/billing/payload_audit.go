package billing

import (
	"context"
	"fmt"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	infraverifactu "github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/verifactu"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
)

// PayloadAuditor regenera el XML de un registro desde los datos vivos y lo
// coteja en forma canónica (C14N) con el payload anotado al encadenarlo. Una
// divergencia delata que los datos de la factura o del emisor cambiaron
// después de generar el registro.
type PayloadAuditor struct {
	invoices  repository.InvoiceRepository
	companies repository.CompanyRepository
	customers repository.CustomerRepository
	encoder   *infraverifactu.RecordXMLBuilder
	cfg       config.VerifactuConfig
}

// NewPayloadAuditor construye el auditor.
func NewPayloadAuditor(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	customers repository.CustomerRepository,
	encoder *infraverifactu.RecordXMLBuilder,
	cfg config.VerifactuConfig,
) *PayloadAuditor {
	return &PayloadAuditor{
		invoices:  invoices,
		companies: companies,
		customers: customers,
		encoder:   encoder,
		cfg:       cfg,
	}
}

// PayloadMatches indica si el XML anotado del registro coincide con el
// regenerado. Error si el registro no tiene XML o si faltan los datos para
// regenerarlo.
func (a *PayloadAuditor) PayloadMatches(ctx context.Context, rec *entity.InvoicingRecord) (bool, error) {
	if rec.XMLContent == "" {
		return false, fmt.Errorf("billing: el registro %s no tiene XML anotado", rec.ID)
	}

	inv, err := a.invoices.GetByID(ctx, rec.InvoiceID)
	if err != nil {
		return false, fmt.Errorf("billing: cargar factura %s: %w", rec.InvoiceID, err)
	}
	if inv == nil {
		return false, fmt.Errorf("billing: la factura %s del registro %s ya no existe", rec.InvoiceID, rec.ID)
	}
	company, err := a.companies.GetByID(ctx, rec.CompanyID)
	if err != nil {
		return false, fmt.Errorf("billing: cargar empresa %s: %w", rec.CompanyID, err)
	}
	if company == nil {
		return false, fmt.Errorf("billing: la empresa %s del registro %s ya no existe", rec.CompanyID, rec.ID)
	}

	buildCtx, err := assembleBuildContext(ctx, a.invoices, a.customers, a.cfg, rec, inv, company)
	if err != nil {
		return false, err
	}

	var regenerated []byte
	if rec.RecordType == entity.RecordTypeAnulacion {
		regenerated, err = a.encoder.BuildCancellation(buildCtx)
	} else {
		regenerated, err = a.encoder.BuildRegistration(buildCtx)
	}
	if err != nil {
		return false, fmt.Errorf("billing: regenerar XML del registro %s: %w", rec.ID, err)
	}

	return infraverifactu.SamePayload([]byte(rec.XMLContent), regenerated)
}
