package billing

import (
	"context"
	"fmt"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

// ComplianceQuery consultas de solo lectura sobre el estado del canal:
// seguimiento por factura, libro de registros e historial de intentos.
type ComplianceQuery struct {
	invoices    repository.InvoiceRepository
	records     repository.InvoicingRecordRepository
	submissions repository.AeatSubmissionRepository
}

// NewComplianceQuery construye el servicio de consultas.
func NewComplianceQuery(
	invoices repository.InvoiceRepository,
	records repository.InvoicingRecordRepository,
	submissions repository.AeatSubmissionRepository,
) *ComplianceQuery {
	return &ComplianceQuery{invoices: invoices, records: records, submissions: submissions}
}

// InvoiceCompliance devuelve la factura y sus registros de facturación.
// Retorna ErrNotFound si la factura no existe y ErrForbidden si pertenece a
// otro tenant.
func (q *ComplianceQuery) InvoiceCompliance(ctx context.Context, companyID, invoiceID string) (*entity.Invoice, []*entity.InvoicingRecord, error) {
	inv, err := q.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("billing: cargar factura %s: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, nil, domain.ErrNotFound
	}
	if inv.CompanyID != companyID {
		return nil, nil, domain.ErrForbidden
	}
	recs, err := q.records.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("billing: listar registros de %s: %w", invoiceID, err)
	}
	return inv, recs, nil
}

// ListRecords devuelve una página del libro del tenant en orden de creación,
// junto al total de registros disponibles.
func (q *ComplianceQuery) ListRecords(ctx context.Context, companyID string, limit, offset int) ([]*entity.InvoicingRecord, int, error) {
	total, err := q.records.CountByCompany(ctx, companyID)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: contar libro de %s: %w", companyID, err)
	}
	recs, err := q.records.ListByCompany(ctx, companyID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("billing: listar libro de %s: %w", companyID, err)
	}
	return recs, total, nil
}

// RecordAttempts devuelve un registro y su historial de intentos de remisión.
// Mismas garantías de tenencia que InvoiceCompliance.
func (q *ComplianceQuery) RecordAttempts(ctx context.Context, companyID, recordID string) (*entity.InvoicingRecord, []*entity.AeatSubmission, error) {
	rec, err := q.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, nil, fmt.Errorf("billing: cargar registro %s: %w", recordID, err)
	}
	if rec == nil {
		return nil, nil, domain.ErrNotFound
	}
	if rec.CompanyID != companyID {
		return nil, nil, domain.ErrForbidden
	}
	attempts, err := q.submissions.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, nil, fmt.Errorf("billing: listar intentos de %s: %w", recordID, err)
	}
	return rec, attempts, nil
}
