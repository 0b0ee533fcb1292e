package repository

import (
	"context"
	"time"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// InvoicingRecordRepository persistencia del libro de registros de facturación.
// El libro es append-only: no existe Delete y Update solo toca los campos de
// seguimiento de la remisión.
type InvoicingRecordRepository interface {
	Create(ctx context.Context, rec *entity.InvoicingRecord) error
	GetByID(ctx context.Context, id string) (*entity.InvoicingRecord, error)

	// GetLatestByCompany devuelve el registro más reciente de la cadena global
	// del tenant (nil, nil si el libro está vacío). Debe invocarse dentro de la
	// transacción serializada del ChainTxRunner para evitar bifurcaciones.
	GetLatestByCompany(ctx context.Context, companyID string) (*entity.InvoicingRecord, error)

	// ListByCompany devuelve una página del libro en orden de creación
	// ascendente. La paginación se resuelve en SQL con limit/offset.
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.InvoicingRecord, error)

	// CountByCompany devuelve el total de eslabones del libro del tenant.
	CountByCompany(ctx context.Context, companyID string) (int, error)

	// ListByInvoice devuelve los registros de una factura (alta y, si existe,
	// anulación) en orden de creación ascendente.
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.InvoicingRecord, error)

	// UpdateXML anota el payload XML generado para el registro.
	UpdateXML(ctx context.Context, id, xmlContent string) error

	// UpdateSubmissionState persiste SubmissionStatus, CSV y ErrorMessage.
	UpdateSubmissionState(ctx context.Context, rec *entity.InvoicingRecord) error

	// ListStale devuelve registros que siguen en pending/submitted desde antes
	// de olderThan (mecanismo de rescate del worker).
	ListStale(ctx context.Context, olderThan time.Time) ([]*entity.InvoicingRecord, error)
}
