package repository

import (
	"context"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// InvoiceRepository acceso de lectura a facturas y mutación estricta de sus
// campos de cumplimiento. La creación/edición de facturas pertenece al editor
// de documentos, fuera de este subsistema.
type InvoiceRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	GetLinesByInvoiceID(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error)

	// UpdateVerifactu actualiza estado de cumplimiento, URL QR y mensaje de
	// error. qrURL vacío conserva el valor existente.
	UpdateVerifactu(ctx context.Context, id, status, qrURL, errorMsg string) error
}

// CompanyRepository acceso de lectura al perfil del tenant.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}

// CustomerRepository acceso de lectura a contrapartes.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
}
