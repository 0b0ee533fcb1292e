package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo acceso de lectura a facturas del editor y mutación de sus campos
// de cumplimiento. La creación y edición de facturas es del editor de
// documentos; este subsistema nunca inserta ni borra.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// GetByID recupera la cabecera de la factura (nil, nil si no existe).
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, company_id, customer_id, doc_kind, series, number, issue_date, invoice_type,
		       net_total, tax_total, grand_total,
		       rectified_invoice_id, rectification_type,
		       verifactu_status, verifactu_error, qr_url, created_at, updated_at
		FROM invoices
		WHERE id = $1`, id)

	var inv entity.Invoice
	var customerID, rectifiedID, rectType, vfError, qrURL *string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &customerID, &inv.DocKind, &inv.Series, &inv.Number,
		&inv.IssueDate, &inv.InvoiceType, &inv.NetTotal, &inv.TaxTotal, &inv.GrandTotal,
		&rectifiedID, &rectType, &inv.VerifactuStatus, &vfError, &qrURL,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	inv.CustomerID = orEmpty(customerID)
	inv.RectifiedInvoiceID = orEmpty(rectifiedID)
	inv.RectificationType = orEmpty(rectType)
	inv.VerifactuError = orEmpty(vfError)
	inv.QRUrl = orEmpty(qrURL)
	return &inv, nil
}

// GetLinesByInvoiceID devuelve las líneas fiscales de la factura.
func (r *InvoiceRepo) GetLinesByInvoiceID(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, base_amount, tax_rate, tax_amount,
		       surcharge_rate, surcharge_amount, exemption_code
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice_lines: %w", err)
	}
	defer rows.Close()

	var out []entity.InvoiceLine
	for rows.Next() {
		var line entity.InvoiceLine
		var exemption *string
		if err := rows.Scan(
			&line.ID, &line.InvoiceID, &line.BaseAmount, &line.TaxRate, &line.TaxAmount,
			&line.SurchargeRate, &line.SurchargeAmount, &exemption,
		); err != nil {
			return nil, fmt.Errorf("scan invoice_line: %w", err)
		}
		line.ExemptionCode = orEmpty(exemption)
		out = append(out, line)
	}
	return out, rows.Err()
}

// UpdateVerifactu actualiza estado de cumplimiento, URL QR y mensaje de error.
// qrURL vacío conserva el valor existente.
func (r *InvoiceRepo) UpdateVerifactu(ctx context.Context, id, status, qrURL, errorMsg string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices
		SET verifactu_status = $2,
		    qr_url           = COALESCE($3, qr_url),
		    verifactu_error  = $4,
		    updated_at       = NOW()
		WHERE id = $1`,
		id, status, nullIfEmpty(qrURL), nullIfEmpty(errorMsg),
	)
	if err != nil {
		return fmt.Errorf("update invoice verifactu: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("factura %s no encontrada", id)
	}
	return nil
}
