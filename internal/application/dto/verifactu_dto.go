package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// CertificateResponse identidad X.509 del tenant en respuestas. Nunca expone
// el bundle ni la contraseña.
type CertificateResponse struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	SubjectCN    string    `json:"subject_cn"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCertificateResponse mapea la entidad a su representación pública.
func NewCertificateResponse(c *entity.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:           c.ID,
		Label:        c.Label,
		SubjectCN:    c.SubjectCN,
		SerialNumber: c.SerialNumber,
		NotBefore:    c.NotBefore,
		NotAfter:     c.NotAfter,
		IsActive:     c.IsActive,
		CreatedAt:    c.CreatedAt,
	}
}

// InvoicingRecordResponse eslabón del libro para respuestas de auditoría.
type InvoicingRecordResponse struct {
	ID               string          `json:"id"`
	InvoiceID        string          `json:"invoice_id"`
	RecordType       string          `json:"record_type"`
	IssuerNIF        string          `json:"issuer_nif"`
	InvoiceNumber    string          `json:"invoice_number"`
	ExpeditionDate   string          `json:"expedition_date"`
	InvoiceType      string          `json:"invoice_type"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	PreviousHash     string          `json:"previous_hash"`
	Hash             string          `json:"hash"`
	GeneratedAt      string          `json:"generated_at"`
	SubmissionStatus string          `json:"submission_status"`
	CSV              string          `json:"csv,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewInvoicingRecordResponse mapea la entidad a su representación pública.
// El XML generado no viaja en listados; se consulta por registro.
func NewInvoicingRecordResponse(r *entity.InvoicingRecord) InvoicingRecordResponse {
	return InvoicingRecordResponse{
		ID:               r.ID,
		InvoiceID:        r.InvoiceID,
		RecordType:       r.RecordType,
		IssuerNIF:        r.IssuerNIF,
		InvoiceNumber:    r.InvoiceNumber,
		ExpeditionDate:   r.ExpeditionDate,
		InvoiceType:      r.InvoiceType,
		TaxAmount:        r.TaxAmount,
		TotalAmount:      r.TotalAmount,
		PreviousHash:     r.PreviousHash,
		Hash:             r.Hash,
		GeneratedAt:      r.GeneratedAt,
		SubmissionStatus: r.SubmissionStatus,
		CSV:              r.CSV,
		ErrorMessage:     r.ErrorMessage,
		CreatedAt:        r.CreatedAt,
	}
}

// SubmissionResponse intento de remisión en el historial de un registro.
type SubmissionResponse struct {
	ID               string    `json:"id"`
	AttemptNumber    int       `json:"attempt_number"`
	Status           string    `json:"status"`
	HTTPStatus       int       `json:"http_status,omitempty"`
	CSV              string    `json:"csv,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewSubmissionResponse mapea el intento; los XML crudos no se exponen.
func NewSubmissionResponse(s *entity.AeatSubmission) SubmissionResponse {
	return SubmissionResponse{
		ID:               s.ID,
		AttemptNumber:    s.AttemptNumber,
		Status:           s.Status,
		HTTPStatus:       s.HTTPStatus,
		CSV:              s.CSV,
		ErrorCode:        s.ErrorCode,
		ErrorDescription: s.ErrorDescription,
		CreatedAt:        s.CreatedAt,
	}
}

// InvoiceComplianceResponse respuesta del endpoint de polling
// GET /api/invoices/:id/verifactu. El frontend consulta periódicamente hasta
// que verifactu_status sea accepted, rejected o error.
type InvoiceComplianceResponse struct {
	InvoiceID       string                    `json:"invoice_id"`
	VerifactuStatus string                    `json:"verifactu_status"`
	QRUrl           string                    `json:"qr_url,omitempty"`
	Error           string                    `json:"error,omitempty"`
	Records         []InvoicingRecordResponse `json:"records"`
}

// RecordDetailResponse registro con su historial de intentos.
type RecordDetailResponse struct {
	Record   InvoicingRecordResponse `json:"record"`
	Attempts []SubmissionResponse    `json:"attempts"`
}
