package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de documento del editor. Solo las facturas (normales y rectificativas)
// entran al canal VERI*FACTU; presupuestos y albaranes se ignoran.
const (
	DocKindInvoice       = "invoice"
	DocKindRectificative = "rectificative"
	DocKindQuote         = "quote"
	DocKindDeliveryNote  = "delivery_note"
)

// Estados de cumplimiento VERI*FACTU de la factura.
const (
	VerifactuStatusPending   = "pending"
	VerifactuStatusSubmitted = "submitted"
	VerifactuStatusAccepted  = "accepted"
	VerifactuStatusRejected  = "rejected"
	VerifactuStatusError     = "error"
)

// Invoice representa la cabecera de una factura finalizada. Este subsistema la
// referencia, nunca la crea ni la borra: solo muta su estado de cumplimiento,
// la URL de cotejo QR y el mensaje de error.
type Invoice struct {
	ID          string
	CompanyID   string
	CustomerID  string // vacío = sin destinatario conocido (ej. F2 simplificada)
	DocKind     string
	Series      string
	Number      string
	IssueDate   time.Time
	InvoiceType string // F1..F3, R1..R5 (catálogo verifactu)

	NetTotal   decimal.Decimal
	TaxTotal   decimal.Decimal
	GrandTotal decimal.Decimal

	// Rectificativas: referencia a la factura corregida y modalidad (S/I).
	RectifiedInvoiceID string
	RectificationType  string

	VerifactuStatus string
	VerifactuError  string
	QRUrl           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullNumber devuelve serie+número tal y como viaja en NumSerieFactura.
func (i *Invoice) FullNumber() string {
	return i.Series + i.Number
}

// InvoiceLine línea de factura con su fiscalidad, base del bloque Desglose.
type InvoiceLine struct {
	ID        string
	InvoiceID string

	BaseAmount decimal.Decimal // base imponible de la línea
	TaxRate    decimal.Decimal // tipo de IVA (%); 0 = bucket exento
	TaxAmount  decimal.Decimal

	// Recargo de equivalencia (solo comercio minorista acogido).
	SurchargeRate   decimal.Decimal
	SurchargeAmount decimal.Decimal

	// Causa de exención (L10) cuando TaxRate es 0.
	ExemptionCode string
}
