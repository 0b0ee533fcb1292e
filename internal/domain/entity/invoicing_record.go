package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de registro de facturación.
const (
	RecordTypeAlta      = "alta"      // alta de factura
	RecordTypeAnulacion = "anulacion" // anulación de factura
)

// Estados de remisión del registro a la AEAT.
const (
	RecordStatusPending   = "pending"
	RecordStatusSubmitted = "submitted"
	RecordStatusAccepted  = "accepted"
	RecordStatusRejected  = "rejected"
	RecordStatusError     = "error"
)

// InvoicingRecord es el registro de facturación encadenado (libro VERI*FACTU).
// Se crea exactamente una vez por evento de remisión y nunca se borra: borrar
// un eslabón rompería la cadena de huellas de todos los registros posteriores.
// Tras la creación solo son mutables SubmissionStatus, CSV, ErrorMessage y
// XMLContent (anotación del payload generado); el resto de campos participa en
// la huella y es inmutable.
type InvoicingRecord struct {
	ID        string
	CompanyID string
	InvoiceID string

	RecordType string // alta | anulacion

	IssuerNIF     string
	InvoiceNumber string // serie+número (NumSerieFactura)
	// ExpeditionDate en forma textual DD-MM-YYYY: exigencia del protocolo,
	// no una decisión de almacenamiento.
	ExpeditionDate string
	InvoiceType    string

	TaxAmount   decimal.Decimal // CuotaTotal
	TotalAmount decimal.Decimal // ImporteTotal

	// PreviousHash es la huella del registro inmediatamente anterior de la
	// cadena global del tenant; cadena vacía solo en el primer eslabón.
	PreviousHash string
	Hash         string

	// GeneratedAt se guarda con la representación textual exacta que entró en
	// la huella (ISO-8601 con huso); reformatear rompería la verificación.
	GeneratedAt string

	XMLContent       string
	SubmissionStatus string
	CSV              string
	ErrorMessage     string

	CreatedAt time.Time
}
