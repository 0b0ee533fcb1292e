package entity

import "time"

// Estados de un intento de envío a la AEAT.
const (
	SubmissionStatusPending           = "pending"
	SubmissionStatusAccepted          = "accepted"
	SubmissionStatusPartiallyAccepted = "partially_accepted"
	SubmissionStatusRejected          = "rejected"
	SubmissionStatusError             = "error"
)

// Códigos de error propios del cliente (no emitidos por la AEAT).
const (
	SubmissionErrConnection      = "CONNECTION_ERROR"
	SubmissionErrInvalidResponse = "INVALID_RESPONSE"
)

// AeatSubmission es un intento de remisión de un registro de facturación,
// numerado 1..N por registro. Append-only: se crea antes de la llamada de red
// para que un crash a mitad de envío deje rastro de auditoría, y conserva el
// XML saliente y la respuesta cruda para resubmisión manual.
type AeatSubmission struct {
	ID            string
	RecordID      string
	AttemptNumber int

	RequestXML  string
	ResponseXML string
	HTTPStatus  int

	Status string

	// CSV: código seguro de verificación emitido por la AEAT al aceptar.
	CSV              string
	ErrorCode        string
	ErrorDescription string

	CreatedAt time.Time
}
