// Package verifactu implementa la capa de protocolo contra la AEAT: generación
// del XML de suministro (alta y anulación), envío SOAP con TLS mutuo y
// parseo de la respuesta.
package verifactu

import (
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// InvoiceRef identifica una factura por su terna fiscal (bloque IDFactura).
type InvoiceRef struct {
	IssuerNIF      string
	Number         string // serie+número
	ExpeditionDate string // DD-MM-YYYY
}

// SoftwareInfo identifica el sistema informático de facturación (bloque
// SistemaInformatico, obligatorio en todo registro remitido).
type SoftwareInfo struct {
	VendorName         string // NombreRazon del productor del software
	VendorNIF          string
	Name               string // NombreSistemaInformatico
	ID                 string // IdSistemaInformatico (2 caracteres)
	Version            string
	InstallationNumber string
}

// RecordBuildContext agrupa todos los datos necesarios para serializar un
// registro de facturación al formato de suministro.
type RecordBuildContext struct {
	Record  *entity.InvoicingRecord
	Invoice *entity.Invoice
	Company *entity.Company

	// Customer nil = sin destinatario conocido (ej. factura simplificada F2);
	// en ese caso no se emite el bloque Destinatarios.
	Customer *entity.Customer

	Lines []entity.InvoiceLine

	// Rectified solo para rectificativas: terna de la factura corregida.
	Rectified *InvoiceRef

	Software SoftwareInfo
}
