// Package verifactu contiene catálogos y utilidades alineados a la especificación
// técnica del sistema VERI*FACTU (Real Decreto 1007/2023, Orden HAC/1177/2024).
package verifactu

// =============================================================================
// Tipos de factura (L2 - TipoFactura)
// =============================================================================

const (
	InvoiceTypeF1 = "F1" // Factura completa (art. 6 RD 1619/2012)
	InvoiceTypeF2 = "F2" // Factura simplificada
	InvoiceTypeF3 = "F3" // Factura emitida en sustitución de simplificadas
	InvoiceTypeR1 = "R1" // Rectificativa (error fundado en derecho / art. 80.1, 80.2)
	InvoiceTypeR2 = "R2" // Rectificativa (concurso de acreedores, art. 80.3)
	InvoiceTypeR3 = "R3" // Rectificativa (créditos incobrables, art. 80.4)
	InvoiceTypeR4 = "R4" // Rectificativa (resto)
	InvoiceTypeR5 = "R5" // Rectificativa de facturas simplificadas
)

// ValidInvoiceTypes tipos de factura admitidos por el registro de facturación.
var ValidInvoiceTypes = map[string]bool{
	InvoiceTypeF1: true, InvoiceTypeF2: true, InvoiceTypeF3: true,
	InvoiceTypeR1: true, InvoiceTypeR2: true, InvoiceTypeR3: true,
	InvoiceTypeR4: true, InvoiceTypeR5: true,
}

// IsRectificative indica si el tipo de factura es rectificativa (R1..R5).
func IsRectificative(invoiceType string) bool {
	switch invoiceType {
	case InvoiceTypeR1, InvoiceTypeR2, InvoiceTypeR3, InvoiceTypeR4, InvoiceTypeR5:
		return true
	}
	return false
}

// =============================================================================
// Tipo de rectificativa (L3 - TipoRectificativa)
// =============================================================================

const (
	RectificationBySubstitution = "S" // Por sustitución
	RectificationByDifferences  = "I" // Por diferencias
)

// ValidRectificationType indica si la modalidad pertenece al catálogo L3.
func ValidRectificationType(t string) bool {
	return t == RectificationBySubstitution || t == RectificationByDifferences
}

// =============================================================================
// Causas de exención (L10 - OperacionExenta) - códigos de uso frecuente
// =============================================================================

const (
	ExemptionArt20 = "E1" // Exenta por el artículo 20 LIVA
	ExemptionArt21 = "E2" // Exenta por el artículo 21 LIVA (exportaciones)
	ExemptionArt22 = "E3" // Exenta por el artículo 22 LIVA
	ExemptionArt23 = "E4" // Exenta por los artículos 23 y 24 LIVA
	ExemptionArt25 = "E5" // Exenta por el artículo 25 LIVA (entregas intracomunitarias)
	ExemptionOther = "E6" // Exenta por otros motivos
)

// =============================================================================
// Registro de facturación
// =============================================================================

const (
	// IDVersion versión del esquema de suministro admitida por la AEAT.
	IDVersion = "1.0"
	// HashAlgorithmCode código del algoritmo de huella (01 = SHA-256).
	HashAlgorithmCode = "01"
	// ExpeditionDateLayout formato textual de FechaExpedicionFactura exigido por
	// el protocolo (no es una decisión de almacenamiento).
	ExpeditionDateLayout = "02-01-2006"
	// GeneratedAtLayout formato ISO-8601 con huso horario de FechaHoraHusoGenRegistro.
	GeneratedAtLayout = "2006-01-02T15:04:05-07:00"
)

// =============================================================================
// Entornos y endpoints AEAT
// =============================================================================

const (
	// EnvSandbox entorno de pruebas de la AEAT.
	EnvSandbox = "sandbox"
	// EnvProduction entorno real de la AEAT.
	EnvProduction = "production"

	registrationURLSandbox = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	registrationURLProd    = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"

	cancellationURLSandbox = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuAnulacionSOAP"
	cancellationURLProd    = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuAnulacionSOAP"

	qrBaseSandbox = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"
	qrBaseProd    = "https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR"
)

// RegistrationURL devuelve el endpoint de alta según el entorno.
func RegistrationURL(env string) string {
	if env == EnvProduction {
		return registrationURLProd
	}
	return registrationURLSandbox
}

// CancellationURL devuelve el endpoint de anulación según el entorno.
func CancellationURL(env string) string {
	if env == EnvProduction {
		return cancellationURLProd
	}
	return cancellationURLSandbox
}

// =============================================================================
// Estados de envío devueltos por la AEAT (valores literales de la respuesta)
// =============================================================================

const (
	AeatEstadoCorrecto             = "Correcto"
	AeatEstadoParcialmenteCorrecto = "ParcialmenteCorrecto"
	AeatEstadoIncorrecto           = "Incorrecto"
)
