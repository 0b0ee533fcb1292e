package entity

import "time"

// Certificate representa una identidad de cliente X.509 subida por el tenant
// (bundle PKCS#12 + contraseña). El bundle se guarda cifrado en disco y la
// contraseña cifrada en base de datos; nunca se persisten en claro.
//
// "Activo" es el registro más reciente con IsActive = true: no se fuerza un
// único activo por empresa, gana el último.
type Certificate struct {
	ID        string
	CompanyID string
	Label     string

	// Metadatos extraídos al validar el bundle en la subida.
	SubjectCN    string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time

	// BundlePath ruta del fichero .p12 cifrado en el almacén local.
	BundlePath string
	// EncryptedPassphrase contraseña del bundle cifrada (AES-GCM, base64).
	EncryptedPassphrase string

	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired indica si el certificado está fuera de su ventana de validez.
func (c *Certificate) Expired(now time.Time) bool {
	return now.Before(c.NotBefore) || now.After(c.NotAfter)
}
