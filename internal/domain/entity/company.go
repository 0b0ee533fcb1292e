package entity

import "time"

// Company representa una organización/tenant del sistema (multi-tenant, enfoque España).
// LegalName y NIF forman el perfil de emisor exigido para generar registros de
// facturación; sin ellos el canal VERI*FACTU no opera para la empresa.
type Company struct {
	ID        string
	LegalName string
	NIF       string
	Address   string
	Email     string
	Status    string // active, suspended, inactive

	// VerifactuEnabled activa el canal de remisión para el tenant.
	VerifactuEnabled bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssuerConfigured indica si la empresa tiene el perfil de emisor mínimo.
func (c *Company) IssuerConfigured() bool {
	return c.NIF != "" && c.LegalName != ""
}

// Customer contraparte de la factura (bloque Destinatarios del registro).
type Customer struct {
	ID        string
	CompanyID string
	Name      string
	TaxID     string
	Country   string // código ISO-3166-1 alfa-2; vacío = ES
	CreatedAt time.Time
	UpdatedAt time.Time
}
