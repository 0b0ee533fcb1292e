package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Errores de configuración del canal VERI*FACTU: terminales, nunca se reintentan.
	ErrIssuerNotConfigured = errors.New("emisor sin perfil fiscal configurado")
	ErrFeatureDisabled     = errors.New("verifactu deshabilitado para la empresa")
	ErrNoActiveCertificate = errors.New("no hay certificado activo")
	ErrInvalidCertificate  = errors.New("certificado inválido o contraseña incorrecta")
)
