// Package verifactu: cálculo de la huella encadenada del registro de facturación
// según la especificación VERI*FACTU (Orden HAC/1177/2024, detalle de huella).
// Algoritmo: SHA-256 en hexadecimal minúsculas sobre la cadena canónica UTF-8.
package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	pkgverifactu "github.com/xcruz-intermega/factu365-sub001/pkg/verifactu"
)

// FingerprintParams contiene los datos del registro en el orden exigido para la
// cadena canónica. La huella del registro anterior entra como PreviousHash
// (cadena vacía solo para el primer eslabón del libro del tenant).
type FingerprintParams struct {
	IssuerNIF      string          // IDEmisorFactura (solo el NIF, sin espacios)
	InvoiceNumber  string          // NumSerieFactura (serie+número)
	ExpeditionDate string          // FechaExpedicionFactura, DD-MM-YYYY
	InvoiceType    string          // TipoFactura (F1..F3, R1..R5)
	TaxAmount      decimal.Decimal // CuotaTotal
	TotalAmount    decimal.Decimal // ImporteTotal
	PreviousHash   string          // Huella del registro anterior ("" = primero)
	GeneratedAt    string          // FechaHoraHusoGenRegistro, ISO-8601 con huso
}

// FingerprintService calcula la huella del registro de facturación.
type FingerprintService struct{}

// NewFingerprintService crea el servicio.
func NewFingerprintService() *FingerprintService {
	return &FingerprintService{}
}

// Canonical construye la cadena canónica: exactamente ocho pares clave=valor
// unidos por '&', en este orden. Los importes llevan la regla "sin ceros
// finales" y el texto se normaliza a NFC para que la huella no dependa de la
// representación Unicode de los datos de entrada.
func (s *FingerprintService) Canonical(p *FingerprintParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("verifactu: FingerprintParams es obligatorio")
	}
	issuer := strings.TrimSpace(p.IssuerNIF)
	number := strings.TrimSpace(p.InvoiceNumber)
	if issuer == "" {
		return "", fmt.Errorf("verifactu: IDEmisorFactura es obligatorio")
	}
	if number == "" {
		return "", fmt.Errorf("verifactu: NumSerieFactura es obligatorio")
	}
	if p.ExpeditionDate == "" {
		return "", fmt.Errorf("verifactu: FechaExpedicionFactura es obligatoria (DD-MM-YYYY)")
	}
	if p.InvoiceType == "" {
		return "", fmt.Errorf("verifactu: TipoFactura es obligatorio")
	}
	if p.GeneratedAt == "" {
		return "", fmt.Errorf("verifactu: FechaHoraHusoGenRegistro es obligatoria")
	}

	// Orden estricto de la especificación (ocho pares, separador '&').
	cadena := "IDEmisorFactura=" + issuer +
		"&NumSerieFactura=" + number +
		"&FechaExpedicionFactura=" + p.ExpeditionDate +
		"&TipoFactura=" + p.InvoiceType +
		"&CuotaTotal=" + pkgverifactu.FormatAmount(p.TaxAmount) +
		"&ImporteTotal=" + pkgverifactu.FormatAmount(p.TotalAmount) +
		"&Huella=" + p.PreviousHash +
		"&FechaHoraHusoGenRegistro=" + p.GeneratedAt

	return norm.NFC.String(cadena), nil
}

// Fingerprint genera la huella: SHA-256 de la cadena canónica, hex minúsculas.
func (s *FingerprintService) Fingerprint(p *FingerprintParams) (string, error) {
	cadena, err := s.Canonical(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(cadena))
	return hex.EncodeToString(sum[:]), nil
}
