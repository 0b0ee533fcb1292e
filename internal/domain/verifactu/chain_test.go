package verifactu_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/verifactu"
)

// ──────────────────────────────────────────────────────────────────────────────
// Estos tests son el "canario en la mina" de la cadena de huellas: si alguien
// altera el orden de los pares, el separador, el formato de importes o el
// algoritmo, las huellas ya persistidas dejan de ser verificables y la cadena
// completa del tenant queda invalidada ante una auditoría.
// ──────────────────────────────────────────────────────────────────────────────

const (
	testNIF      = "B12345678"
	testNumero   = "FA-2025/0001"
	testFecha    = "07-03-2025"
	testGenerado = "2025-03-07T11:30:05+01:00"
)

func buildTestParams() *verifactu.FingerprintParams {
	return &verifactu.FingerprintParams{
		IssuerNIF:      testNIF,
		InvoiceNumber:  testNumero,
		ExpeditionDate: testFecha,
		InvoiceType:    "F1",
		TaxAmount:      decimal.NewFromFloat(21.00),
		TotalAmount:    decimal.NewFromFloat(121.00),
		PreviousHash:   "",
		GeneratedAt:    testGenerado,
	}
}

// TestCanonical_OrdenExacto valida la cadena canónica campo a campo contra el
// literal documentado: ocho pares clave=valor unidos por '&', importes con la
// regla sin ceros finales y Huella vacía para el primer eslabón.
func TestCanonical_OrdenExacto(t *testing.T) {
	svc := verifactu.NewFingerprintService()

	cadena, err := svc.Canonical(buildTestParams())
	require.NoError(t, err)

	esperada := "IDEmisorFactura=B12345678" +
		"&NumSerieFactura=FA-2025/0001" +
		"&FechaExpedicionFactura=07-03-2025" +
		"&TipoFactura=F1" +
		"&CuotaTotal=21" +
		"&ImporteTotal=121" +
		"&Huella=" +
		"&FechaHoraHusoGenRegistro=2025-03-07T11:30:05+01:00"
	assert.Equal(t, esperada, cadena)
}

// TestFingerprint_CoincideConSHA256DeLaCadena verifica el contrato completo:
// la huella es exactamente el SHA-256 (hex minúsculas) de la cadena canónica.
func TestFingerprint_CoincideConSHA256DeLaCadena(t *testing.T) {
	svc := verifactu.NewFingerprintService()
	p := buildTestParams()

	cadena, err := svc.Canonical(p)
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(cadena))
	esperada := hex.EncodeToString(sum[:])

	huella, err := svc.Fingerprint(p)
	require.NoError(t, err)
	assert.Equal(t, esperada, huella)
	assert.Len(t, huella, 64, "SHA-256 son 64 caracteres hexadecimales")
	assert.Equal(t, huella, string([]byte(huella)), "hex minúsculas")
}

// TestFingerprint_Determinista: mismo input, misma huella.
func TestFingerprint_Determinista(t *testing.T) {
	svc := verifactu.NewFingerprintService()
	h1, err1 := svc.Fingerprint(buildTestParams())
	h2, err2 := svc.Fingerprint(buildTestParams())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, h1, h2)
}

// TestFingerprint_SensibleALaHuellaAnterior: encadenar contra huellas distintas
// produce huellas distintas (propiedad que hace detectable la reordenación).
func TestFingerprint_SensibleALaHuellaAnterior(t *testing.T) {
	svc := verifactu.NewFingerprintService()

	p1 := buildTestParams()
	p2 := buildTestParams()
	p2.PreviousHash = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

	h1, _ := svc.Fingerprint(p1)
	h2, _ := svc.Fingerprint(p2)
	assert.NotEqual(t, h1, h2)
}

// TestFingerprint_RoundTrip simula la verificación de auditoría: reconstruir la
// cadena desde los campos almacenados del registro y re-hashear reproduce la
// huella guardada.
func TestFingerprint_RoundTrip(t *testing.T) {
	svc := verifactu.NewFingerprintService()

	p := buildTestParams()
	almacenada, err := svc.Fingerprint(p)
	require.NoError(t, err)

	// Reconstrucción desde los mismos campos (como haría VerifyChain).
	recalculada, err := svc.Fingerprint(&verifactu.FingerprintParams{
		IssuerNIF:      p.IssuerNIF,
		InvoiceNumber:  p.InvoiceNumber,
		ExpeditionDate: p.ExpeditionDate,
		InvoiceType:    p.InvoiceType,
		TaxAmount:      p.TaxAmount,
		TotalAmount:    p.TotalAmount,
		PreviousHash:   p.PreviousHash,
		GeneratedAt:    p.GeneratedAt,
	})
	require.NoError(t, err)
	assert.Equal(t, almacenada, recalculada)
}

// TestFingerprint_NormalizacionUnicode: la misma razón social en NFC y NFD debe
// producir la misma huella (el NIF nunca lleva diacríticos, pero el número de
// serie puede llevar texto libre).
func TestFingerprint_NormalizacionUnicode(t *testing.T) {
	svc := verifactu.NewFingerprintService()

	nfc := buildTestParams()
	nfc.InvoiceNumber = "SERIE-A\u00f1O-1" // "ñ" precompuesta

	nfd := buildTestParams()
	nfd.InvoiceNumber = "SERIE-An\u0303O-1" // "n" + tilde combinante

	h1, err1 := svc.Fingerprint(nfc)
	h2, err2 := svc.Fingerprint(nfd)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, h1, h2)
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestFingerprint_ErrorSiNilParams(t *testing.T) {
	svc := verifactu.NewFingerprintService()
	_, err := svc.Fingerprint(nil)
	assert.Error(t, err)
}

func TestFingerprint_ErrorSiFaltanObligatorios(t *testing.T) {
	svc := verifactu.NewFingerprintService()

	mutaciones := map[string]func(*verifactu.FingerprintParams){
		"IssuerNIF":      func(p *verifactu.FingerprintParams) { p.IssuerNIF = "" },
		"InvoiceNumber":  func(p *verifactu.FingerprintParams) { p.InvoiceNumber = " " },
		"ExpeditionDate": func(p *verifactu.FingerprintParams) { p.ExpeditionDate = "" },
		"InvoiceType":    func(p *verifactu.FingerprintParams) { p.InvoiceType = "" },
		"GeneratedAt":    func(p *verifactu.FingerprintParams) { p.GeneratedAt = "" },
	}
	for campo, mutar := range mutaciones {
		p := buildTestParams()
		mutar(p)
		_, err := svc.Fingerprint(p)
		assert.Error(t, err, "campo obligatorio: %s", campo)
	}
}
