package certstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
)

const testPassphrase = "changeit"

type memCertRepo struct {
	certs []*entity.Certificate
}

func (r *memCertRepo) Create(_ context.Context, cert *entity.Certificate) error {
	cp := *cert
	r.certs = append(r.certs, &cp)
	return nil
}

func (r *memCertRepo) GetByID(_ context.Context, id string) (*entity.Certificate, error) {
	for _, c := range r.certs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

// GetActiveByCompany devuelve el activo más reciente (gana el último).
func (r *memCertRepo) GetActiveByCompany(_ context.Context, companyID string) (*entity.Certificate, error) {
	for i := len(r.certs) - 1; i >= 0; i-- {
		if r.certs[i].CompanyID == companyID && r.certs[i].IsActive {
			return r.certs[i], nil
		}
	}
	return nil, nil
}

func (r *memCertRepo) ListByCompany(_ context.Context, companyID string) ([]*entity.Certificate, error) {
	var out []*entity.Certificate
	for _, c := range r.certs {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memCertRepo) SetActive(_ context.Context, id string, active bool) error {
	for _, c := range r.certs {
		if c.ID == id {
			c.IsActive = active
		}
	}
	return nil
}

func newTestStore(t *testing.T) (*Store, *memCertRepo) {
	t.Helper()
	repo := &memCertRepo{}
	store, err := NewStore(t.TempDir(), "clave-de-pruebas", repo, logger.Nop())
	require.NoError(t, err)
	return store, repo
}

func loadBundle(t *testing.T) []byte {
	t.Helper()
	bundle, err := os.ReadFile(filepath.Join("testdata", "test.p12"))
	require.NoError(t, err)
	return bundle
}

// ── Cifrado en reposo ─────────────────────────────────────────────────────────

func TestCipherBox_RoundTrip(t *testing.T) {
	box, err := newCipherBox("clave")
	require.NoError(t, err)

	sealed, err := box.seal([]byte("secreto"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "secreto")

	plain, err := box.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "secreto", string(plain))
}

func TestCipherBox_DetectaManipulacion(t *testing.T) {
	box, err := newCipherBox("clave")
	require.NoError(t, err)

	sealed, err := box.seal([]byte("secreto"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = box.open(sealed)
	assert.Error(t, err)
}

func TestCipherBox_StringRoundTrip(t *testing.T) {
	box, err := newCipherBox("clave")
	require.NoError(t, err)

	encoded, err := box.sealString(testPassphrase)
	require.NoError(t, err)
	assert.NotEqual(t, testPassphrase, encoded)

	plain, err := box.openString(encoded)
	require.NoError(t, err)
	assert.Equal(t, testPassphrase, plain)
}

func TestNewCipherBox_SinClave(t *testing.T) {
	_, err := newCipherBox("")
	assert.Error(t, err)
}

// ── Upload ────────────────────────────────────────────────────────────────────

func TestUpload_ExtraeMetadatosYCifraEnReposo(t *testing.T) {
	store, repo := newTestStore(t)
	bundle := loadBundle(t)

	cert, err := store.Upload(context.Background(), "co-1", "sello 2025", bundle, testPassphrase)
	require.NoError(t, err)

	assert.Equal(t, "FACTU365 PRUEBAS", cert.SubjectCN)
	assert.NotEmpty(t, cert.SerialNumber)
	assert.True(t, cert.NotAfter.After(cert.NotBefore))
	assert.True(t, cert.IsActive)
	require.Len(t, repo.certs, 1)

	// El fichero en disco no es el bundle en claro.
	onDisk, err := os.ReadFile(cert.BundlePath)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(onDisk, bundle))
	// Y la contraseña tampoco se guarda en claro.
	assert.NotEqual(t, testPassphrase, cert.EncryptedPassphrase)
}

func TestUpload_ContrasenaErroneaNoAlmacenaNada(t *testing.T) {
	store, repo := newTestStore(t)

	_, err := store.Upload(context.Background(), "co-1", "sello", loadBundle(t), "incorrecta")
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)

	assert.Empty(t, repo.certs)
	entries, _ := os.ReadDir(store.dir)
	assert.Empty(t, entries, "un bundle inválido no deja rastro en disco")
}

func TestUpload_BundleCorrupto(t *testing.T) {
	store, repo := newTestStore(t)

	_, err := store.Upload(context.Background(), "co-1", "sello", []byte("esto no es un p12"), testPassphrase)
	require.ErrorIs(t, err, domain.ErrInvalidCertificate)
	assert.Empty(t, repo.certs)
}

// ── Active ────────────────────────────────────────────────────────────────────

func TestActive_SinCertificados(t *testing.T) {
	store, _ := newTestStore(t)

	cert, err := store.Active(context.Background(), "co-1")
	require.NoError(t, err)
	assert.Nil(t, cert)
}

func TestActive_GanaElMasReciente(t *testing.T) {
	store, _ := newTestStore(t)
	bundle := loadBundle(t)

	_, err := store.Upload(context.Background(), "co-1", "viejo", bundle, testPassphrase)
	require.NoError(t, err)
	segundo, err := store.Upload(context.Background(), "co-1", "nuevo", bundle, testPassphrase)
	require.NoError(t, err)

	active, err := store.Active(context.Background(), "co-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, segundo.ID, active.ID)
}

// ── ExtractKeyPair ────────────────────────────────────────────────────────────

func TestExtractKeyPair_ParUsableYLimpiezaGarantizada(t *testing.T) {
	store, _ := newTestStore(t)

	cert, err := store.Upload(context.Background(), "co-1", "sello", loadBundle(t), testPassphrase)
	require.NoError(t, err)

	km, err := store.ExtractKeyPair(context.Background(), cert)
	require.NoError(t, err)

	// El par extraído es directamente cargable para TLS mutuo.
	_, err = tls.LoadX509KeyPair(km.CertPath, km.KeyPath)
	assert.NoError(t, err)

	km.Cleanup()
	_, err = os.Stat(km.CertPath)
	assert.True(t, os.IsNotExist(err), "el certificado temporal no debe sobrevivir")
	_, err = os.Stat(km.KeyPath)
	assert.True(t, os.IsNotExist(err), "la clave temporal no debe sobrevivir")
}

func TestExtractKeyPair_CleanupIdempotente(t *testing.T) {
	store, _ := newTestStore(t)

	cert, err := store.Upload(context.Background(), "co-1", "sello", loadBundle(t), testPassphrase)
	require.NoError(t, err)

	km, err := store.ExtractKeyPair(context.Background(), cert)
	require.NoError(t, err)
	km.Cleanup()
	km.Cleanup() // segunda llamada no debe explotar
}

func TestExtractKeyPair_BundleDesaparecido(t *testing.T) {
	store, _ := newTestStore(t)

	cert, err := store.Upload(context.Background(), "co-1", "sello", loadBundle(t), testPassphrase)
	require.NoError(t, err)
	require.NoError(t, os.Remove(cert.BundlePath))

	_, err = store.ExtractKeyPair(context.Background(), cert)
	assert.Error(t, err)
}
