package certstore

import (
	"context"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pkcs12"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
)

// Store implementa billing.CertificateStore sobre un directorio local y el
// repositorio de certificados. El bundle PKCS#12 y su contraseña nunca se
// persisten en claro.
type Store struct {
	dir   string
	box   *cipherBox
	certs repository.CertificateRepository
	log   *logger.Logger
}

// NewStore crea el almacén; el directorio se crea si no existe.
func NewStore(dir, storeKey string, certs repository.CertificateRepository, log *logger.Logger) (*Store, error) {
	box, err := newCipherBox(storeKey)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("certstore: crear directorio %s: %w", dir, err)
	}
	return &Store{dir: dir, box: box, certs: certs, log: log}, nil
}

// Upload valida el bundle con la contraseña dada y lo registra para el tenant.
// Un bundle indescifrable (contraseña errónea o datos corruptos) es un error
// de validación: no se almacena nada.
func (s *Store) Upload(ctx context.Context, companyID, label string, bundle []byte, passphrase string) (*entity.Certificate, error) {
	_, leaf, err := pkcs12.Decode(bundle, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCertificate, err)
	}

	subject := leaf.Subject.CommonName
	if subject == "" && len(leaf.Subject.Organization) > 0 {
		subject = leaf.Subject.Organization[0]
	}

	sealed, err := s.box.seal(bundle)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.dir, uuid.NewString()+".p12.enc")
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("certstore: guardar bundle cifrado: %w", err)
	}

	sealedPass, err := s.box.sealString(passphrase)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	now := time.Now().UTC()
	cert := &entity.Certificate{
		ID:                  uuid.NewString(),
		CompanyID:           companyID,
		Label:               label,
		SubjectCN:           subject,
		SerialNumber:        leaf.SerialNumber.String(),
		NotBefore:           leaf.NotBefore,
		NotAfter:            leaf.NotAfter,
		BundlePath:          path,
		EncryptedPassphrase: sealedPass,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.certs.Create(ctx, cert); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	s.log.Info().
		Str("company_id", companyID).
		Str("cert_id", cert.ID).
		Str("subject", subject).
		Time("not_after", cert.NotAfter).
		Msg("certificado registrado")
	return cert, nil
}

// Active devuelve el certificado activo más reciente del tenant (nil, nil si
// no hay). Un certificado caducado se devuelve igualmente: decidir si se usa
// es del llamante, aquí solo se avisa.
func (s *Store) Active(ctx context.Context, companyID string) (*entity.Certificate, error) {
	cert, err := s.certs.GetActiveByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if cert != nil && cert.Expired(time.Now()) {
		s.log.Warn().Str("cert_id", cert.ID).Time("not_after", cert.NotAfter).Msg("el certificado activo está caducado")
	}
	return cert, nil
}

// ExtractKeyPair materializa el certificado y la clave privada en ficheros
// PEM temporales para un único envío. El Cleanup devuelto DEBE invocarse en
// todas las salidas: los ficheros contienen la clave privada en claro.
func (s *Store) ExtractKeyPair(ctx context.Context, cert *entity.Certificate) (*billing.KeyMaterial, error) {
	sealed, err := os.ReadFile(cert.BundlePath)
	if err != nil {
		return nil, fmt.Errorf("certstore: leer bundle %s: %w", cert.BundlePath, err)
	}
	bundle, err := s.box.open(sealed)
	if err != nil {
		return nil, err
	}
	passphrase, err := s.box.openString(cert.EncryptedPassphrase)
	if err != nil {
		return nil, err
	}

	blocks, err := pkcs12.ToPEM(bundle, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCertificate, err)
	}

	var certPEM, keyPEM []byte
	for _, block := range blocks {
		switch {
		case strings.Contains(block.Type, "PRIVATE KEY"):
			keyPEM = append(keyPEM, pem.EncodeToMemory(block)...)
		case block.Type == "CERTIFICATE":
			certPEM = append(certPEM, pem.EncodeToMemory(block)...)
		}
	}
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, fmt.Errorf("%w: el bundle no contiene certificado y clave", domain.ErrInvalidCertificate)
	}

	certPath, err := writeTemp("verifactu-cert-*.pem", certPEM)
	if err != nil {
		return nil, err
	}
	keyPath, err := writeTemp("verifactu-key-*.pem", keyPEM)
	if err != nil {
		_ = os.Remove(certPath)
		return nil, err
	}

	return &billing.KeyMaterial{
		CertPath: certPath,
		KeyPath:  keyPath,
		Cleanup: func() {
			if err := os.Remove(certPath); err != nil && !os.IsNotExist(err) {
				s.log.Error().Err(err).Str("path", certPath).Msg("no se pudo borrar el certificado temporal")
			}
			if err := os.Remove(keyPath); err != nil && !os.IsNotExist(err) {
				s.log.Error().Err(err).Str("path", keyPath).Msg("no se pudo borrar la clave temporal")
			}
		},
	}, nil
}

func writeTemp(pattern string, data []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", fmt.Errorf("certstore: crear fichero temporal: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("certstore: escribir fichero temporal: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("certstore: cerrar fichero temporal: %w", err)
	}
	return f.Name(), nil
}
