// Package certstore guarda las identidades X.509 de los tenants: bundles
// PKCS#12 cifrados en disco, contraseñas cifradas en base de datos y
// extracción de pares PEM temporales para el envío con TLS mutuo.
package certstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

// cipherBox cifra y descifra con AES-256-GCM; la clave simétrica se deriva de
// la clave de configuración del almacén.
type cipherBox struct {
	aead cipher.AEAD
}

func newCipherBox(storeKey string) (*cipherBox, error) {
	if storeKey == "" {
		return nil, fmt.Errorf("certstore: falta la clave del almacén de certificados")
	}
	key := sha256.Sum256([]byte(storeKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("certstore: inicializar cifrado: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("certstore: inicializar GCM: %w", err)
	}
	return &cipherBox{aead: aead}, nil
}

// seal cifra plain; el nonce viaja como prefijo del resultado.
func (b *cipherBox) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("certstore: generar nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plain, nil), nil
}

func (b *cipherBox) open(sealed []byte) ([]byte, error) {
	ns := b.aead.NonceSize()
	if len(sealed) < ns {
		return nil, fmt.Errorf("certstore: datos cifrados truncados")
	}
	plain, err := b.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("certstore: descifrar: %w", err)
	}
	return plain, nil
}

// sealString cifra y devuelve base64 (apto para columna de texto).
func (b *cipherBox) sealString(plain string) (string, error) {
	sealed, err := b.seal([]byte(plain))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *cipherBox) openString(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("certstore: base64 inválido: %w", err)
	}
	plain, err := b.open(sealed)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
