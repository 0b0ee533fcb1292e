package verifactu

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/ucarion/c14n"
)

// SamePayload compara dos documentos XML tras canonicalizarlos (C14N).
// Se usa en auditoría: el XML regenerado desde los campos almacenados del
// registro debe coincidir con el payload anotado en su día, aunque difieran
// en detalles de serialización irrelevantes.
func SamePayload(stored, regenerated []byte) (bool, error) {
	a, err := canonicalize(stored)
	if err != nil {
		return false, fmt.Errorf("verifactu: canonicalizar XML almacenado: %w", err)
	}
	b, err := canonicalize(regenerated)
	if err != nil {
		return false, fmt.Errorf("verifactu: canonicalizar XML regenerado: %w", err)
	}
	return bytes.Equal(a, b), nil
}

func canonicalize(doc []byte) ([]byte, error) {
	// La declaración XML no forma parte de la forma canónica.
	doc = bytes.TrimPrefix(doc, []byte(xml.Header))
	dec := xml.NewDecoder(bytes.NewReader(doc))
	return c14n.Canonicalize(dec)
}
