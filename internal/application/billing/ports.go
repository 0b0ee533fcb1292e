// Package billing implementa el canal de cumplimiento VERI*FACTU: construcción
// del registro encadenado al finalizar la factura, serialización al formato de
// suministro y orquestación asíncrona del envío a la AEAT.
package billing

import (
	"context"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

// ChainTxRunner ejecuta fn dentro de una transacción que serializa el acceso a
// la cadena del tenant: la secuencia "leer última huella, insertar siguiente
// registro" es una carrera read-modify-write si dos finalizaciones concurren,
// y produciría dos eslabones colgando del mismo predecesor.
type ChainTxRunner interface {
	RunChain(ctx context.Context, companyID string, fn func(records repository.InvoicingRecordRepository) error) error
}

// KeyMaterial par certificado/clave extraído a ficheros temporales para un
// único envío. Contiene clave privada en claro: el llamante DEBE invocar
// Cleanup en todas las salidas (éxito, error o cancelación).
type KeyMaterial struct {
	CertPath string
	KeyPath  string
	Cleanup  func()
}

// CertificateStore puerto del almacén de identidades X.509 del tenant.
type CertificateStore interface {
	// Active devuelve el certificado activo más reciente (nil, nil si no hay).
	Active(ctx context.Context, companyID string) (*entity.Certificate, error)

	// ExtractKeyPair materializa el par PEM del certificado para un envío.
	ExtractKeyPair(ctx context.Context, cert *entity.Certificate) (*KeyMaterial, error)
}
