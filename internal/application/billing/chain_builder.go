package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	domainverifactu "github.com/xcruz-intermega/factu365-sub001/internal/domain/verifactu"
	pkgverifactu "github.com/xcruz-intermega/factu365-sub001/pkg/verifactu"
)

// ChainBuilder deriva el registro de facturación encadenado de una factura
// finalizada. La cadena es global por tenant (no por serie): cualquier hueco o
// reordenación es detectable desde fuera, que es la propiedad de evidencia de
// manipulación que persigue todo el canal.
type ChainBuilder struct {
	runner      ChainTxRunner
	fingerprint *domainverifactu.FingerprintService

	// now inyectable en tests: FechaHoraHusoGenRegistro entra en la huella.
	now func() time.Time
}

// NewChainBuilder crea el servicio.
func NewChainBuilder(runner ChainTxRunner, fingerprint *domainverifactu.FingerprintService) *ChainBuilder {
	return &ChainBuilder{runner: runner, fingerprint: fingerprint, now: time.Now}
}

// BuildRecord crea y persiste el siguiente eslabón de la cadena del tenant
// para la factura dada, en estado pending. recordType decide alta o anulación.
// Aborta sin crear registro si el emisor no tiene perfil fiscal.
func (b *ChainBuilder) BuildRecord(ctx context.Context, inv *entity.Invoice, company *entity.Company, recordType string) (*entity.InvoicingRecord, error) {
	if inv == nil || company == nil {
		return nil, fmt.Errorf("billing: faltan factura o empresa")
	}
	if !company.IssuerConfigured() {
		return nil, domain.ErrIssuerNotConfigured
	}
	if !pkgverifactu.ValidInvoiceTypes[inv.InvoiceType] {
		return nil, fmt.Errorf("billing: tipo de factura %q fuera de catálogo", inv.InvoiceType)
	}

	var rec *entity.InvoicingRecord

	// Lectura de la última huella e inserción del nuevo eslabón bajo la
	// transacción serializada: dos finalizaciones concurrentes del mismo
	// tenant nunca ven la misma huella anterior.
	err := b.runner.RunChain(ctx, company.ID, func(records repository.InvoicingRecordRepository) error {
		latest, err := records.GetLatestByCompany(ctx, company.ID)
		if err != nil {
			return fmt.Errorf("billing: leer último eslabón: %w", err)
		}
		previousHash := ""
		if latest != nil {
			previousHash = latest.Hash
		}

		generatedAt := b.now().Format(pkgverifactu.GeneratedAtLayout)
		expeditionDate := inv.IssueDate.Format(pkgverifactu.ExpeditionDateLayout)

		hash, err := b.fingerprint.Fingerprint(&domainverifactu.FingerprintParams{
			IssuerNIF:      company.NIF,
			InvoiceNumber:  inv.FullNumber(),
			ExpeditionDate: expeditionDate,
			InvoiceType:    inv.InvoiceType,
			TaxAmount:      inv.TaxTotal,
			TotalAmount:    inv.GrandTotal,
			PreviousHash:   previousHash,
			GeneratedAt:    generatedAt,
		})
		if err != nil {
			return err
		}

		rec = &entity.InvoicingRecord{
			ID:               uuid.NewString(),
			CompanyID:        company.ID,
			InvoiceID:        inv.ID,
			RecordType:       recordType,
			IssuerNIF:        company.NIF,
			InvoiceNumber:    inv.FullNumber(),
			ExpeditionDate:   expeditionDate,
			InvoiceType:      inv.InvoiceType,
			TaxAmount:        inv.TaxTotal,
			TotalAmount:      inv.GrandTotal,
			PreviousHash:     previousHash,
			Hash:             hash,
			GeneratedAt:      generatedAt,
			SubmissionStatus: entity.RecordStatusPending,
			CreatedAt:        b.now().UTC(),
		}
		return records.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
