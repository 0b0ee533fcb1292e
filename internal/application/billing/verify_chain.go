package billing

import (
	"context"
	"fmt"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	domainverifactu "github.com/xcruz-intermega/factu365-sub001/internal/domain/verifactu"
)

// auditBatchSize tamaño de lote al recorrer el libro: la verificación no debe
// cargar libros grandes enteros en memoria.
const auditBatchSize = 500

// ChainBreak describe un eslabón que no verifica.
type ChainBreak struct {
	RecordID string `json:"record_id"`
	Position int    `json:"position"` // índice en el libro, empezando en 0
	Reason   string `json:"reason"`
}

// ChainReport resultado de la verificación del libro completo de un tenant.
type ChainReport struct {
	CompanyID       string       `json:"company_id"`
	Records         int          `json:"records"`
	PayloadsAudited int          `json:"payloads_audited"`
	Valid           bool         `json:"valid"`
	Breaks          []ChainBreak `json:"breaks,omitempty"`
}

// payloadAuditor coteja el XML anotado de un registro con el regenerado desde
// los datos vivos.
type payloadAuditor interface {
	PayloadMatches(ctx context.Context, rec *entity.InvoicingRecord) (bool, error)
}

// ChainVerifier recorre el libro de registros y comprueba la integridad de la
// cadena: cada huella debe ser reproducible desde los campos almacenados, cada
// eslabón debe apuntar a la huella del anterior y el XML anotado debe
// coincidir, en forma canónica, con el regenerado.
type ChainVerifier struct {
	records     repository.InvoicingRecordRepository
	fingerprint *domainverifactu.FingerprintService
	auditor     payloadAuditor // nil desactiva el cotejo de payloads
}

// NewChainVerifier crea el verificador.
func NewChainVerifier(records repository.InvoicingRecordRepository, fingerprint *domainverifactu.FingerprintService, auditor payloadAuditor) *ChainVerifier {
	return &ChainVerifier{records: records, fingerprint: fingerprint, auditor: auditor}
}

// VerifyChain audita el libro completo del tenant en orden de creación,
// por lotes.
func (v *ChainVerifier) VerifyChain(ctx context.Context, companyID string) (*ChainReport, error) {
	report := &ChainReport{CompanyID: companyID, Valid: true}

	prevHash := ""
	for offset := 0; ; offset += auditBatchSize {
		recs, err := v.records.ListByCompany(ctx, companyID, auditBatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("billing: listar libro de %s: %w", companyID, err)
		}
		for i, rec := range recs {
			v.checkLink(ctx, report, rec, offset+i, prevHash)
			prevHash = rec.Hash
		}
		report.Records += len(recs)
		if len(recs) < auditBatchSize {
			break
		}
	}

	report.Valid = len(report.Breaks) == 0
	return report, nil
}

func (v *ChainVerifier) checkLink(ctx context.Context, report *ChainReport, rec *entity.InvoicingRecord, position int, prevHash string) {
	addBreak := func(reason string) {
		report.Breaks = append(report.Breaks, ChainBreak{RecordID: rec.ID, Position: position, Reason: reason})
	}

	if rec.PreviousHash != prevHash {
		addBreak(fmt.Sprintf("huella anterior %q no coincide con la esperada %q", rec.PreviousHash, prevHash))
	}

	recomputed, err := v.fingerprint.Fingerprint(&domainverifactu.FingerprintParams{
		IssuerNIF:      rec.IssuerNIF,
		InvoiceNumber:  rec.InvoiceNumber,
		ExpeditionDate: rec.ExpeditionDate,
		InvoiceType:    rec.InvoiceType,
		TaxAmount:      rec.TaxAmount,
		TotalAmount:    rec.TotalAmount,
		PreviousHash:   rec.PreviousHash,
		GeneratedAt:    rec.GeneratedAt,
	})
	if err != nil {
		addBreak("no se pudo recalcular la huella: " + err.Error())
	} else if recomputed != rec.Hash {
		addBreak("la huella almacenada no coincide con la recalculada")
	}

	// Cotejo del payload: solo registros con XML ya anotado.
	if v.auditor == nil || rec.XMLContent == "" {
		return
	}
	report.PayloadsAudited++
	same, err := v.auditor.PayloadMatches(ctx, rec)
	if err != nil {
		addBreak("no se pudo cotejar el payload: " + err.Error())
	} else if !same {
		addBreak("el XML anotado no coincide con el regenerado")
	}
}
