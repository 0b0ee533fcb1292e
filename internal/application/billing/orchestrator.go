package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	infraverifactu "github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/verifactu"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
)

// SubmissionOrchestrator coordina el envío de un registro a la AEAT:
// certificado activo → extracción de claves → envío → persistencia del
// desenlace → propagación a la factura.
//
// Máquina de estados del registro: pending → submitted → {accepted | rejected
// | error}. Un registro ya aceptado es no-op (idempotencia de entrada).
//
// Política de reintentos: hasta MaxAttempts intentos en total, con esperas
// RetryBackoff entre ellos, y SOLO para fallos de transporte. La ausencia de
// certificado activo es terminal y no consume reintentos; los rechazos de la
// AEAT tampoco se reintentan (reenviar los mismos datos repetiría el rechazo).
type SubmissionOrchestrator struct {
	records   repository.InvoicingRecordRepository
	invoices  repository.InvoiceRepository
	certs     CertificateStore
	submitter infraverifactu.Submitter
	cfg       config.VerifactuConfig
	log       *logger.Logger

	// sleep inyectable en tests (los backoffs reales son de minutos).
	sleep func(time.Duration)
}

// NewSubmissionOrchestrator construye el orquestador.
func NewSubmissionOrchestrator(
	records repository.InvoicingRecordRepository,
	invoices repository.InvoiceRepository,
	certs CertificateStore,
	submitter infraverifactu.Submitter,
	cfg config.VerifactuConfig,
	log *logger.Logger,
) *SubmissionOrchestrator {
	return &SubmissionOrchestrator{
		records:   records,
		invoices:  invoices,
		certs:     certs,
		submitter: submitter,
		cfg:       cfg,
		log:       log,
		sleep:     time.Sleep,
	}
}

// ProcessAsync dispara el envío en una goroutine independiente, desacoplada
// del ciclo HTTP que finalizó la factura.
func (o *SubmissionOrchestrator) ProcessAsync(recordID string) {
	go func() {
		if err := o.Process(context.Background(), recordID); err != nil {
			o.log.Error().Err(err).Str("record_id", recordID).Msg("envío VERI*FACTU fallido")
		}
	}()
}

// Process es el núcleo síncrono del orquestador para un registro.
func (o *SubmissionOrchestrator) Process(ctx context.Context, recordID string) error {
	rec, err := o.records.GetByID(ctx, recordID)
	if err != nil {
		return fmt.Errorf("billing: cargar registro %s: %w", recordID, err)
	}
	if rec == nil {
		return fmt.Errorf("billing: registro %s no encontrado", recordID)
	}

	// Idempotencia: un registro ya aceptado por otra vía no se reenvía.
	if rec.SubmissionStatus == entity.RecordStatusAccepted {
		o.log.Debug().Str("record_id", recordID).Msg("registro ya aceptado, no-op")
		return nil
	}

	// Sin certificado activo no hay nada que reintentar: fallo inmediato con
	// cero intentos creados.
	cert, err := o.certs.Active(ctx, rec.CompanyID)
	if err != nil {
		o.markTerminal(ctx, rec, "error consultando certificado activo: "+err.Error())
		return err
	}
	if cert == nil {
		o.markTerminal(ctx, rec, domain.ErrNoActiveCertificate.Error())
		return domain.ErrNoActiveCertificate
	}

	km, err := o.certs.ExtractKeyPair(ctx, cert)
	if err != nil {
		o.markTerminal(ctx, rec, "no se pudo extraer el par de claves: "+err.Error())
		return err
	}
	// La clave privada en claro nunca sobrevive a esta llamada.
	defer km.Cleanup()

	maxAttempts := o.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 0; i < maxAttempts; i++ {
		attempt, err := o.submitter.Submit(ctx, rec, km.CertPath, km.KeyPath)
		if err == nil {
			// Desenlace terminal (aceptado, rechazado o error de protocolo):
			// el cliente ya actualizó el registro, solo queda la factura.
			o.propagateToInvoice(ctx, rec)
			return nil
		}

		o.log.Warn().Err(err).
			Str("record_id", rec.ID).
			Int("attempt", attemptNumber(attempt, i)).
			Msg("fallo de transporte, evaluando reintento")

		if i == maxAttempts-1 {
			break
		}
		o.sleep(o.backoff(i))
	}

	o.markTerminal(ctx, rec, fmt.Sprintf("reintentos agotados tras %d intentos", maxAttempts))
	return fmt.Errorf("billing: registro %s: reintentos agotados", rec.ID)
}

// ResubmitStale relanza registros que llevan demasiado tiempo en
// pending/submitted (rescate tras caídas del proceso o backoffs perdidos).
func (o *SubmissionOrchestrator) ResubmitStale(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := o.records.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("billing: listar registros pendientes: %w", err)
	}
	for _, rec := range stale {
		if err := o.Process(ctx, rec.ID); err != nil {
			o.log.Error().Err(err).Str("record_id", rec.ID).Msg("reenvío de registro pendiente fallido")
		}
	}
	if len(stale) > 0 {
		o.log.Info().Int("count", len(stale)).Msg("reenvío de registros pendientes completado")
	}
	return nil
}

// backoff espera configurada antes del intento i+2; si la lista se queda
// corta, repite la última.
func (o *SubmissionOrchestrator) backoff(i int) time.Duration {
	delays := o.cfg.RetryBackoff
	if len(delays) == 0 {
		return time.Minute
	}
	if i >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[i]
}

// markTerminal deja registro y factura en error con el motivo.
func (o *SubmissionOrchestrator) markTerminal(ctx context.Context, rec *entity.InvoicingRecord, msg string) {
	rec.SubmissionStatus = entity.RecordStatusError
	rec.ErrorMessage = msg
	if err := o.records.UpdateSubmissionState(ctx, rec); err != nil {
		o.log.Error().Err(err).Str("record_id", rec.ID).Msg("no se pudo persistir el estado terminal")
	}
	o.propagateToInvoice(ctx, rec)
}

// propagateToInvoice traslada el estado del registro a la factura:
// accepted → accepted, rejected → rejected, error → error, resto → submitted.
func (o *SubmissionOrchestrator) propagateToInvoice(ctx context.Context, rec *entity.InvoicingRecord) {
	var status string
	switch rec.SubmissionStatus {
	case entity.RecordStatusAccepted:
		status = entity.VerifactuStatusAccepted
	case entity.RecordStatusRejected:
		status = entity.VerifactuStatusRejected
	case entity.RecordStatusError:
		status = entity.VerifactuStatusError
	default:
		status = entity.VerifactuStatusSubmitted
	}

	if err := o.invoices.UpdateVerifactu(ctx, rec.InvoiceID, status, "", rec.ErrorMessage); err != nil {
		o.log.Error().Err(err).
			Str("invoice_id", rec.InvoiceID).
			Str("status", status).
			Msg("no se pudo propagar el estado a la factura")
	}
}

func attemptNumber(attempt *entity.AeatSubmission, i int) int {
	if attempt != nil {
		return attempt.AttemptNumber
	}
	return i + 1
}
