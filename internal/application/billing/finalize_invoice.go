package billing

import (
	"context"
	"fmt"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	infraverifactu "github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/verifactu"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
	pkgverifactu "github.com/xcruz-intermega/factu365-sub001/pkg/verifactu"
)

// FinalizationService es el punto de entrada del canal: escucha la
// finalización (y anulación) de facturas y encadena registro → XML → QR →
// envío asíncrono.
//
// Un fallo aquí NUNCA debe abortar la transacción que finalizó la factura: se
// captura, se loguea y la factura queda en estado error.
type FinalizationService struct {
	invoices  repository.InvoiceRepository
	companies repository.CompanyRepository
	customers repository.CustomerRepository
	records   repository.InvoicingRecordRepository

	chain        *ChainBuilder
	encoder      *infraverifactu.RecordXMLBuilder
	orchestrator *SubmissionOrchestrator

	cfg config.VerifactuConfig
	log *logger.Logger
}

// NewFinalizationService construye el servicio.
func NewFinalizationService(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	customers repository.CustomerRepository,
	records repository.InvoicingRecordRepository,
	chain *ChainBuilder,
	encoder *infraverifactu.RecordXMLBuilder,
	orchestrator *SubmissionOrchestrator,
	cfg config.VerifactuConfig,
	log *logger.Logger,
) *FinalizationService {
	return &FinalizationService{
		invoices:     invoices,
		companies:    companies,
		customers:    customers,
		records:      records,
		chain:        chain,
		encoder:      encoder,
		orchestrator: orchestrator,
		cfg:          cfg,
		log:          log,
	}
}

// OnInvoiceFinalized procesa la finalización de una factura. Devuelve siempre
// nil hacia el llamante (el finalizado de la factura no debe deshacerse por un
// fallo del canal de cumplimiento); los errores quedan en el log y en el
// estado de la factura.
func (s *FinalizationService) OnInvoiceFinalized(ctx context.Context, invoiceID string) error {
	s.handleEvent(ctx, invoiceID, entity.RecordTypeAlta)
	return nil
}

// OnInvoiceVoided procesa la anulación de una factura ya remitida, generando
// el registro de anulación correspondiente. Misma semántica de errores que la
// finalización.
func (s *FinalizationService) OnInvoiceVoided(ctx context.Context, invoiceID string) error {
	s.handleEvent(ctx, invoiceID, entity.RecordTypeAnulacion)
	return nil
}

func (s *FinalizationService) handleEvent(ctx context.Context, invoiceID, recordType string) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil || inv == nil {
		s.log.Error().Err(err).Str("invoice_id", invoiceID).Msg("factura no encontrada al finalizar")
		return
	}

	// Solo documentos tipo factura entran al canal.
	if inv.DocKind != entity.DocKindInvoice && inv.DocKind != entity.DocKindRectificative {
		s.log.Debug().Str("invoice_id", invoiceID).Str("kind", inv.DocKind).Msg("documento fuera del canal, ignorado")
		return
	}

	company, err := s.companies.GetByID(ctx, inv.CompanyID)
	if err != nil || company == nil {
		s.markError(ctx, inv, fmt.Sprintf("empresa %s no encontrada: %v", inv.CompanyID, err))
		return
	}

	// Feature deshabilitada o emisor sin configurar: silencio, no error.
	if !company.VerifactuEnabled || !company.IssuerConfigured() {
		s.log.Debug().Str("company_id", company.ID).Msg("verifactu inactivo para la empresa, ignorado")
		return
	}

	if err := s.process(ctx, inv, company, recordType); err != nil {
		s.markError(ctx, inv, err.Error())
	}
}

func (s *FinalizationService) process(ctx context.Context, inv *entity.Invoice, company *entity.Company, recordType string) error {
	rec, err := s.chain.BuildRecord(ctx, inv, company, recordType)
	if err != nil {
		return fmt.Errorf("construir registro: %w", err)
	}

	buildCtx, err := assembleBuildContext(ctx, s.invoices, s.customers, s.cfg, rec, inv, company)
	if err != nil {
		return err
	}

	var payload []byte
	if recordType == entity.RecordTypeAnulacion {
		payload, err = s.encoder.BuildCancellation(buildCtx)
	} else {
		payload, err = s.encoder.BuildRegistration(buildCtx)
	}
	if err != nil {
		return fmt.Errorf("serializar registro: %w", err)
	}

	rec.XMLContent = string(payload)
	if err := s.records.UpdateXML(ctx, rec.ID, rec.XMLContent); err != nil {
		return fmt.Errorf("persistir XML del registro: %w", err)
	}

	qr := pkgverifactu.BuildQRURL(s.cfg.Environment, company.NIF, inv.FullNumber(), inv.IssueDate, inv.GrandTotal)
	if err := s.invoices.UpdateVerifactu(ctx, inv.ID, entity.VerifactuStatusPending, qr, ""); err != nil {
		return fmt.Errorf("actualizar factura: %w", err)
	}

	s.orchestrator.ProcessAsync(rec.ID)

	s.log.Info().
		Str("invoice_id", inv.ID).
		Str("record_id", rec.ID).
		Str("type", recordType).
		Msg("registro de facturación encadenado y encolado")
	return nil
}

// assembleBuildContext reúne los datos del registro para la serialización:
// contraparte opcional, líneas fiscales y, en rectificativas, la terna de la
// factura corregida. Lo comparten la finalización y la auditoría de payloads,
// que regenera el XML desde los mismos datos.
func assembleBuildContext(
	ctx context.Context,
	invoices repository.InvoiceRepository,
	customers repository.CustomerRepository,
	cfg config.VerifactuConfig,
	rec *entity.InvoicingRecord,
	inv *entity.Invoice,
	company *entity.Company,
) (*infraverifactu.RecordBuildContext, error) {
	buildCtx := &infraverifactu.RecordBuildContext{
		Record:  rec,
		Invoice: inv,
		Company: company,
		Software: infraverifactu.SoftwareInfo{
			VendorName:         cfg.VendorName,
			VendorNIF:          cfg.VendorNIF,
			Name:               cfg.SoftwareName,
			ID:                 cfg.SoftwareID,
			Version:            cfg.SoftwareVersion,
			InstallationNumber: cfg.InstallationNumber,
		},
	}

	if inv.CustomerID != "" {
		customer, err := customers.GetByID(ctx, inv.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("cargar cliente %s: %w", inv.CustomerID, err)
		}
		buildCtx.Customer = customer
	}

	lines, err := invoices.GetLinesByInvoiceID(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("cargar líneas de %s: %w", inv.ID, err)
	}
	buildCtx.Lines = lines

	if pkgverifactu.IsRectificative(inv.InvoiceType) && inv.RectifiedInvoiceID != "" {
		rectified, err := invoices.GetByID(ctx, inv.RectifiedInvoiceID)
		if err != nil || rectified == nil {
			return nil, fmt.Errorf("cargar factura rectificada %s: %w", inv.RectifiedInvoiceID, err)
		}
		buildCtx.Rectified = &infraverifactu.InvoiceRef{
			IssuerNIF:      company.NIF,
			Number:         rectified.FullNumber(),
			ExpeditionDate: rectified.IssueDate.Format(pkgverifactu.ExpeditionDateLayout),
		}
	}

	return buildCtx, nil
}

// markError deja la factura en estado de error del canal; el fallo nunca
// se propaga al flujo de finalización.
func (s *FinalizationService) markError(ctx context.Context, inv *entity.Invoice, msg string) {
	s.log.Error().Str("invoice_id", inv.ID).Str("reason", msg).Msg("canal VERI*FACTU en error para la factura")
	if err := s.invoices.UpdateVerifactu(ctx, inv.ID, entity.VerifactuStatusError, "", msg); err != nil {
		s.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("no se pudo persistir el estado de error")
	}
}
