package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	"github.com/xcruz-intermega/factu365-sub001/internal/application/dto"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
)

// VerifactuHandler maneja el ciclo de vida del canal: finalización y anulación
// de facturas, consulta de estado y auditoría del libro.
type VerifactuHandler struct {
	finalization *billing.FinalizationService
	query        *billing.ComplianceQuery
	verifier     *billing.ChainVerifier
}

// NewVerifactuHandler construye el handler.
func NewVerifactuHandler(finalization *billing.FinalizationService, query *billing.ComplianceQuery, verifier *billing.ChainVerifier) *VerifactuHandler {
	return &VerifactuHandler{finalization: finalization, query: query, verifier: verifier}
}

// Finalize dispara el alta de una factura finalizada en el canal. Responde 202
// siempre que la factura exista: el encadenado y el envío son asíncronos y su
// desenlace se consulta por polling.
// POST /api/invoices/:id/finalize
func (h *VerifactuHandler) Finalize(c *fiber.Ctx) error {
	return h.trigger(c, h.finalization.OnInvoiceFinalized)
}

// Void dispara la anulación de una factura ya remitida.
// POST /api/invoices/:id/void
func (h *VerifactuHandler) Void(c *fiber.Ctx) error {
	return h.trigger(c, h.finalization.OnInvoiceVoided)
}

// trigger comprueba la tenencia de la factura y dispara el evento. El evento
// nunca devuelve error hacia el llamante; los fallos quedan en el estado de la
// factura.
func (h *VerifactuHandler) trigger(c *fiber.Ctx, event func(ctx context.Context, invoiceID string) error) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	if _, _, err := h.query.InvoiceCompliance(c.Context(), companyID, id); err != nil {
		return writeQueryError(c, err, "factura no encontrada")
	}
	_ = event(c.Context(), id)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"invoice_id": id, "status": "queued"})
}

// Status devuelve el estado de cumplimiento de una factura con sus registros.
// GET /api/invoices/:id/verifactu
func (h *VerifactuHandler) Status(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	inv, recs, err := h.query.InvoiceCompliance(c.Context(), companyID, id)
	if err != nil {
		return writeQueryError(c, err, "factura no encontrada")
	}
	out := dto.InvoiceComplianceResponse{
		InvoiceID:       inv.ID,
		VerifactuStatus: inv.VerifactuStatus,
		QRUrl:           inv.QRUrl,
		Error:           inv.VerifactuError,
		Records:         make([]dto.InvoicingRecordResponse, 0, len(recs)),
	}
	for _, rec := range recs {
		out.Records = append(out.Records, dto.NewInvoicingRecordResponse(rec))
	}
	return c.JSON(out)
}

// ListRecords devuelve el libro de registros del tenant para auditoría,
// paginado con limit/offset.
// GET /api/verifactu/records
func (h *VerifactuHandler) ListRecords(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginación inválida"})
	}
	page.Normalize()

	recs, total, err := h.query.ListRecords(c.Context(), companyID, page.Limit, page.Offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}

	out := make([]dto.InvoicingRecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dto.NewInvoicingRecordResponse(rec))
	}
	return c.JSON(fiber.Map{
		"records": out,
		"page":    dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total},
	})
}

// RecordDetail devuelve un registro con su historial de intentos de remisión.
// GET /api/verifactu/records/:id
func (h *VerifactuHandler) RecordDetail(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	rec, attempts, err := h.query.RecordAttempts(c.Context(), companyID, id)
	if err != nil {
		return writeQueryError(c, err, "registro no encontrado")
	}
	out := dto.RecordDetailResponse{
		Record:   dto.NewInvoicingRecordResponse(rec),
		Attempts: make([]dto.SubmissionResponse, 0, len(attempts)),
	}
	for _, att := range attempts {
		out.Attempts = append(out.Attempts, dto.NewSubmissionResponse(att))
	}
	return c.JSON(out)
}

// VerifyChain audita la integridad del libro completo del tenant.
// GET /api/verifactu/chain
func (h *VerifactuHandler) VerifyChain(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	report, err := h.verifier.VerifyChain(c.Context(), companyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(report)
}

func writeQueryError(c *fiber.Ctx, err error, notFoundMsg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: notFoundMsg})
	}
	if errors.Is(err, domain.ErrForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
