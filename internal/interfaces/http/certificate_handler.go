package http

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/dto"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/certstore"
)

// Límite de tamaño del bundle PKCS#12 subido.
const maxBundleSize = 1 << 20 // 1 MB

// CertificateHandler maneja la gestión de identidades X.509 del tenant.
type CertificateHandler struct {
	store *certstore.Store
	certs repository.CertificateRepository
}

// NewCertificateHandler construye el handler.
func NewCertificateHandler(store *certstore.Store, certs repository.CertificateRepository) *CertificateHandler {
	return &CertificateHandler{store: store, certs: certs}
}

// Upload sube un bundle PKCS#12 con su contraseña (multipart: certificate,
// passphrase, label). El bundle se valida antes de almacenarse; una contraseña
// errónea no deja rastro.
// POST /api/certificates
func (h *CertificateHandler) Upload(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}

	fileHeader, err := c.FormFile("certificate")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "fichero 'certificate' requerido"})
	}
	if fileHeader.Size > maxBundleSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Code: "TOO_LARGE", Message: "el bundle excede el tamaño máximo"})
	}
	passphrase := c.FormValue("passphrase")
	if passphrase == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "campo 'passphrase' requerido"})
	}
	label := c.FormValue("label")

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el fichero"})
	}
	defer f.Close()
	bundle, err := io.ReadAll(io.LimitReader(f, maxBundleSize))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "no se pudo leer el fichero"})
	}

	cert, err := h.store.Upload(c.Context(), companyID, label, bundle, passphrase)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCertificate) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "INVALID_CERTIFICATE", Message: "bundle indescifrable o contraseña incorrecta"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewCertificateResponse(cert))
}

// List devuelve las identidades del tenant, recientes primero.
// GET /api/certificates
func (h *CertificateHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	certs, err := h.certs.ListByCompany(c.Context(), companyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	out := make([]dto.CertificateResponse, 0, len(certs))
	for _, cert := range certs {
		out = append(out, dto.NewCertificateResponse(cert))
	}
	return c.JSON(out)
}

// Activate marca una identidad como activa; la más reciente activa es la que
// se usa para los envíos.
// POST /api/certificates/:id/activate
func (h *CertificateHandler) Activate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// Deactivate retira una identidad del uso sin borrarla.
// POST /api/certificates/:id/deactivate
func (h *CertificateHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *CertificateHandler) setActive(c *fiber.Ctx, active bool) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}
	cert, err := h.certs.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	if cert == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "certificado no encontrado"})
	}
	if cert.CompanyID != companyID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	}
	if err := h.certs.SetActive(c.Context(), id, active); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	cert.IsActive = active
	return c.JSON(dto.NewCertificateResponse(cert))
}
