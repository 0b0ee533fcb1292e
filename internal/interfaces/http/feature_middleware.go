package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/dto"
)

// featureChecker es el contrato mínimo que necesita el middleware para saber si
// el canal VERI*FACTU está activo para una empresa. El uso de interfaz evita el
// import circular con la capa de aplicación.
type featureChecker interface {
	VerifactuEnabled(ctx context.Context, companyID string) (bool, error)
}

// RequireVerifactu devuelve un middleware Fiber que verifica si la empresa del
// token tiene el canal VERI*FACTU activo. Debe usarse DESPUÉS de
// AuthMiddleware (necesita LocalCompanyID).
//
// Comportamiento:
//   - 403 Forbidden → canal no contratado para la empresa.
//   - 503 Service Unavailable → fallo de infraestructura al consultar la DB.
//   - Si no hay company_id en el contexto, responde 401.
func RequireVerifactu(checker featureChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		companyID := GetCompanyID(c)
		if companyID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "company_id no encontrado en el token",
			})
		}

		active, err := checker.VerifactuEnabled(c.Context(), companyID)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Code:    "FEATURE_CHECK_FAILED",
				Message: "no se pudo verificar el canal, intente más tarde",
			})
		}

		if !active {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Code:    "FEATURE_DISABLED",
				Message: "el canal VERI*FACTU no está activo para esta empresa",
			})
		}

		return c.Next()
	}
}
