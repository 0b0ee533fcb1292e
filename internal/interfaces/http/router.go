package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/certstore"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	CertStore    *certstore.Store
	Certificates repository.CertificateRepository
	Finalization *billing.FinalizationService
	Query        *billing.ComplianceQuery
	Verifier     *billing.ChainVerifier
	Feature      featureChecker
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Todas las rutas requieren Bearer Token.
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Certificados: gestión de identidades incluso con el canal apagado, para
	// poder dejarlo listo antes de activarlo.
	certs := protected.Group("/certificates")
	certHandler := NewCertificateHandler(deps.CertStore, deps.Certificates)
	certs.Post("/", certHandler.Upload)
	certs.Get("/", certHandler.List)
	certs.Post("/:id/activate", certHandler.Activate)
	certs.Post("/:id/deactivate", certHandler.Deactivate)

	// Canal VERI*FACTU: requiere la feature activa para el tenant.
	vfHandler := NewVerifactuHandler(deps.Finalization, deps.Query, deps.Verifier)
	feature := RequireVerifactu(deps.Feature)

	invoices := protected.Group("/invoices", feature)
	invoices.Post("/:id/finalize", vfHandler.Finalize)
	invoices.Post("/:id/void", vfHandler.Void)
	invoices.Get("/:id/verifactu", vfHandler.Status)

	verifactu := protected.Group("/verifactu", feature)
	verifactu.Get("/records", vfHandler.ListRecords)
	verifactu.Get("/records/:id", vfHandler.RecordDetail)
	verifactu.Get("/chain", vfHandler.VerifyChain)
}
