package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	domainverifactu "github.com/xcruz-intermega/factu365-sub001/internal/domain/verifactu"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/certstore"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/postgres"
	infraverifactu "github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/verifactu"
	httpRouter "github.com/xcruz-intermega/factu365-sub001/internal/interfaces/http"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("verifactu_env", cfg.Verifactu.Environment).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	recordRepo := postgres.NewInvoicingRecordRepository(pool)
	submissionRepo := postgres.NewAeatSubmissionRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)
	chainRunner := postgres.NewChainTxRunner(pool)

	certStore, err := certstore.NewStore(cfg.Verifactu.CertStoreDir, cfg.Verifactu.CertStoreKey, certRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacén de certificados")
	}

	fingerprint := domainverifactu.NewFingerprintService()
	chainBuilder := billing.NewChainBuilder(chainRunner, fingerprint)
	encoder := infraverifactu.NewRecordXMLBuilder()
	aeatClient := infraverifactu.NewClient(cfg.Verifactu, submissionRepo, recordRepo, log)

	orchestrator := billing.NewSubmissionOrchestrator(
		recordRepo, invoiceRepo, certStore, aeatClient, cfg.Verifactu, log,
	)
	finalization := billing.NewFinalizationService(
		invoiceRepo, companyRepo, customerRepo, recordRepo,
		chainBuilder, encoder, orchestrator, cfg.Verifactu, log,
	)
	query := billing.NewComplianceQuery(invoiceRepo, recordRepo, submissionRepo)
	auditor := billing.NewPayloadAuditor(invoiceRepo, companyRepo, customerRepo, encoder, cfg.Verifactu)
	verifier := billing.NewChainVerifier(recordRepo, fingerprint, auditor)
	featureGate := billing.NewFeatureGate(companyRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		CertStore:    certStore,
		Certificates: certRepo,
		Finalization: finalization,
		Query:        query,
		Verifier:     verifier,
		Feature:      featureGate,
		JWTSecret:    cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
