package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/certstore"
	"github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/postgres"
	infraverifactu "github.com/xcruz-intermega/factu365-sub001/internal/infrastructure/verifactu"
	"github.com/xcruz-intermega/factu365-sub001/pkg/config"
	"github.com/xcruz-intermega/factu365-sub001/pkg/logger"
)

// Antigüedad mínima de un registro pending/submitted para que el worker lo
// rescate. Da margen de sobra a los reintentos en caliente del API antes de
// tocar el registro.
const staleAfter = 30 * time.Minute

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
		Str("verifactu_env", cfg.Verifactu.Environment).
		Msg("iniciando worker de reenvío")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	invoiceRepo := postgres.NewInvoiceRepository(pool)
	recordRepo := postgres.NewInvoicingRecordRepository(pool)
	submissionRepo := postgres.NewAeatSubmissionRepository(pool)
	certRepo := postgres.NewCertificateRepository(pool)

	certStore, err := certstore.NewStore(cfg.Verifactu.CertStoreDir, cfg.Verifactu.CertStoreKey, certRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("almacén de certificados")
	}

	aeatClient := infraverifactu.NewClient(cfg.Verifactu, submissionRepo, recordRepo, log)
	orchestrator := billing.NewSubmissionOrchestrator(
		recordRepo, invoiceRepo, certStore, aeatClient, cfg.Verifactu, log,
	)

	g, ctx := errgroup.WithContext(ctx)

	// Job de rescate: relanza periódicamente los registros que quedaron en
	// pending/submitted (caída del proceso a mitad de envío, reintentos
	// agotados por una indisponibilidad larga de la AEAT...).
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				if err := orchestrator.ResubmitStale(ctx, staleAfter); err != nil {
					log.Error().Err(err).Msg("barrido de registros pendientes fallido")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		log.Info().Dur("stale_after", staleAfter).Msg("barrido de registros pendientes programado cada 5 minutos")

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker finalizado con error")
		os.Exit(1)
	}
	log.Info().Msg("worker detenido")
}
