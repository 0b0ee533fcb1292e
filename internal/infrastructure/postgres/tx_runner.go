package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xcruz-intermega/factu365-sub001/internal/application/billing"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

var _ billing.ChainTxRunner = (*ChainTxRunner)(nil)

// ChainTxRunner ejecuta callbacks de la cadena dentro de una transacción
// PostgreSQL serializada por tenant.
type ChainTxRunner struct {
	pool *pgxpool.Pool
}

// NewChainTxRunner construye el runner con el pool.
func NewChainTxRunner(pool *pgxpool.Pool) *ChainTxRunner {
	return &ChainTxRunner{pool: pool}
}

// RunChain abre una transacción, toma el advisory lock del tenant y ejecuta fn
// con el repositorio de registros atado a la tx. El lock serializa la
// secuencia "leer última huella, insertar eslabón": sin él, dos
// finalizaciones concurrentes podrían leer la misma huella anterior y dejar la
// cadena bifurcada. Se libera solo al cerrar la transacción.
func (r *ChainTxRunner) RunChain(ctx context.Context, companyID string, fn func(records repository.InvoicingRecordRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, companyID); err != nil {
		return fmt.Errorf("advisory lock de la cadena: %w", err)
	}

	if err := fn(NewInvoicingRecordRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
