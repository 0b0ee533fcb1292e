package repository

import (
	"context"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

// AeatSubmissionRepository persistencia de los intentos de envío (append-only).
type AeatSubmissionRepository interface {
	Create(ctx context.Context, sub *entity.AeatSubmission) error
	Update(ctx context.Context, sub *entity.AeatSubmission) error
	CountByRecord(ctx context.Context, recordID string) (int, error)
	ListByRecord(ctx context.Context, recordID string) ([]*entity.AeatSubmission, error)
}
