package billing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
)

func TestListRecords_PaginaConTotal(t *testing.T) {
	records := newFakeRecordRepo()
	for i := 0; i < 5; i++ {
		require.NoError(t, records.Create(context.Background(), &entity.InvoicingRecord{
			ID:        fmt.Sprintf("rec-%d", i+1),
			CompanyID: "co-1",
		}))
	}
	// Registros de otro tenant no cuentan ni aparecen.
	require.NoError(t, records.Create(context.Background(), &entity.InvoicingRecord{
		ID:        "rec-ajeno",
		CompanyID: "co-2",
	}))

	q := NewComplianceQuery(newFakeInvoiceRepo(), records, nil)

	recs, total, err := q.ListRecords(context.Background(), "co-1", 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec-3", recs[0].ID)
	assert.Equal(t, "rec-4", recs[1].ID)
}

func TestListRecords_OffsetMasAllaDelFinal(t *testing.T) {
	records := newFakeRecordRepo()
	require.NoError(t, records.Create(context.Background(), &entity.InvoicingRecord{
		ID:        "rec-1",
		CompanyID: "co-1",
	}))

	q := NewComplianceQuery(newFakeInvoiceRepo(), records, nil)

	recs, total, err := q.ListRecords(context.Background(), "co-1", 20, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Empty(t, recs)
}
