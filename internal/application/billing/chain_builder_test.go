package billing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	domainverifactu "github.com/xcruz-intermega/factu365-sub001/internal/domain/verifactu"
)

func chainFixture() (*ChainBuilder, *fakeRecordRepo) {
	records := newFakeRecordRepo()
	runner := &fakeChainRunner{records: records}
	b := NewChainBuilder(runner, domainverifactu.NewFingerprintService())
	b.now = func() time.Time {
		return time.Date(2025, 3, 7, 11, 30, 5, 0, time.FixedZone("CET", 3600))
	}
	return b, records
}

func testCompany() *entity.Company {
	return &entity.Company{
		ID:               "co-1",
		LegalName:        "Ferretería Cañas SL",
		NIF:              "B12345678",
		VerifactuEnabled: true,
	}
}

func testInvoice(number string) *entity.Invoice {
	return &entity.Invoice{
		ID:          "inv-" + number,
		CompanyID:   "co-1",
		DocKind:     entity.DocKindInvoice,
		Series:      "FA-2025/",
		Number:      number,
		IssueDate:   time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
		InvoiceType: "F1",
		NetTotal:    decimal.NewFromFloat(100),
		TaxTotal:    decimal.NewFromFloat(21),
		GrandTotal:  decimal.NewFromFloat(121),
	}
}

func TestBuildRecord_PrimerEslabonConHuellaAnteriorVacia(t *testing.T) {
	b, records := chainFixture()

	rec, err := b.BuildRecord(context.Background(), testInvoice("0001"), testCompany(), entity.RecordTypeAlta)
	require.NoError(t, err)

	assert.Empty(t, rec.PreviousHash)
	assert.Len(t, rec.Hash, 64)
	assert.Equal(t, "07-03-2025", rec.ExpeditionDate)
	assert.Equal(t, "2025-03-07T11:30:05+01:00", rec.GeneratedAt)
	assert.Equal(t, entity.RecordStatusPending, rec.SubmissionStatus)
	assert.Equal(t, "FA-2025/0001", rec.InvoiceNumber)

	stored, _ := records.GetByID(context.Background(), rec.ID)
	require.NotNil(t, stored, "el registro queda persistido")
}

func TestBuildRecord_EncadenaContraElUltimoDelTenant(t *testing.T) {
	b, _ := chainFixture()

	r1, err := b.BuildRecord(context.Background(), testInvoice("0001"), testCompany(), entity.RecordTypeAlta)
	require.NoError(t, err)
	r2, err := b.BuildRecord(context.Background(), testInvoice("0002"), testCompany(), entity.RecordTypeAlta)
	require.NoError(t, err)

	assert.Equal(t, r1.Hash, r2.PreviousHash)
	assert.NotEqual(t, r1.Hash, r2.Hash)
}

func TestBuildRecord_AnulacionEncadenaEnLaMismaCadenaGlobal(t *testing.T) {
	// La cadena es global por tenant: alta y anulación comparten secuencia.
	b, _ := chainFixture()

	alta, err := b.BuildRecord(context.Background(), testInvoice("0001"), testCompany(), entity.RecordTypeAlta)
	require.NoError(t, err)
	anulacion, err := b.BuildRecord(context.Background(), testInvoice("0001"), testCompany(), entity.RecordTypeAnulacion)
	require.NoError(t, err)

	assert.Equal(t, entity.RecordTypeAnulacion, anulacion.RecordType)
	assert.Equal(t, alta.Hash, anulacion.PreviousHash)
}

func TestBuildRecord_EmisorSinPerfilAborta(t *testing.T) {
	b, records := chainFixture()
	company := testCompany()
	company.NIF = ""

	_, err := b.BuildRecord(context.Background(), testInvoice("0001"), company, entity.RecordTypeAlta)
	require.ErrorIs(t, err, domain.ErrIssuerNotConfigured)

	libro, _ := records.ListByCompany(context.Background(), "co-1", 100, 0)
	assert.Empty(t, libro, "sin perfil de emisor no se crea registro")
}

func TestBuildRecord_TipoFueraDeCatalogo(t *testing.T) {
	b, _ := chainFixture()
	inv := testInvoice("0001")
	inv.InvoiceType = "X9"

	_, err := b.BuildRecord(context.Background(), inv, testCompany(), entity.RecordTypeAlta)
	assert.Error(t, err)
}

func TestBuildRecord_ConcurrenciaSinBifurcaciones(t *testing.T) {
	b, records := chainFixture()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			inv := testInvoice(fmt.Sprintf("%04d", i+1))
			_, err := b.BuildRecord(context.Background(), inv, testCompany(), entity.RecordTypeAlta)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	libro, err := records.ListByCompany(context.Background(), "co-1", 100, 0)
	require.NoError(t, err)
	require.Len(t, libro, n)

	// Nunca dos eslabones colgando del mismo predecesor.
	seen := make(map[string]bool)
	for _, rec := range libro {
		assert.False(t, seen[rec.PreviousHash], "huella anterior repetida: bifurcación de cadena")
		seen[rec.PreviousHash] = true
	}
	// Y el libro re-verifica de principio a fin.
	prev := ""
	for _, rec := range libro {
		assert.Equal(t, prev, rec.PreviousHash)
		prev = rec.Hash
	}
}
