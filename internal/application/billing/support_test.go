package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xcruz-intermega/factu365-sub001/internal/domain/entity"
	"github.com/xcruz-intermega/factu365-sub001/internal/domain/repository"
)

// ── Libro de registros en memoria ─────────────────────────────────────────────

type fakeRecordRepo struct {
	mu    sync.Mutex
	recs  map[string]*entity.InvoicingRecord
	order []string
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{recs: make(map[string]*entity.InvoicingRecord)}
}

func (r *fakeRecordRepo) Create(_ context.Context, rec *entity.InvoicingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.recs[rec.ID] = &cp
	r.order = append(r.order, rec.ID)
	return nil
}

func (r *fakeRecordRepo) GetByID(_ context.Context, id string) (*entity.InvoicingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRecordRepo) GetLatestByCompany(_ context.Context, companyID string) (*entity.InvoicingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if rec := r.recs[r.order[i]]; rec.CompanyID == companyID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRecordRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.InvoicingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.InvoicingRecord
	for _, id := range r.order {
		if rec := r.recs[id]; rec.CompanyID == companyID {
			cp := *rec
			all = append(all, &cp)
		}
	}
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeRecordRepo) CountByCompany(_ context.Context, companyID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		if r.recs[id].CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (r *fakeRecordRepo) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.InvoicingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.InvoicingRecord
	for _, id := range r.order {
		if rec := r.recs[id]; rec.InvoiceID == invoiceID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRecordRepo) UpdateXML(_ context.Context, id, xmlContent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return errors.New("registro no encontrado")
	}
	rec.XMLContent = xmlContent
	return nil
}

func (r *fakeRecordRepo) UpdateSubmissionState(_ context.Context, rec *entity.InvoicingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.recs[rec.ID]
	if !ok {
		return errors.New("registro no encontrado")
	}
	stored.SubmissionStatus = rec.SubmissionStatus
	stored.CSV = rec.CSV
	stored.ErrorMessage = rec.ErrorMessage
	return nil
}

func (r *fakeRecordRepo) ListStale(_ context.Context, olderThan time.Time) ([]*entity.InvoicingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.InvoicingRecord
	for _, id := range r.order {
		rec := r.recs[id]
		pendiente := rec.SubmissionStatus == entity.RecordStatusPending ||
			rec.SubmissionStatus == entity.RecordStatusSubmitted
		if pendiente && rec.CreatedAt.Before(olderThan) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ── Facturas en memoria ───────────────────────────────────────────────────────

type verifactuUpdate struct {
	Status string
	QRUrl  string
	Error  string
}

type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]*entity.Invoice
	lines    map[string][]entity.InvoiceLine
	updates  []verifactuUpdate
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[string]*entity.Invoice),
		lines:    make(map[string][]entity.InvoiceLine),
	}
}

func (r *fakeInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeInvoiceRepo) GetLinesByInvoiceID(_ context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines[invoiceID], nil
}

func (r *fakeInvoiceRepo) UpdateVerifactu(_ context.Context, id, status, qrURL, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return errors.New("factura no encontrada")
	}
	inv.VerifactuStatus = status
	if qrURL != "" {
		inv.QRUrl = qrURL
	}
	inv.VerifactuError = errorMsg
	r.updates = append(r.updates, verifactuUpdate{Status: status, QRUrl: qrURL, Error: errorMsg})
	return nil
}

type fakeCompanyRepo struct {
	companies map[string]*entity.Company
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return r.companies[id], nil
}

type fakeCustomerRepo struct {
	customers map[string]*entity.Customer
}

func (r *fakeCustomerRepo) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	return r.customers[id], nil
}

// ── Almacén de certificados ───────────────────────────────────────────────────

type fakeCertStore struct {
	cert        *entity.Certificate
	activeErr   error
	extractErr  error
	cleanedUp   bool
	extractions int
}

func (s *fakeCertStore) Active(context.Context, string) (*entity.Certificate, error) {
	return s.cert, s.activeErr
}

func (s *fakeCertStore) ExtractKeyPair(context.Context, *entity.Certificate) (*KeyMaterial, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	s.extractions++
	return &KeyMaterial{
		CertPath: "/tmp/cert.pem",
		KeyPath:  "/tmp/key.pem",
		Cleanup:  func() { s.cleanedUp = true },
	}, nil
}

// ── Submitter guionizado ──────────────────────────────────────────────────────

// submitOutcome desenlace de un intento: err simula fallo de transporte; si es
// nil, status/csv/errMsg son el desenlace terminal que el cliente real dejaría
// en el registro.
type submitOutcome struct {
	err    error
	status string
	csv    string
	errMsg string
}

type fakeSubmitter struct {
	mu       sync.Mutex
	outcomes []submitOutcome
	records  *fakeRecordRepo
	calls    int
	attempts []*entity.AeatSubmission
}

func (s *fakeSubmitter) Submit(ctx context.Context, rec *entity.InvoicingRecord, certPath, keyPath string) (*entity.AeatSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	out := submitOutcome{err: errors.New("sin guion para el intento")}
	if idx < len(s.outcomes) {
		out = s.outcomes[idx]
	}

	attempt := &entity.AeatSubmission{
		ID:            fmt.Sprintf("att-%s-%d", rec.ID, idx+1),
		RecordID:      rec.ID,
		AttemptNumber: idx + 1,
		Status:        entity.SubmissionStatusPending,
	}
	s.attempts = append(s.attempts, attempt)

	if out.err != nil {
		attempt.Status = entity.SubmissionStatusError
		attempt.ErrorCode = entity.SubmissionErrConnection
		rec.SubmissionStatus = entity.RecordStatusError
		rec.ErrorMessage = out.err.Error()
		_ = s.records.UpdateSubmissionState(ctx, rec)
		return attempt, out.err
	}

	attempt.Status = out.status
	attempt.CSV = out.csv
	switch out.status {
	case entity.SubmissionStatusAccepted, entity.SubmissionStatusPartiallyAccepted:
		rec.SubmissionStatus = entity.RecordStatusAccepted
	case entity.SubmissionStatusRejected:
		rec.SubmissionStatus = entity.RecordStatusRejected
	case entity.SubmissionStatusError:
		rec.SubmissionStatus = entity.RecordStatusError
	default:
		rec.SubmissionStatus = entity.RecordStatusSubmitted
	}
	rec.CSV = out.csv
	rec.ErrorMessage = out.errMsg
	_ = s.records.UpdateSubmissionState(ctx, rec)
	return attempt, nil
}

// ── Transacción de cadena ─────────────────────────────────────────────────────

// fakeChainRunner serializa fn con un mutex, como haría la transacción con
// advisory lock en PostgreSQL.
type fakeChainRunner struct {
	mu      sync.Mutex
	records *fakeRecordRepo
}

func (r *fakeChainRunner) RunChain(ctx context.Context, _ string, fn func(records repository.InvoicingRecordRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.records)
}
