package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
	"github.com/campuskit/sms-api/pkg/jobs"
)

type memoryDocumentStore struct {
	files map[string][]byte
}

func newMemoryDocumentStore() *memoryDocumentStore {
	return &memoryDocumentStore{files: map[string][]byte{}}
}

func (m *memoryDocumentStore) Save(filename string, data []byte) (string, error) {
	m.files[filename] = data
	return "/media/" + filename, nil
}

func (m *memoryDocumentStore) Exists(filename string) bool {
	_, ok := m.files[filename]
	return ok
}

func (m *memoryDocumentStore) Path(filename string) string {
	return "/media/" + filename
}

type mockDocCertificateRepo struct {
	detail  *models.CertificateDetail
	pdfPath string
}

func (m *mockDocCertificateRepo) FindByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, sql.ErrNoRows
	}
	detail := *m.detail
	detail.PDFPath = m.pdfPath
	return &detail, nil
}

func (m *mockDocCertificateRepo) FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error) {
	if m.detail == nil || m.detail.CertificateID != certificateID {
		return nil, sql.ErrNoRows
	}
	detail := *m.detail
	detail.PDFPath = m.pdfPath
	return &detail, nil
}

func (m *mockDocCertificateRepo) UpdatePDFPath(ctx context.Context, id, path string) error {
	m.pdfPath = path
	return nil
}

type mockDocInvoiceRepo struct {
	detail  *models.InvoiceDetail
	pdfPath string
}

func (m *mockDocInvoiceRepo) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, sql.ErrNoRows
	}
	detail := *m.detail
	detail.PDFPath = m.pdfPath
	return &detail, nil
}

func (m *mockDocInvoiceRepo) UpdatePDFPath(ctx context.Context, id, path string) error {
	m.pdfPath = path
	return nil
}

type mockDocCustomInvoiceRepo struct {
	invoice *models.CustomInvoice
}

func (m *mockDocCustomInvoiceRepo) FindByID(ctx context.Context, id string) (*models.CustomInvoice, error) {
	if m.invoice == nil || m.invoice.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.invoice
	return &copied, nil
}

func (m *mockDocCustomInvoiceRepo) UpdatePDFPath(ctx context.Context, id, path string) error {
	m.invoice.PDFPath = path
	return nil
}

func sampleCertificateDetail() *models.CertificateDetail {
	return &models.CertificateDetail{
		Certificate: models.Certificate{
			ID:             "cert-row-1",
			CertificateID:  "CERT-2026-0001",
			CompletionDate: time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
			IssuedAt:       time.Date(2026, 5, 21, 0, 0, 0, 0, time.UTC),
		},
		StudentName:    "Alice",
		CourseName:     "Go Basics",
		CourseDuration: 12,
	}
}

func newDocServiceFixture() (*DocumentService, *mockDocCertificateRepo, *mockDocInvoiceRepo, *memoryDocumentStore) {
	certs := &mockDocCertificateRepo{detail: sampleCertificateDetail()}
	invoices := &mockDocInvoiceRepo{detail: &models.InvoiceDetail{
		Invoice: models.Invoice{
			ID:            "inv-row-1",
			InvoiceNumber: "INV-2026-0001",
			Amount:        500,
			PaymentDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Alice",
		CourseName:  "Go Basics",
	}}
	store := newMemoryDocumentStore()
	svc := NewDocumentService(certs, invoices, &mockDocCustomInvoiceRepo{}, store, jobs.QueueConfig{}, nil, nil)
	return svc, certs, invoices, store
}

func TestDocumentServiceCertificateFileRendersOnDemand(t *testing.T) {
	svc, certs, _, store := newDocServiceFixture()

	path, filename, err := svc.CertificateFile(context.Background(), "cert-row-1")
	require.NoError(t, err)
	assert.Equal(t, "certificate-CERT-2026-0001.pdf", filename)
	assert.Equal(t, "/media/certificate-CERT-2026-0001.pdf", path)

	assert.True(t, store.Exists(filename))
	assert.Equal(t, filename, certs.pdfPath)

	// Rendered output is a PDF document.
	assert.True(t, bytes.HasPrefix(store.files[filename], []byte("%PDF")))
}

func TestDocumentServiceCertificateFileReusesStoredPDF(t *testing.T) {
	svc, certs, _, store := newDocServiceFixture()

	_, filename, err := svc.CertificateFile(context.Background(), "cert-row-1")
	require.NoError(t, err)

	// Poison the stored bytes to prove the second call does not re-render.
	store.files[filename] = []byte("cached")
	_, _, err = svc.CertificateFile(context.Background(), "cert-row-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), store.files[filename])
	assert.Equal(t, filename, certs.pdfPath)
}

func TestDocumentServiceCertificateFileByNumber(t *testing.T) {
	svc, _, _, store := newDocServiceFixture()

	path, filename, err := svc.CertificateFileByNumber(context.Background(), "CERT-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, "certificate-CERT-2026-0001.pdf", filename)
	assert.Equal(t, "/media/certificate-CERT-2026-0001.pdf", path)
	assert.True(t, store.Exists(filename))

	_, _, err = svc.CertificateFileByNumber(context.Background(), "CERT-2026-9999")
	require.Error(t, err)
}

func TestDocumentServiceCertificateFileNotFound(t *testing.T) {
	svc, _, _, _ := newDocServiceFixture()

	_, _, err := svc.CertificateFile(context.Background(), "missing")
	require.Error(t, err)
}

func TestDocumentServiceInvoiceFileRendersOnDemand(t *testing.T) {
	svc, _, invoices, store := newDocServiceFixture()

	path, filename, err := svc.InvoiceFile(context.Background(), "inv-row-1")
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-2026-0001.pdf", filename)
	assert.Equal(t, "/media/invoice-INV-2026-0001.pdf", path)
	assert.True(t, store.Exists(filename))
	assert.Equal(t, filename, invoices.pdfPath)
}

func TestCourseLineDescription(t *testing.T) {
	batch := "Evening Batch"
	assert.Equal(t, "Go Basics (Evening Batch)", courseLineDescription("Go Basics", &batch))
	assert.Equal(t, "Go Basics", courseLineDescription("Go Basics", nil))

	empty := ""
	assert.Equal(t, "Go Basics", courseLineDescription("Go Basics", &empty))
}
