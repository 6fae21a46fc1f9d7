package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type mockCustomInvoiceRepo struct {
	invoices   map[string]*models.CustomInvoice
	nextNumber string
	created    *models.CustomInvoice
	updated    *models.CustomInvoice
	deletedID  string
}

func (m *mockCustomInvoiceRepo) List(ctx context.Context, filter models.CustomInvoiceFilter) ([]models.CustomInvoice, int, error) {
	var out []models.CustomInvoice
	for _, invoice := range m.invoices {
		out = append(out, *invoice)
	}
	return out, len(out), nil
}

func (m *mockCustomInvoiceRepo) FindByID(ctx context.Context, id string) (*models.CustomInvoice, error) {
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *invoice
	return &clone, nil
}

func (m *mockCustomInvoiceRepo) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	return m.nextNumber, nil
}

func (m *mockCustomInvoiceRepo) Create(ctx context.Context, invoice *models.CustomInvoice) error {
	invoice.ID = "ci-1"
	m.created = invoice
	return nil
}

func (m *mockCustomInvoiceRepo) Update(ctx context.Context, invoice *models.CustomInvoice) error {
	m.updated = invoice
	return nil
}

func (m *mockCustomInvoiceRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

type mockDocumentScheduler struct {
	certificateIDs   []string
	invoiceIDs       []string
	customInvoiceIDs []string
}

func (m *mockDocumentScheduler) ScheduleCertificate(id string) {
	m.certificateIDs = append(m.certificateIDs, id)
}

func (m *mockDocumentScheduler) ScheduleInvoice(id string) {
	m.invoiceIDs = append(m.invoiceIDs, id)
}

func (m *mockDocumentScheduler) ScheduleCustomInvoice(id string) {
	m.customInvoiceIDs = append(m.customInvoiceIDs, id)
}

func TestCustomInvoiceServiceCreateComputesTotals(t *testing.T) {
	repo := &mockCustomInvoiceRepo{nextNumber: "INV-2026-0005"}
	docs := &mockDocumentScheduler{}
	svc := NewCustomInvoiceService(repo, docs, nil, nil)

	invoice, err := svc.Create(context.Background(), CustomInvoiceRequest{
		RecipientName: "Acme Corp",
		Items: []models.InvoiceItem{
			{Description: "Workshop", Quantity: 2, UnitPrice: 250},
			{Description: "Materials", Quantity: 3, UnitPrice: 40},
		},
		TaxPercentage: 10,
		Discount:      20,
	})
	require.NoError(t, err)

	// subtotal 2*250 + 3*40 = 620, tax 62, total 620 + 62 - 20 = 662
	assert.Equal(t, 620.0, invoice.Subtotal)
	assert.Equal(t, 62.0, invoice.TaxAmount)
	assert.Equal(t, 662.0, invoice.TotalAmount)
	assert.Equal(t, "INV-2026-0005", invoice.InvoiceNumber)
	assert.Equal(t, []string{"ci-1"}, docs.customInvoiceIDs)
}

func TestCustomInvoiceServiceCreateIgnoresClientTotals(t *testing.T) {
	repo := &mockCustomInvoiceRepo{nextNumber: "INV-2026-0006"}
	svc := NewCustomInvoiceService(repo, nil, nil, nil)

	invoice, err := svc.Create(context.Background(), CustomInvoiceRequest{
		RecipientName: "Acme Corp",
		Items:         []models.InvoiceItem{{Description: "Audit", Quantity: 1, UnitPrice: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, invoice.Subtotal)
	assert.Equal(t, 0.0, invoice.TaxAmount)
	assert.Equal(t, 100.0, invoice.TotalAmount)
}

func TestCustomInvoiceServiceCreateRejectsExcessiveDiscount(t *testing.T) {
	repo := &mockCustomInvoiceRepo{nextNumber: "INV-2026-0007"}
	svc := NewCustomInvoiceService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CustomInvoiceRequest{
		RecipientName: "Acme Corp",
		Items:         []models.InvoiceItem{{Description: "Audit", Quantity: 1, UnitPrice: 100}},
		Discount:      500,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCustomInvoiceServiceCreateRequiresItems(t *testing.T) {
	repo := &mockCustomInvoiceRepo{nextNumber: "INV-2026-0008"}
	svc := NewCustomInvoiceService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), CustomInvoiceRequest{RecipientName: "Acme Corp"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCustomInvoiceServiceUpdateRecomputesAndKeepsNumber(t *testing.T) {
	existing := &models.CustomInvoice{
		ID:            "ci-9",
		InvoiceNumber: "INV-2025-0042",
		RecipientName: "Old Name",
		Items:         models.InvoiceItems{{Description: "Old", Quantity: 1, UnitPrice: 10}},
		Subtotal:      10,
		TotalAmount:   10,
		PaymentDate:   time.Now(),
		PDFPath:       "invoice-INV-2025-0042.pdf",
	}
	repo := &mockCustomInvoiceRepo{invoices: map[string]*models.CustomInvoice{"ci-9": existing}}
	docs := &mockDocumentScheduler{}
	svc := NewCustomInvoiceService(repo, docs, nil, nil)

	invoice, err := svc.Update(context.Background(), "ci-9", CustomInvoiceRequest{
		RecipientName: "New Name",
		Items:         []models.InvoiceItem{{Description: "Consulting", Quantity: 4, UnitPrice: 75}},
		TaxPercentage: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0042", invoice.InvoiceNumber)
	assert.Equal(t, 300.0, invoice.Subtotal)
	assert.Equal(t, 15.0, invoice.TaxAmount)
	assert.Equal(t, 315.0, invoice.TotalAmount)
	assert.Empty(t, invoice.PDFPath)
	assert.Equal(t, []string{"ci-9"}, docs.customInvoiceIDs)
}

func TestCustomInvoiceServiceDeleteUnknown(t *testing.T) {
	repo := &mockCustomInvoiceRepo{}
	svc := NewCustomInvoiceService(repo, nil, nil, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
