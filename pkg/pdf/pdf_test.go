package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateRender(t *testing.T) {
	renderer := NewCertificateRenderer()

	data := CertificateData{
		CertificateID:  "CERT-2026-0001",
		StudentName:    "Jane Doe",
		CourseName:     "Full Stack Web Development",
		CourseDuration: 6,
		BatchName:      "Morning Batch A",
		InstructorName: "R. Ahmed",
		CompletionDate: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		IssuedAt:       time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}

	out, err := renderer.Render(data)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestCertificateRenderRequiresID(t *testing.T) {
	renderer := NewCertificateRenderer()
	_, err := renderer.Render(CertificateData{StudentName: "Jane Doe"})
	assert.Error(t, err)
}

func TestInvoiceRender(t *testing.T) {
	renderer := NewInvoiceRenderer()

	data := InvoiceData{
		InvoiceNumber: "INV-2026-0001",
		RecipientName: "Jane Doe",
		Lines: []InvoiceLine{
			{Description: "Course fee", Quantity: 2, UnitPrice: 100},
			{Description: "Registration", Quantity: 1, UnitPrice: 50},
		},
		Subtotal:      250,
		TaxPercentage: 10,
		TaxAmount:     25,
		Discount:      20,
		Total:         255,
		PaymentDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		IssuedAt:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	out, err := renderer.Render(data)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestInvoiceRenderRequiresLines(t *testing.T) {
	renderer := NewInvoiceRenderer()
	_, err := renderer.Render(InvoiceData{InvoiceNumber: "INV-2026-0001"})
	assert.Error(t, err)
}
