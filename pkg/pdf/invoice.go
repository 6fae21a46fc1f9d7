package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// InvoiceLine is a single billed row.
type InvoiceLine struct {
	Description string
	Quantity    int
	UnitPrice   float64
}

// InvoiceData carries everything printed on an invoice.
type InvoiceData struct {
	InvoiceNumber  string
	RecipientName  string
	RecipientEmail string
	RecipientPhone string
	Lines          []InvoiceLine
	Subtotal       float64
	TaxPercentage  float64
	TaxAmount      float64
	Discount       float64
	Total          float64
	PaymentDate    time.Time
	IssuedAt       time.Time
	Notes          string
}

// Layout constants for the A4 portrait invoice.
const (
	invMarginLeft  = 15.0
	invMarginTop   = 18.0
	invTitleSize   = 22.0
	invHeadingSize = 12.0
	invBodySize    = 10.0
	invColDesc     = 95.0
	invColQty      = 20.0
	invColPrice    = 32.0
	invColAmount   = 33.0
)

// InvoiceRenderer draws invoices.
type InvoiceRenderer struct{}

// NewInvoiceRenderer constructs an invoice renderer.
func NewInvoiceRenderer() *InvoiceRenderer {
	return &InvoiceRenderer{}
}

// Render produces the invoice PDF as bytes.
func (r *InvoiceRenderer) Render(data InvoiceData) ([]byte, error) {
	if data.InvoiceNumber == "" {
		return nil, fmt.Errorf("invoice number required")
	}
	if len(data.Lines) == 0 {
		return nil, fmt.Errorf("invoice requires at least one line")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(invMarginLeft, invMarginTop, invMarginLeft)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", invTitleSize)
	pdf.SetTextColor(90, 70, 160)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetTextColor(60, 60, 60)
	pdf.SetFont("Helvetica", "B", invBodySize)
	pdf.CellFormat(40, 6, "Invoice Number:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", invBodySize)
	pdf.CellFormat(0, 6, data.InvoiceNumber, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", invBodySize)
	pdf.CellFormat(40, 6, "Payment Date:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", invBodySize)
	pdf.CellFormat(0, 6, data.PaymentDate.Format("January 2, 2006"), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", invBodySize)
	pdf.CellFormat(40, 6, "Issue Date:", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", invBodySize)
	pdf.CellFormat(0, 6, data.IssuedAt.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", invHeadingSize)
	pdf.SetTextColor(60, 110, 90)
	pdf.CellFormat(0, 7, "Bill To:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", invBodySize)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, data.RecipientName, "", 1, "L", false, 0, "")
	if data.RecipientEmail != "" {
		pdf.CellFormat(0, 6, data.RecipientEmail, "", 1, "L", false, 0, "")
	}
	if data.RecipientPhone != "" {
		pdf.CellFormat(0, 6, data.RecipientPhone, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// Line item table.
	pdf.SetFont("Helvetica", "B", invBodySize)
	pdf.SetFillColor(234, 228, 250)
	pdf.CellFormat(invColDesc, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(invColQty, 8, "Qty", "1", 0, "C", true, 0, "")
	pdf.CellFormat(invColPrice, 8, "Unit Price", "1", 0, "R", true, 0, "")
	pdf.CellFormat(invColAmount, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", invBodySize)
	for _, line := range data.Lines {
		amount := float64(line.Quantity) * line.UnitPrice
		pdf.CellFormat(invColDesc, 7, line.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(invColQty, 7, fmt.Sprintf("%d", line.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(invColPrice, 7, formatMoney(line.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(invColAmount, 7, formatMoney(amount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	// Totals block, right aligned.
	labelW := invColDesc + invColQty
	writeTotal := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, invBodySize)
		pdf.CellFormat(labelW, 6, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(invColPrice, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(invColAmount, 6, value, "", 1, "R", false, 0, "")
	}

	writeTotal("Subtotal:", formatMoney(data.Subtotal), false)
	if data.TaxPercentage > 0 {
		writeTotal(fmt.Sprintf("Tax (%.1f%%):", data.TaxPercentage), formatMoney(data.TaxAmount), false)
	}
	if data.Discount > 0 {
		writeTotal("Discount:", "-"+formatMoney(data.Discount), false)
	}
	writeTotal("Total:", formatMoney(data.Total), true)

	if data.Notes != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", invBodySize)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(0, 5, "Notes: "+data.Notes, "", "L", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatMoney(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
