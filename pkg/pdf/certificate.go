package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything printed on a completion certificate.
type CertificateData struct {
	CertificateID  string
	StudentName    string
	CourseName     string
	CourseDuration int
	BatchName      string
	InstructorName string
	CompletionDate time.Time
	IssuedAt       time.Time
}

// Layout constants for the A4 landscape certificate. Fixed, not computed.
const (
	certOuterBorder  = 8.0
	certInnerBorder  = 12.0
	certTitleSize    = 34.0
	certSubtitleSize = 16.0
	certNameSize     = 26.0
	certBodySize     = 13.0
	certCourseSize   = 20.0
	certFooterSize   = 9.0
)

// CertificateRenderer draws completion certificates.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render produces the certificate PDF as bytes.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.CertificateID == "" {
		return nil, fmt.Errorf("certificate id required")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	w, h := pdf.GetPageSize()

	// Double border frame.
	pdf.SetLineWidth(1.2)
	pdf.SetDrawColor(90, 70, 160)
	pdf.Rect(certOuterBorder, certOuterBorder, w-2*certOuterBorder, h-2*certOuterBorder, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(certInnerBorder, certInnerBorder, w-2*certInnerBorder, h-2*certInnerBorder, "D")

	pdf.SetY(34)
	pdf.SetFont("Times", "B", certTitleSize)
	pdf.SetTextColor(90, 70, 160)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Times", "I", certSubtitleSize)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 8, "This is to certify that", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Times", "B", certNameSize)
	pdf.SetTextColor(40, 40, 40)
	pdf.CellFormat(0, 12, data.StudentName, "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Times", "", certBodySize)
	pdf.SetTextColor(80, 80, 80)
	pdf.CellFormat(0, 7, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Times", "B", certCourseSize)
	pdf.SetTextColor(60, 110, 90)
	pdf.CellFormat(0, 10, data.CourseName, "", 1, "C", false, 0, "")

	pdf.SetFont("Times", "", certBodySize)
	pdf.SetTextColor(80, 80, 80)
	if data.BatchName != "" {
		pdf.CellFormat(0, 7, fmt.Sprintf("Batch: %s", data.BatchName), "", 1, "C", false, 0, "")
	}
	if data.CourseDuration > 0 {
		pdf.CellFormat(0, 7, fmt.Sprintf("Duration: %d months", data.CourseDuration), "", 1, "C", false, 0, "")
	}

	pdf.Ln(4)
	pdf.CellFormat(0, 7, fmt.Sprintf("Completed on %s", data.CompletionDate.Format("January 2, 2006")), "", 1, "C", false, 0, "")

	// Footer row: certificate id left, signature line right.
	footerY := h - certInnerBorder - 22
	pdf.SetY(footerY)
	pdf.SetFont("Courier", "", certFooterSize)
	pdf.SetTextColor(110, 110, 110)
	pdf.SetX(certInnerBorder + 10)
	pdf.CellFormat(90, 6, fmt.Sprintf("Certificate ID: %s", data.CertificateID), "", 0, "L", false, 0, "")

	sigX := w - certInnerBorder - 80
	pdf.Line(sigX, footerY+4, sigX+64, footerY+4)
	pdf.SetXY(sigX, footerY+5)
	pdf.SetFont("Times", "", certFooterSize+1)
	signer := data.InstructorName
	if signer == "" {
		signer = "Authorized Signatory"
	}
	pdf.CellFormat(64, 5, signer, "", 1, "C", false, 0, "")

	pdf.SetXY(certInnerBorder+10, footerY+6)
	pdf.SetFont("Courier", "", certFooterSize)
	pdf.CellFormat(90, 6, fmt.Sprintf("Issued on %s", data.IssuedAt.Format("January 2, 2006")), "", 0, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate pdf: %w", err)
	}
	return buf.Bytes(), nil
}
