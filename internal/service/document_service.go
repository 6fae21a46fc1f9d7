package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
	"github.com/campuskit/sms-api/pkg/jobs"
	"github.com/campuskit/sms-api/pkg/pdf"
)

const (
	jobTypeCertificate   = "certificate"
	jobTypeInvoice       = "invoice"
	jobTypeCustomInvoice = "custom_invoice"
)

type documentCertificateRepository interface {
	FindByID(ctx context.Context, id string) (*models.CertificateDetail, error)
	FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error)
	UpdatePDFPath(ctx context.Context, id, path string) error
}

type documentInvoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	UpdatePDFPath(ctx context.Context, id, path string) error
}

type documentCustomInvoiceRepository interface {
	FindByID(ctx context.Context, id string) (*models.CustomInvoice, error)
	UpdatePDFPath(ctx context.Context, id, path string) error
}

type documentStore interface {
	Save(filename string, data []byte) (string, error)
	Exists(filename string) bool
	Path(filename string) string
}

// DocumentService renders certificate and invoice PDFs. New documents are
// rendered by a background worker; downloads render synchronously when the
// stored file is missing so a download never 404s on a slow queue.
type DocumentService struct {
	certificates   documentCertificateRepository
	invoices       documentInvoiceRepository
	customInvoices documentCustomInvoiceRepository
	store          documentStore
	certRenderer   *pdf.CertificateRenderer
	invRenderer    *pdf.InvoiceRenderer
	queue          *jobs.Queue
	metrics        *MetricsService
	logger         *zap.Logger
}

// NewDocumentService creates a document service with its own worker queue.
func NewDocumentService(certificates documentCertificateRepository, invoices documentInvoiceRepository, customInvoices documentCustomInvoiceRepository, store documentStore, cfg jobs.QueueConfig, metrics *MetricsService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{
		certificates:   certificates,
		invoices:       invoices,
		customInvoices: customInvoices,
		store:          store,
		certRenderer:   pdf.NewCertificateRenderer(),
		invRenderer:    pdf.NewInvoiceRenderer(),
		metrics:        metrics,
		logger:         logger,
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s.queue = jobs.NewQueue("documents", s.handle, cfg)
	return s
}

// Start launches the rendering workers.
func (s *DocumentService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the rendering workers.
func (s *DocumentService) Stop() {
	s.queue.Stop()
}

// QueueDepth reports the number of documents waiting to be rendered.
func (s *DocumentService) QueueDepth() int {
	return s.queue.Depth()
}

// ScheduleCertificate queues background rendering for a certificate.
func (s *DocumentService) ScheduleCertificate(certificateID string) {
	s.enqueue(jobTypeCertificate, certificateID)
}

// ScheduleInvoice queues background rendering for a student invoice.
func (s *DocumentService) ScheduleInvoice(invoiceID string) {
	s.enqueue(jobTypeInvoice, invoiceID)
}

// ScheduleCustomInvoice queues background rendering for a custom invoice.
func (s *DocumentService) ScheduleCustomInvoice(invoiceID string) {
	s.enqueue(jobTypeCustomInvoice, invoiceID)
}

func (s *DocumentService) enqueue(jobType, id string) {
	err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobType, Payload: id})
	if err != nil {
		// Downloads fall back to synchronous rendering, so a failed
		// enqueue is not fatal.
		s.logger.Warn("failed to queue document rendering", zap.String("type", jobType), zap.String("id", id), zap.Error(err))
	}
}

func (s *DocumentService) handle(ctx context.Context, job jobs.Job) error {
	id := job.Payload
	switch job.Type {
	case jobTypeCertificate:
		_, err := s.renderCertificate(ctx, id)
		return err
	case jobTypeInvoice:
		_, err := s.renderInvoice(ctx, id)
		return err
	case jobTypeCustomInvoice:
		_, err := s.renderCustomInvoice(ctx, id)
		return err
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// CertificateFile returns the on-disk path and download filename for a
// certificate, rendering it first if needed.
func (s *DocumentService) CertificateFile(ctx context.Context, id string) (string, string, error) {
	detail, err := s.certificates.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return s.certificateFile(ctx, detail)
}

// CertificateFileByNumber resolves a certificate by its public identifier.
// Used by the signed download link handed out with verification results.
func (s *DocumentService) CertificateFileByNumber(ctx context.Context, certificateID string) (string, string, error) {
	detail, err := s.certificates.FindByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return s.certificateFile(ctx, detail)
}

func (s *DocumentService) certificateFile(ctx context.Context, detail *models.CertificateDetail) (string, string, error) {
	filename := certificateFilename(detail.CertificateID)
	if detail.PDFPath == "" || !s.store.Exists(filename) {
		if _, err := s.renderCertificate(ctx, detail.ID); err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
		}
	}
	return s.store.Path(filename), filename, nil
}

// InvoiceFile returns the on-disk path and download filename for a student
// invoice, rendering it first if needed.
func (s *DocumentService) InvoiceFile(ctx context.Context, id string) (string, string, error) {
	detail, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}

	filename := invoiceFilename(detail.InvoiceNumber)
	if detail.PDFPath == "" || !s.store.Exists(filename) {
		if _, err := s.renderInvoice(ctx, id); err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render invoice")
		}
	}
	return s.store.Path(filename), filename, nil
}

// CustomInvoiceFile returns the on-disk path and download filename for a
// custom invoice, rendering it first if needed.
func (s *DocumentService) CustomInvoiceFile(ctx context.Context, id string) (string, string, error) {
	invoice, err := s.customInvoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "custom invoice not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custom invoice")
	}

	filename := invoiceFilename(invoice.InvoiceNumber)
	if invoice.PDFPath == "" || !s.store.Exists(filename) {
		if _, err := s.renderCustomInvoice(ctx, id); err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render custom invoice")
		}
	}
	return s.store.Path(filename), filename, nil
}

func (s *DocumentService) renderCertificate(ctx context.Context, id string) (string, error) {
	detail, err := s.certificates.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load certificate %s: %w", id, err)
	}

	data := pdf.CertificateData{
		CertificateID:  detail.CertificateID,
		StudentName:    detail.StudentName,
		CourseName:     detail.CourseName,
		CourseDuration: detail.CourseDuration,
		CompletionDate: detail.CompletionDate,
		IssuedAt:       detail.IssuedAt,
	}
	if detail.BatchName != nil {
		data.BatchName = *detail.BatchName
	}
	if detail.BatchInstructor != nil {
		data.InstructorName = *detail.BatchInstructor
	}

	raw, err := s.certRenderer.Render(data)
	if err != nil {
		return "", fmt.Errorf("render certificate %s: %w", detail.CertificateID, err)
	}

	filename := certificateFilename(detail.CertificateID)
	path, err := s.store.Save(filename, raw)
	if err != nil {
		return "", fmt.Errorf("store certificate %s: %w", detail.CertificateID, err)
	}
	if err := s.certificates.UpdatePDFPath(ctx, id, filename); err != nil {
		s.logger.Warn("failed to record certificate pdf path", zap.String("id", id), zap.Error(err))
	}
	s.metrics.RecordDocumentRendered(jobTypeCertificate)
	return path, nil
}

func (s *DocumentService) renderInvoice(ctx context.Context, id string) (string, error) {
	detail, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load invoice %s: %w", id, err)
	}

	data := pdf.InvoiceData{
		InvoiceNumber:  detail.InvoiceNumber,
		RecipientName:  detail.StudentName,
		RecipientEmail: detail.StudentEmail,
		RecipientPhone: detail.StudentPhone,
		Lines: []pdf.InvoiceLine{{
			Description: courseLineDescription(detail.CourseName, detail.BatchName),
			Quantity:    1,
			UnitPrice:   detail.Amount,
		}},
		Subtotal:    detail.Amount,
		Total:       detail.Amount,
		PaymentDate: detail.PaymentDate,
		IssuedAt:    detail.CreatedAt,
		Notes:       detail.Notes,
	}

	raw, err := s.invRenderer.Render(data)
	if err != nil {
		return "", fmt.Errorf("render invoice %s: %w", detail.InvoiceNumber, err)
	}

	filename := invoiceFilename(detail.InvoiceNumber)
	path, err := s.store.Save(filename, raw)
	if err != nil {
		return "", fmt.Errorf("store invoice %s: %w", detail.InvoiceNumber, err)
	}
	if err := s.invoices.UpdatePDFPath(ctx, id, filename); err != nil {
		s.logger.Warn("failed to record invoice pdf path", zap.String("id", id), zap.Error(err))
	}
	s.metrics.RecordDocumentRendered(jobTypeInvoice)
	return path, nil
}

func (s *DocumentService) renderCustomInvoice(ctx context.Context, id string) (string, error) {
	invoice, err := s.customInvoices.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load custom invoice %s: %w", id, err)
	}

	lines := make([]pdf.InvoiceLine, 0, len(invoice.Items))
	for _, item := range invoice.Items {
		lines = append(lines, pdf.InvoiceLine{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	data := pdf.InvoiceData{
		InvoiceNumber:  invoice.InvoiceNumber,
		RecipientName:  invoice.RecipientName,
		RecipientEmail: invoice.RecipientEmail,
		RecipientPhone: invoice.RecipientPhone,
		Lines:          lines,
		Subtotal:       invoice.Subtotal,
		TaxPercentage:  invoice.TaxPercentage,
		TaxAmount:      invoice.TaxAmount,
		Discount:       invoice.Discount,
		Total:          invoice.TotalAmount,
		PaymentDate:    invoice.PaymentDate,
		IssuedAt:       invoice.CreatedAt,
		Notes:          invoice.Notes,
	}

	raw, err := s.invRenderer.Render(data)
	if err != nil {
		return "", fmt.Errorf("render custom invoice %s: %w", invoice.InvoiceNumber, err)
	}

	filename := invoiceFilename(invoice.InvoiceNumber)
	path, err := s.store.Save(filename, raw)
	if err != nil {
		return "", fmt.Errorf("store custom invoice %s: %w", invoice.InvoiceNumber, err)
	}
	if err := s.customInvoices.UpdatePDFPath(ctx, id, filename); err != nil {
		s.logger.Warn("failed to record custom invoice pdf path", zap.String("id", id), zap.Error(err))
	}
	s.metrics.RecordDocumentRendered(jobTypeCustomInvoice)
	return path, nil
}

func certificateFilename(certificateID string) string {
	return fmt.Sprintf("certificate-%s.pdf", certificateID)
}

func invoiceFilename(invoiceNumber string) string {
	return fmt.Sprintf("invoice-%s.pdf", invoiceNumber)
}

func courseLineDescription(courseName string, batchName *string) string {
	if batchName != nil && *batchName != "" {
		return fmt.Sprintf("%s (%s)", courseName, *batchName)
	}
	return courseName
}
