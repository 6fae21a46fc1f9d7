package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type invoiceRepository interface {
	List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.InvoiceDetail, error)
	NextInvoiceNumber(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, invoice *models.Invoice) error
}

type invoiceStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type invoiceCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type invoiceBatchRepository interface {
	FindByID(ctx context.Context, id string) (*models.BatchDetail, error)
}

type invoiceDocumentScheduler interface {
	ScheduleInvoice(invoiceID string)
}

// CreateInvoiceRequest records a payment against a student's course.
type CreateInvoiceRequest struct {
	StudentID     string    `json:"student_id" validate:"required"`
	CourseID      string    `json:"course_id" validate:"required"`
	BatchID       *string   `json:"batch_id"`
	Amount        float64   `json:"amount" validate:"required,gt=0"`
	PaymentDate   time.Time `json:"payment_date"`
	PaymentMethod string    `json:"payment_method" validate:"required,oneof=CASH BANK_TRANSFER CARD ONLINE"`
	Notes         string    `json:"notes"`
}

// InvoiceService handles student payment invoice workflows. Invoices are
// append-only: corrections are made by issuing another invoice.
type InvoiceService struct {
	repo      invoiceRepository
	students  invoiceStudentRepository
	courses   invoiceCourseRepository
	batches   invoiceBatchRepository
	documents invoiceDocumentScheduler
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(repo invoiceRepository, students invoiceStudentRepository, courses invoiceCourseRepository, batches invoiceBatchRepository, documents invoiceDocumentScheduler, validate *validator.Validate, logger *zap.Logger) *InvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		repo:      repo,
		students:  students,
		courses:   courses,
		batches:   batches,
		documents: documents,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated invoices.
func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, *models.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns an invoice by identifier.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

// OwnedByUser reports whether an invoice belongs to the student linked to
// the given login account.
func (s *InvoiceService) OwnedByUser(ctx context.Context, invoiceID, userID string) (bool, error) {
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return invoice.StudentID == student.ID, nil
}

// ListForStudent returns every invoice recorded against a student.
func (s *InvoiceService) ListForStudent(ctx context.Context, studentID string) ([]models.InvoiceDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	invoices, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, nil
}

// ListForUser returns invoices belonging to the student linked to a login
// account. Used by student-scoped routes.
func (s *InvoiceService) ListForUser(ctx context.Context, userID string) ([]models.InvoiceDetail, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	invoices, err := s.repo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	return invoices, nil
}

// Create records a payment and assigns the next invoice number for the
// current year.
func (s *InvoiceService) Create(ctx context.Context, req CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.BatchID != nil && *req.BatchID != "" {
		batch, err := s.batches.FindByID(ctx, *req.BatchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}
		if batch.CourseID != course.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "batch does not belong to the selected course")
		}
	} else {
		req.BatchID = nil
	}

	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	number, err := s.repo.NextInvoiceNumber(ctx, s.now().Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign invoice number")
	}

	invoice := &models.Invoice{
		InvoiceNumber: number,
		StudentID:     req.StudentID,
		CourseID:      req.CourseID,
		BatchID:       req.BatchID,
		Amount:        req.Amount,
		PaymentDate:   paymentDate,
		PaymentMethod: req.PaymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}

	if s.documents != nil {
		s.documents.ScheduleInvoice(invoice.ID)
	}
	return invoice, nil
}
