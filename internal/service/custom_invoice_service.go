package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type customInvoiceRepository interface {
	List(ctx context.Context, filter models.CustomInvoiceFilter) ([]models.CustomInvoice, int, error)
	FindByID(ctx context.Context, id string) (*models.CustomInvoice, error)
	NextInvoiceNumber(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, invoice *models.CustomInvoice) error
	Update(ctx context.Context, invoice *models.CustomInvoice) error
	Delete(ctx context.Context, id string) error
}

type customInvoiceDocumentScheduler interface {
	ScheduleCustomInvoice(invoiceID string)
}

// CustomInvoiceRequest captures fields for creating and updating custom
// invoices. Totals are never accepted from the caller.
type CustomInvoiceRequest struct {
	RecipientName  string               `json:"recipient_name" validate:"required"`
	RecipientEmail string               `json:"recipient_email" validate:"omitempty,email"`
	RecipientPhone string               `json:"recipient_phone"`
	RecipientAddr  string               `json:"recipient_address"`
	Items          []models.InvoiceItem `json:"items" validate:"required,min=1,dive"`
	TaxPercentage  float64              `json:"tax_percentage" validate:"gte=0,lte=100"`
	Discount       float64              `json:"discount" validate:"gte=0"`
	PaymentDate    time.Time            `json:"payment_date"`
	Notes          string               `json:"notes"`
}

// CustomInvoiceService handles free-form invoice workflows.
type CustomInvoiceService struct {
	repo      customInvoiceRepository
	documents customInvoiceDocumentScheduler
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCustomInvoiceService creates a new custom invoice service.
func NewCustomInvoiceService(repo customInvoiceRepository, documents customInvoiceDocumentScheduler, validate *validator.Validate, logger *zap.Logger) *CustomInvoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomInvoiceService{
		repo:      repo,
		documents: documents,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated custom invoices.
func (s *CustomInvoiceService) List(ctx context.Context, filter models.CustomInvoiceFilter) ([]models.CustomInvoice, *models.Pagination, error) {
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list custom invoices")
	}
	return invoices, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a custom invoice by identifier.
func (s *CustomInvoiceService) Get(ctx context.Context, id string) (*models.CustomInvoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "custom invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custom invoice")
	}
	return invoice, nil
}

// Create issues a custom invoice with server-computed totals.
func (s *CustomInvoiceService) Create(ctx context.Context, req CustomInvoiceRequest) (*models.CustomInvoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid custom invoice payload")
	}

	number, err := s.repo.NextInvoiceNumber(ctx, s.now().Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign invoice number")
	}

	invoice := &models.CustomInvoice{InvoiceNumber: number}
	s.applyRequest(invoice, req)

	if invoice.TotalAmount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds the invoice total")
	}

	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create custom invoice")
	}

	if s.documents != nil {
		s.documents.ScheduleCustomInvoice(invoice.ID)
	}
	return invoice, nil
}

// Update rewrites a custom invoice and recomputes its totals. The invoice
// number never changes.
func (s *CustomInvoiceService) Update(ctx context.Context, id string, req CustomInvoiceRequest) (*models.CustomInvoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid custom invoice payload")
	}

	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "custom invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custom invoice")
	}

	s.applyRequest(invoice, req)

	if invoice.TotalAmount < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "discount exceeds the invoice total")
	}

	// The stored document is stale after an update.
	invoice.PDFPath = ""

	if err := s.repo.Update(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update custom invoice")
	}

	if s.documents != nil {
		s.documents.ScheduleCustomInvoice(invoice.ID)
	}
	return invoice, nil
}

// Delete removes a custom invoice.
func (s *CustomInvoiceService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "custom invoice not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custom invoice")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete custom invoice")
	}
	return nil
}

func (s *CustomInvoiceService) applyRequest(invoice *models.CustomInvoice, req CustomInvoiceRequest) {
	paymentDate := req.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = s.now()
	}

	invoice.RecipientName = strings.TrimSpace(req.RecipientName)
	invoice.RecipientEmail = strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	invoice.RecipientPhone = strings.TrimSpace(req.RecipientPhone)
	invoice.RecipientAddr = strings.TrimSpace(req.RecipientAddr)
	invoice.Items = req.Items
	invoice.TaxPercentage = req.TaxPercentage
	invoice.Discount = req.Discount
	invoice.PaymentDate = paymentDate
	invoice.Notes = strings.TrimSpace(req.Notes)

	invoice.Subtotal = roundMoney(sumItems(req.Items))
	invoice.TaxAmount = roundMoney(invoice.Subtotal * req.TaxPercentage / 100)
	invoice.TotalAmount = roundMoney(invoice.Subtotal + invoice.TaxAmount - req.Discount)
}

func sumItems(items []models.InvoiceItem) float64 {
	var subtotal float64
	for _, item := range items {
		subtotal += float64(item.Quantity) * item.UnitPrice
	}
	return subtotal
}

// roundMoney keeps stored amounts at two decimal places.
func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
