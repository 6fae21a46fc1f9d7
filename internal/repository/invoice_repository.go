package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/sms-api/internal/models"
)

// InvoiceRepository manages persistence for student payment invoices.
// Invoices are append-only: there are no update or delete statements here.
type InvoiceRepository struct {
	db *sqlx.DB
}

// NewInvoiceRepository constructs an InvoiceRepository.
func NewInvoiceRepository(db *sqlx.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// List returns invoices matching the provided filters.
func (r *InvoiceRepository) List(ctx context.Context, filter models.InvoiceFilter) ([]models.InvoiceDetail, int, error) {
	base := `FROM invoices i
        JOIN students s ON s.id = i.student_id
        JOIN courses c ON c.id = i.course_id
        LEFT JOIN batches b ON b.id = i.batch_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("i.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("i.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(i.invoice_number) LIKE $%d OR LOWER(s.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"invoice_number": "i.invoice_number",
		"payment_date":   "i.payment_date",
		"amount":         "i.amount",
		"created_at":     "i.created_at",
	}
	column, order := sortClause(allowedSorts, filter.SortBy, filter.SortOrder, "i.created_at")
	size, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT i.id, i.invoice_number, i.student_id, i.course_id, i.batch_id, i.amount, i.payment_date, i.payment_method, i.notes, i.pdf_path, i.created_at,
        s.name AS student_name, c.name AS course_name, b.name AS batch_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	return invoices, total, nil
}

// FindByID fetches an invoice with its student, course and batch context.
func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	const query = `SELECT i.id, i.invoice_number, i.student_id, i.course_id, i.batch_id, i.amount, i.payment_date, i.payment_method, i.notes, i.pdf_path, i.created_at,
        s.name AS student_name, s.email AS student_email, s.phone AS student_phone,
        c.name AS course_name, c.duration AS course_duration, b.name AS batch_name
        FROM invoices i
        JOIN students s ON s.id = i.student_id
        JOIN courses c ON c.id = i.course_id
        LEFT JOIN batches b ON b.id = i.batch_id
        WHERE i.id = $1`
	var detail models.InvoiceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns every invoice recorded against a student.
func (r *InvoiceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.InvoiceDetail, error) {
	const query = `SELECT i.id, i.invoice_number, i.student_id, i.course_id, i.batch_id, i.amount, i.payment_date, i.payment_method, i.notes, i.pdf_path, i.created_at,
        s.name AS student_name, c.name AS course_name, b.name AS batch_name
        FROM invoices i
        JOIN students s ON s.id = i.student_id
        JOIN courses c ON c.id = i.course_id
        LEFT JOIN batches b ON b.id = i.batch_id
        WHERE i.student_id = $1
        ORDER BY i.payment_date DESC`
	var invoices []models.InvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, studentID); err != nil {
		return nil, fmt.Errorf("list student invoices: %w", err)
	}
	return invoices, nil
}

// NextInvoiceNumber reserves the next sequential invoice number for the given year.
func (r *InvoiceRepository) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	const query = `SELECT invoice_number FROM invoices WHERE invoice_number LIKE $1 ORDER BY invoice_number DESC LIMIT 1`
	var last string
	err := r.db.GetContext(ctx, &last, query, prefix+"%")
	switch {
	case err == sql.ErrNoRows:
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	case err != nil:
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	seq, err := parseSequence(last, prefix)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Create appends a new invoice.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO invoices (id, invoice_number, student_id, course_id, batch_id, amount, payment_date, payment_method, notes, pdf_path, created_at)
        VALUES (:id, :invoice_number, :student_id, :course_id, :batch_id, :amount, :payment_date, :payment_method, :notes, :pdf_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// UpdatePDFPath records the stored document once rendering completes.
func (r *InvoiceRepository) UpdatePDFPath(ctx context.Context, id, path string) error {
	const query = `UPDATE invoices SET pdf_path = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, path, id); err != nil {
		return fmt.Errorf("update invoice pdf path: %w", err)
	}
	return nil
}
