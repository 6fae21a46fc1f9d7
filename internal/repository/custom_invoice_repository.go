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

// CustomInvoiceRepository manages persistence for free-form invoices.
type CustomInvoiceRepository struct {
	db *sqlx.DB
}

// NewCustomInvoiceRepository constructs a CustomInvoiceRepository.
func NewCustomInvoiceRepository(db *sqlx.DB) *CustomInvoiceRepository {
	return &CustomInvoiceRepository{db: db}
}

// List returns custom invoices matching the provided filters.
func (r *CustomInvoiceRepository) List(ctx context.Context, filter models.CustomInvoiceFilter) ([]models.CustomInvoice, int, error) {
	base := "FROM custom_invoices ci"
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(ci.invoice_number) LIKE $%d OR LOWER(ci.recipient_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("ci.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("ci.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"invoice_number": "ci.invoice_number",
		"payment_date":   "ci.payment_date",
		"total_amount":   "ci.total_amount",
		"created_at":     "ci.created_at",
	}
	column, order := sortClause(allowedSorts, filter.SortBy, filter.SortOrder, "ci.created_at")
	size, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT ci.id, ci.invoice_number, ci.recipient_name, ci.recipient_email, ci.recipient_phone, ci.recipient_address,
        ci.items, ci.subtotal, ci.tax_percentage, ci.tax_amount, ci.discount, ci.total_amount,
        ci.payment_date, ci.notes, ci.pdf_path, ci.created_at, ci.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var invoices []models.CustomInvoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list custom invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count custom invoices: %w", err)
	}
	return invoices, total, nil
}

// FindByID fetches a custom invoice by primary key.
func (r *CustomInvoiceRepository) FindByID(ctx context.Context, id string) (*models.CustomInvoice, error) {
	const query = `SELECT id, invoice_number, recipient_name, recipient_email, recipient_phone, recipient_address,
        items, subtotal, tax_percentage, tax_amount, discount, total_amount,
        payment_date, notes, pdf_path, created_at, updated_at
        FROM custom_invoices WHERE id = $1`
	var invoice models.CustomInvoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// NextInvoiceNumber reserves the next sequential number for the given year.
// Custom invoices share the INV- numbering series with student invoices.
func (r *CustomInvoiceRepository) NextInvoiceNumber(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("INV-%d-", year)
	const query = `SELECT number FROM (
            SELECT invoice_number AS number FROM invoices WHERE invoice_number LIKE $1
            UNION ALL
            SELECT invoice_number AS number FROM custom_invoices WHERE invoice_number LIKE $1
        ) numbers ORDER BY number DESC LIMIT 1`
	var last string
	err := r.db.GetContext(ctx, &last, query, prefix+"%")
	switch {
	case err == sql.ErrNoRows:
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	case err != nil:
		return "", fmt.Errorf("next custom invoice number: %w", err)
	}
	seq, err := parseSequence(last, prefix)
	if err != nil {
		return "", fmt.Errorf("next custom invoice number: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Create inserts a new custom invoice.
func (r *CustomInvoiceRepository) Create(ctx context.Context, invoice *models.CustomInvoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invoice.CreatedAt.IsZero() {
		invoice.CreatedAt = now
	}
	invoice.UpdatedAt = now
	const query = `INSERT INTO custom_invoices (id, invoice_number, recipient_name, recipient_email, recipient_phone, recipient_address,
        items, subtotal, tax_percentage, tax_amount, discount, total_amount, payment_date, notes, pdf_path, created_at, updated_at)
        VALUES (:id, :invoice_number, :recipient_name, :recipient_email, :recipient_phone, :recipient_address,
        :items, :subtotal, :tax_percentage, :tax_amount, :discount, :total_amount, :payment_date, :notes, :pdf_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create custom invoice: %w", err)
	}
	return nil
}

// Update rewrites an existing custom invoice, totals included.
func (r *CustomInvoiceRepository) Update(ctx context.Context, invoice *models.CustomInvoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	const query = `UPDATE custom_invoices SET recipient_name = :recipient_name, recipient_email = :recipient_email,
        recipient_phone = :recipient_phone, recipient_address = :recipient_address,
        items = :items, subtotal = :subtotal, tax_percentage = :tax_percentage, tax_amount = :tax_amount,
        discount = :discount, total_amount = :total_amount, payment_date = :payment_date,
        notes = :notes, pdf_path = :pdf_path, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("update custom invoice: %w", err)
	}
	return nil
}

// UpdatePDFPath records the stored document once rendering completes.
func (r *CustomInvoiceRepository) UpdatePDFPath(ctx context.Context, id, path string) error {
	const query = `UPDATE custom_invoices SET pdf_path = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, path, id); err != nil {
		return fmt.Errorf("update custom invoice pdf path: %w", err)
	}
	return nil
}

// Delete removes a custom invoice.
func (r *CustomInvoiceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM custom_invoices WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete custom invoice: %w", err)
	}
	return nil
}
