package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Invoice records a student's course payment. Append-only: the API exposes
// no update or delete for student invoices.
type Invoice struct {
	ID            string    `db:"id" json:"id"`
	InvoiceNumber string    `db:"invoice_number" json:"invoice_number"`
	StudentID     string    `db:"student_id" json:"student_id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	BatchID       *string   `db:"batch_id" json:"batch_id,omitempty"`
	Amount        float64   `db:"amount" json:"amount"`
	PaymentDate   time.Time `db:"payment_date" json:"payment_date"`
	PaymentMethod string    `db:"payment_method" json:"payment_method"`
	Notes         string    `db:"notes" json:"notes,omitempty"`
	PDFPath       string    `db:"pdf_path" json:"pdf_path,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// InvoiceDetail joins an invoice with student, course and batch context.
type InvoiceDetail struct {
	Invoice
	StudentName    string  `db:"student_name" json:"student_name"`
	StudentEmail   string  `db:"student_email" json:"student_email"`
	StudentPhone   string  `db:"student_phone" json:"student_phone"`
	CourseName     string  `db:"course_name" json:"course_name"`
	CourseDuration int     `db:"course_duration" json:"course_duration"`
	BatchName      *string `db:"batch_name" json:"batch_name,omitempty"`
}

// InvoiceFilter captures filtering criteria for listing invoices.
type InvoiceFilter struct {
	Search    string
	StudentID string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// InvoiceItem is a free-form billed line on a custom invoice.
type InvoiceItem struct {
	Description string  `json:"description" validate:"required"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gt=0"`
}

// InvoiceItems is stored as a JSONB column.
type InvoiceItems []InvoiceItem

// Value implements driver.Valuer for JSONB storage.
func (i InvoiceItems) Value() (interface{}, error) {
	return json.Marshal(i)
}

// Scan implements sql.Scanner for JSONB storage.
func (i *InvoiceItems) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, i)
	case string:
		return json.Unmarshal([]byte(v), i)
	case nil:
		*i = nil
		return nil
	default:
		return fmt.Errorf("unsupported items column type %T", src)
	}
}

// CustomInvoice is an admin-issued invoice to any recipient with free-form
// line items. Unlike student invoices it supports update and delete.
type CustomInvoice struct {
	ID             string       `db:"id" json:"id"`
	InvoiceNumber  string       `db:"invoice_number" json:"invoice_number"`
	RecipientName  string       `db:"recipient_name" json:"recipient_name"`
	RecipientEmail string       `db:"recipient_email" json:"recipient_email"`
	RecipientPhone string       `db:"recipient_phone" json:"recipient_phone"`
	RecipientAddr  string       `db:"recipient_address" json:"recipient_address,omitempty"`
	Items          InvoiceItems `db:"items" json:"items"`
	Subtotal       float64      `db:"subtotal" json:"subtotal"`
	TaxPercentage  float64      `db:"tax_percentage" json:"tax_percentage"`
	TaxAmount      float64      `db:"tax_amount" json:"tax_amount"`
	Discount       float64      `db:"discount" json:"discount"`
	TotalAmount    float64      `db:"total_amount" json:"total_amount"`
	PaymentDate    time.Time    `db:"payment_date" json:"payment_date"`
	Notes          string       `db:"notes" json:"notes,omitempty"`
	PDFPath        string       `db:"pdf_path" json:"pdf_path,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// CustomInvoiceFilter captures filtering criteria for listing custom invoices.
type CustomInvoiceFilter struct {
	Search    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
