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

// CertificateRepository manages persistence for completion certificates.
// Certificates are immutable once issued: only the rendered document path
// may change after creation.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateSelect = `SELECT ct.id, ct.certificate_id, ct.student_id, ct.course_id, ct.batch_id, ct.completion_date, ct.issued_at, ct.pdf_path, ct.created_at,
    s.name AS student_name, s.enrollment_date AS student_enrollment_date,
    c.name AS course_name, c.description AS course_description, c.duration AS course_duration, c.status AS course_status, c.fee AS course_fee,
    b.name AS batch_name, b.start_date AS batch_start_date, b.end_date AS batch_end_date, b.instructor_name AS batch_instructor
    FROM certificates ct
    JOIN students s ON s.id = ct.student_id
    JOIN courses c ON c.id = ct.course_id
    LEFT JOIN batches b ON b.id = ct.batch_id`

// List returns certificates matching the provided filters.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateDetail, int, error) {
	base := `FROM certificates ct
        JOIN students s ON s.id = ct.student_id
        JOIN courses c ON c.id = ct.course_id
        LEFT JOIN batches b ON b.id = ct.batch_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("ct.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(ct.certificate_id) LIKE $%d OR LOWER(s.name) LIKE $%d OR LOWER(c.name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"certificate_id":  "ct.certificate_id",
		"completion_date": "ct.completion_date",
		"issued_at":       "ct.issued_at",
		"created_at":      "ct.created_at",
	}
	column, order := sortClause(allowedSorts, filter.SortBy, filter.SortOrder, "ct.issued_at")
	size, offset := pageClause(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", certificateSelect, where, column, order, size, offset)

	var certificates []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certificates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}
	return certificates, total, nil
}

// FindByID fetches a certificate by primary key.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	query := certificateSelect + " WHERE ct.id = $1"
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByCertificateID fetches a certificate by its public identifier.
func (r *CertificateRepository) FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error) {
	query := certificateSelect + " WHERE ct.certificate_id = $1"
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, certificateID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentCourse reports whether the student already holds a
// certificate for the course.
func (r *CertificateRepository) ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM certificates WHERE student_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return exists, nil
}

// NextCertificateID reserves the next sequential certificate identifier for
// the given year.
func (r *CertificateRepository) NextCertificateID(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("CERT-%d-", year)
	const query = `SELECT certificate_id FROM certificates WHERE certificate_id LIKE $1 ORDER BY certificate_id DESC LIMIT 1`
	var last string
	err := r.db.GetContext(ctx, &last, query, prefix+"%")
	switch {
	case err == sql.ErrNoRows:
		return fmt.Sprintf("%s%04d", prefix, 1), nil
	case err != nil:
		return "", fmt.Errorf("next certificate id: %w", err)
	}
	seq, err := parseSequence(last, prefix)
	if err != nil {
		return "", fmt.Errorf("next certificate id: %w", err)
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1), nil
}

// Create issues a new certificate.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	if certificate.ID == "" {
		certificate.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if certificate.IssuedAt.IsZero() {
		certificate.IssuedAt = now
	}
	if certificate.CreatedAt.IsZero() {
		certificate.CreatedAt = now
	}
	const query = `INSERT INTO certificates (id, certificate_id, student_id, course_id, batch_id, completion_date, issued_at, pdf_path, created_at)
        VALUES (:id, :certificate_id, :student_id, :course_id, :batch_id, :completion_date, :issued_at, :pdf_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, certificate); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// UpdatePDFPath records the stored document once rendering completes.
func (r *CertificateRepository) UpdatePDFPath(ctx context.Context, id, path string) error {
	const query = `UPDATE certificates SET pdf_path = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, path, id); err != nil {
		return fmt.Errorf("update certificate pdf path: %w", err)
	}
	return nil
}

// Delete removes a certificate. Issued numbers are never reused.
func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM certificates WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}
