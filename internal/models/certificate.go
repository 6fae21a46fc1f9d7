package models

import "time"

// Certificate records course completion for a student. Immutable once
// issued: the API exposes no update operation.
type Certificate struct {
	ID             string    `db:"id" json:"id"`
	CertificateID  string    `db:"certificate_id" json:"certificate_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	BatchID        *string   `db:"batch_id" json:"batch_id,omitempty"`
	CompletionDate time.Time `db:"completion_date" json:"completion_date"`
	PDFPath        string    `db:"pdf_path" json:"pdf_path,omitempty"`
	IssuedAt       time.Time `db:"issued_at" json:"issued_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// CertificateDetail joins a certificate with student, course and batch context.
type CertificateDetail struct {
	Certificate
	StudentName           string     `db:"student_name" json:"student_name"`
	StudentEmail          string     `db:"student_email" json:"student_email"`
	StudentEnrollmentDate time.Time  `db:"student_enrollment_date" json:"student_enrollment_date"`
	CourseName            string     `db:"course_name" json:"course_name"`
	CourseDescription     string     `db:"course_description" json:"course_description"`
	CourseDuration        int        `db:"course_duration" json:"course_duration"`
	CourseStatus          string     `db:"course_status" json:"course_status"`
	CourseFee             float64    `db:"course_fee" json:"course_fee"`
	BatchName             *string    `db:"batch_name" json:"batch_name,omitempty"`
	BatchStartDate        *time.Time `db:"batch_start_date" json:"batch_start_date,omitempty"`
	BatchEndDate          *time.Time `db:"batch_end_date" json:"batch_end_date,omitempty"`
	BatchInstructor       *string    `db:"batch_instructor" json:"batch_instructor,omitempty"`
}

// CertificateFilter captures filtering criteria for listing certificates.
type CertificateFilter struct {
	Search    string
	StudentID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// VerifiedCertificate is the public verification payload. Batch fields are
// nil when the certificate was issued without a batch; consumers omit the
// batch block entirely in that case.
type VerifiedCertificate struct {
	CertificateID         string     `json:"certificate_id"`
	CompletionDate        time.Time  `json:"completion_date"`
	IssuedAt              time.Time  `json:"issued_at"`
	StudentName           string     `json:"student_name"`
	StudentEnrollmentDate time.Time  `json:"student_enrollment_date"`
	CourseName            string     `json:"course_name"`
	CourseDescription     string     `json:"course_description"`
	CourseDuration        int        `json:"course_duration"`
	CourseStatus          string     `json:"course_status"`
	CourseFee             float64    `json:"course_fee"`
	BatchName             *string    `json:"batch_name,omitempty"`
	BatchStartDate        *time.Time `json:"batch_start_date,omitempty"`
	BatchEndDate          *time.Time `json:"batch_end_date,omitempty"`
	BatchInstructor       *string    `json:"batch_instructor,omitempty"`
	// DownloadURL carries a short-lived signed link to the rendered PDF.
	// Set per request, never cached.
	DownloadURL string `json:"download_url,omitempty"`
}

// VerificationResult is the public verification response envelope.
type VerificationResult struct {
	Valid       bool                 `json:"valid"`
	Certificate *VerifiedCertificate `json:"certificate,omitempty"`
	Error       string               `json:"error,omitempty"`
}
