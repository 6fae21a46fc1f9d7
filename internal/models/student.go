package models

import "time"

// PaymentStatus classifies a student's fee payment state. Derived from
// enrolled course fees versus invoiced payments, never stored.
type PaymentStatus string

const (
	PaymentStatusFullPaid PaymentStatus = "FULL_PAID"
	PaymentStatusPartial  PaymentStatus = "PARTIAL"
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusNoCourse PaymentStatus = "NO_COURSE"
)

// Student represents a learner registered in the system. Every student is
// backed by a login user with role STUDENT.
type Student struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	EnrollmentDate time.Time `db:"enrollment_date" json:"enrollment_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment links a student to a course and optionally a batch.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	BatchID    *string   `db:"batch_id" json:"batch_id,omitempty"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail joins an enrollment with course and batch context.
type EnrollmentDetail struct {
	Enrollment
	CourseName     string  `db:"course_name" json:"course_name"`
	CourseDuration int     `db:"course_duration" json:"course_duration"`
	CourseFee      float64 `db:"course_fee" json:"course_fee"`
	BatchName      *string `db:"batch_name" json:"batch_name,omitempty"`
}

// PaymentSummary aggregates the amounts used to derive payment status.
type PaymentSummary struct {
	StudentID   string  `db:"student_id"`
	TotalFees   float64 `db:"total_fees"`
	TotalPaid   float64 `db:"total_paid"`
	Enrollments int     `db:"enrollments"`
}

// StudentDetail contains student information with enrollment and payment context.
type StudentDetail struct {
	Student
	Enrollments   []EnrollmentDetail `json:"enrollments,omitempty"`
	TotalFees     float64            `json:"total_fees"`
	TotalPaid     float64            `json:"total_paid"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
