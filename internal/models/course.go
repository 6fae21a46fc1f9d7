package models

import "time"

// CourseStatus marks whether a course accepts new enrollments.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "ACTIVE"
	CourseStatusInactive CourseStatus = "INACTIVE"
)

// Course represents an educational course offered by the institution.
type Course struct {
	ID          string       `db:"id" json:"id"`
	Name        string       `db:"name" json:"name"`
	Description string       `db:"description" json:"description"`
	Duration    int          `db:"duration" json:"duration"`
	Fee         float64      `db:"fee" json:"fee"`
	Status      CourseStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures filtering criteria for listing courses.
type CourseFilter struct {
	Search    string
	Status    *CourseStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
