package models

import "time"

// Batch represents a scheduled run of a course.
type Batch struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	CourseID       string    `db:"course_id" json:"course_id"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	InstructorName string    `db:"instructor_name" json:"instructor_name"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BatchDetail contains batch information with its course context.
type BatchDetail struct {
	Batch
	CourseName *string `db:"course_name" json:"course_name,omitempty"`
}

// BatchFilter captures filtering criteria for listing batches.
type BatchFilter struct {
	Search    string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
