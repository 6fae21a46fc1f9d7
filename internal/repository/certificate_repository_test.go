package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
)

func newCertificateMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCertificateRepositoryNextCertificateID(t *testing.T) {
	db, mock, cleanup := newCertificateMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT certificate_id FROM certificates WHERE certificate_id LIKE $1 ORDER BY certificate_id DESC LIMIT 1")).
		WithArgs("CERT-2026-%").
		WillReturnRows(sqlmock.NewRows([]string{"certificate_id"}).AddRow("CERT-2026-0042"))

	next, err := repo.NextCertificateID(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-0043", next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryNextCertificateIDFirstOfYear(t *testing.T) {
	db, mock, cleanup := newCertificateMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT certificate_id FROM certificates WHERE certificate_id LIKE $1 ORDER BY certificate_id DESC LIMIT 1")).
		WithArgs("CERT-2027-%").
		WillReturnRows(sqlmock.NewRows([]string{"certificate_id"}))

	next, err := repo.NextCertificateID(context.Background(), 2027)
	require.NoError(t, err)
	assert.Equal(t, "CERT-2027-0001", next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryExistsForStudentCourse(t *testing.T) {
	db, mock, cleanup := newCertificateMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM certificates WHERE student_id = $1 AND course_id = $2)")).
		WithArgs("student-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsForStudentCourse(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByCertificateID(t *testing.T) {
	db, mock, cleanup := newCertificateMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "certificate_id", "student_id", "course_id", "batch_id", "completion_date", "issued_at", "pdf_path", "created_at",
		"student_name", "student_enrollment_date",
		"course_name", "course_description", "course_duration", "course_status", "course_fee",
		"batch_name", "batch_start_date", "batch_end_date", "batch_instructor",
	}).AddRow(
		"cert-row-1", "CERT-2026-0001", "student-1", "course-1", nil, now, now, "", now,
		"Alice", now,
		"Go Basics", "Intro course", 8, "ACTIVE", 1500.0,
		nil, nil, nil, nil,
	)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE ct.certificate_id = $1")).
		WithArgs("CERT-2026-0001").
		WillReturnRows(rows)

	detail, err := repo.FindByCertificateID(context.Background(), "CERT-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", detail.StudentName)
	assert.Nil(t, detail.BatchName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCertificateMock(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO certificates")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cert := &models.Certificate{
		CertificateID:  "CERT-2026-0001",
		StudentID:      "student-1",
		CourseID:       "course-1",
		CompletionDate: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), cert))
	assert.NotEmpty(t, cert.ID)
	assert.False(t, cert.IssuedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
