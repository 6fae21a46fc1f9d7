package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryFindByUserID(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "name", "email", "phone", "enrollment_date", "created_at", "updated_at"}).
		AddRow("student-1", "user-1", "Alice", "alice@example.com", "555-0100", now, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(rows)

	student, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryEnrollmentExists(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)")).
		WithArgs("student-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EnrollmentExists(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateEnrollment(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{StudentID: "student-1", CourseID: "course-1"}
	require.NoError(t, repo.CreateEnrollment(context.Background(), enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryPaymentSummaries(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "total_fees", "total_paid", "enrollments"}).
		AddRow("student-1", 1500.0, 750.0, 2).
		AddRow("student-2", 0.0, 0.0, 0)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.id = ANY($1)")).
		WithArgs(pq.Array([]string{"student-1", "student-2"})).
		WillReturnRows(rows)

	summaries, err := repo.PaymentSummaries(context.Background(), []string{"student-1", "student-2"})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 1500.0, summaries["student-1"].TotalFees)
	assert.Equal(t, 750.0, summaries["student-1"].TotalPaid)
	assert.Equal(t, 0, summaries["student-2"].Enrollments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryPaymentSummariesEmpty(t *testing.T) {
	db, _, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	summaries, err := repo.PaymentSummaries(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestStudentRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM enrollments WHERE student_id = $1")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("student-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "student-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
