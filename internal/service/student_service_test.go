package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type mockStudentRepo struct {
	students    map[string]*models.Student
	byUserID    map[string]*models.Student
	emailExists bool
	enrollments []models.EnrollmentDetail
	enrolled    bool
	created     *models.Student
	updated     *models.Student
	deletedID   string
	newEnroll   *models.Enrollment
	summaries   map[string]models.PaymentSummary
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, student := range m.students {
		out = append(out, *student)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	student, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockStudentRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return m.emailExists, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	student.ID = "student-new"
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.updated = student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	return nil
}

func (m *mockStudentRepo) ListEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return m.enrollments, nil
}

func (m *mockStudentRepo) EnrollmentExists(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.enrolled, nil
}

func (m *mockStudentRepo) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = "enroll-1"
	m.newEnroll = enrollment
	return nil
}

func (m *mockStudentRepo) PaymentSummaries(ctx context.Context, studentIDs []string) (map[string]models.PaymentSummary, error) {
	if m.summaries == nil {
		return map[string]models.PaymentSummary{}, nil
	}
	return m.summaries, nil
}

type mockUserProvisioner struct {
	created     *models.User
	emailSynced string
	deactivated string
}

func (m *mockUserProvisioner) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	m.created = user
	return nil
}

func (m *mockUserProvisioner) UpdateEmail(ctx context.Context, id, email string) error {
	m.emailSynced = email
	return nil
}

func (m *mockUserProvisioner) Deactivate(ctx context.Context, id string) error {
	m.deactivated = id
	return nil
}

type mockCourseFinder struct {
	courses map[string]*models.Course
}

func (m *mockCourseFinder) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

type mockBatchFinder struct {
	batches map[string]*models.BatchDetail
}

func (m *mockBatchFinder) FindByID(ctx context.Context, id string) (*models.BatchDetail, error) {
	batch, ok := m.batches[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return batch, nil
}

func TestStudentServiceCreateProvisionsAccount(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserProvisioner{}
	svc := NewStudentService(repo, users, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:  "Alice",
		Email: "Alice@Example.com",
		Phone: "555-0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", student.Email)
	assert.Equal(t, "user-new", student.UserID)
	assert.False(t, student.EnrollmentDate.IsZero())

	require.NotNil(t, users.created)
	assert.Equal(t, models.RoleStudent, users.created.Role)
	assert.True(t, users.created.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.created.PasswordHash), []byte(defaultStudentPassword)))
}

func TestStudentServiceCreateWithExplicitPassword(t *testing.T) {
	repo := &mockStudentRepo{}
	users := &mockUserProvisioner{}
	svc := NewStudentService(repo, users, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "chosen-by-admin",
	})
	require.NoError(t, err)

	require.NotNil(t, users.created)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.created.PasswordHash), []byte("chosen-by-admin")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(users.created.PasswordHash), []byte(defaultStudentPassword)))
}

func TestStudentServiceCreateRejectsShortPassword(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := NewStudentService(repo, &mockUserProvisioner{}, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		Name:     "Bob",
		Email:    "bob@example.com",
		Password: "short",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockStudentRepo{emailExists: true}
	svc := NewStudentService(repo, &mockUserProvisioner{}, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{Name: "Alice", Email: "alice@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestStudentServiceEnrollDuplicateCourse(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1"}},
		enrolled: true,
	}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	svc := NewStudentService(repo, &mockUserProvisioner{}, courses, &mockBatchFinder{}, nil, nil)

	_, err := svc.Enroll(context.Background(), "student-1", EnrollStudentRequest{CourseID: "course-1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestStudentServiceEnrollBatchCourseMismatch(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"student-1": {ID: "student-1"}}}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	otherCourse := "course-2"
	batches := &mockBatchFinder{batches: map[string]*models.BatchDetail{
		"batch-1": {Batch: models.Batch{ID: "batch-1", CourseID: otherCourse}},
	}}
	svc := NewStudentService(repo, &mockUserProvisioner{}, courses, batches, nil, nil)

	batchID := "batch-1"
	_, err := svc.Enroll(context.Background(), "student-1", EnrollStudentRequest{CourseID: "course-1", BatchID: &batchID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestStudentServiceEnrollSuccess(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"student-1": {ID: "student-1"}}}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	batches := &mockBatchFinder{batches: map[string]*models.BatchDetail{
		"batch-1": {Batch: models.Batch{ID: "batch-1", CourseID: "course-1"}},
	}}
	svc := NewStudentService(repo, &mockUserProvisioner{}, courses, batches, nil, nil)

	batchID := "batch-1"
	enrollment, err := svc.Enroll(context.Background(), "student-1", EnrollStudentRequest{CourseID: "course-1", BatchID: &batchID})
	require.NoError(t, err)
	assert.Equal(t, "student-1", enrollment.StudentID)
	require.NotNil(t, enrollment.BatchID)
	assert.Equal(t, "batch-1", *enrollment.BatchID)
}

func TestStudentServiceDeleteDeactivatesAccount(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"student-1": {ID: "student-1", UserID: "user-1"}}}
	users := &mockUserProvisioner{}
	svc := NewStudentService(repo, users, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "student-1"))
	assert.Equal(t, "student-1", repo.deletedID)
	assert.Equal(t, "user-1", users.deactivated)
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		name    string
		summary models.PaymentSummary
		want    models.PaymentStatus
	}{
		{"no enrollments", models.PaymentSummary{}, models.PaymentStatusNoCourse},
		{"nothing paid", models.PaymentSummary{Enrollments: 1, TotalFees: 1000}, models.PaymentStatusUnpaid},
		{"partially paid", models.PaymentSummary{Enrollments: 1, TotalFees: 1000, TotalPaid: 400}, models.PaymentStatusPartial},
		{"fully paid", models.PaymentSummary{Enrollments: 2, TotalFees: 1000, TotalPaid: 1000}, models.PaymentStatusFullPaid},
		{"overpaid", models.PaymentSummary{Enrollments: 1, TotalFees: 1000, TotalPaid: 1200}, models.PaymentStatusFullPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, derivePaymentStatus(tc.summary))
		})
	}
}

func TestStudentServiceGetDerivesStatus(t *testing.T) {
	repo := &mockStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1", Name: "Alice"}},
		enrollments: []models.EnrollmentDetail{
			{Enrollment: models.Enrollment{ID: "enroll-1", StudentID: "student-1", CourseID: "course-1"}, CourseName: "Go Basics", CourseFee: 1000},
		},
		summaries: map[string]models.PaymentSummary{
			"student-1": {StudentID: "student-1", Enrollments: 1, TotalFees: 1000, TotalPaid: 400},
		},
	}
	svc := NewStudentService(repo, &mockUserProvisioner{}, &mockCourseFinder{}, &mockBatchFinder{}, nil, nil)

	detail, err := svc.Get(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, detail.PaymentStatus)
	assert.Equal(t, 1000.0, detail.TotalFees)
	assert.Len(t, detail.Enrollments, 1)
}
