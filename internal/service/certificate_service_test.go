package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type mockCertificateRepo struct {
	details   map[string]*models.CertificateDetail
	exists    bool
	nextID    string
	created   *models.Certificate
	deletedID string
}

func (m *mockCertificateRepo) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateDetail, int, error) {
	var out []models.CertificateDetail
	for _, detail := range m.details {
		out = append(out, *detail)
	}
	return out, len(out), nil
}

func (m *mockCertificateRepo) FindByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	if detail, ok := m.details[id]; ok {
		return detail, nil
	}
	if m.created != nil && m.created.ID == id {
		return &models.CertificateDetail{Certificate: *m.created, StudentName: "Alice"}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertificateRepo) ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.exists, nil
}

func (m *mockCertificateRepo) NextCertificateID(ctx context.Context, year int) (string, error) {
	return m.nextID, nil
}

func (m *mockCertificateRepo) Create(ctx context.Context, certificate *models.Certificate) error {
	certificate.ID = "cert-row-1"
	m.created = certificate
	return nil
}

func (m *mockCertificateRepo) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	delete(m.details, id)
	return nil
}

type mockCertStudentRepo struct {
	students map[string]*models.Student
	enrolled bool
}

func (m *mockCertStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (m *mockCertStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	for _, student := range m.students {
		if student.UserID == userID {
			return student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCertStudentRepo) EnrollmentExists(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.enrolled, nil
}

type mockCacheInvalidator struct {
	patterns []string
}

func (m *mockCacheInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func newCertServiceFixture(exists bool) (*CertificateService, *mockCertificateRepo, *mockDocumentScheduler, *mockCacheInvalidator) {
	repo := &mockCertificateRepo{exists: exists, nextID: "CERT-2026-0010"}
	students := &mockCertStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1", UserID: "user-1"}},
		enrolled: true,
	}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	batches := &mockBatchFinder{batches: map[string]*models.BatchDetail{
		"batch-1": {Batch: models.Batch{ID: "batch-1", CourseID: "course-1"}},
	}}
	docs := &mockDocumentScheduler{}
	cache := &mockCacheInvalidator{}
	svc := NewCertificateService(repo, students, courses, batches, docs, cache, nil, nil)
	return svc, repo, docs, cache
}

func TestCertificateServiceIssueSuccess(t *testing.T) {
	svc, repo, docs, cache := newCertServiceFixture(false)

	batchID := "batch-1"
	detail, err := svc.Issue(context.Background(), IssueCertificateRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		BatchID:        &batchID,
		CompletionDate: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-0010", detail.CertificateID)
	assert.Equal(t, []string{"cert-row-1"}, docs.certificateIDs)
	assert.Equal(t, []string{"verify:CERT-2026-0010"}, cache.patterns)
	assert.False(t, repo.created.IssuedAt.IsZero())
}

func TestCertificateServiceIssueDuplicate(t *testing.T) {
	svc, _, _, _ := newCertServiceFixture(true)

	_, err := svc.Issue(context.Background(), IssueCertificateRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		CompletionDate: time.Now(),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCertificateServiceIssueRequiresEnrollment(t *testing.T) {
	repo := &mockCertificateRepo{nextID: "CERT-2026-0011"}
	students := &mockCertStudentRepo{
		students: map[string]*models.Student{"student-1": {ID: "student-1"}},
		enrolled: false,
	}
	courses := &mockCourseFinder{courses: map[string]*models.Course{"course-1": {ID: "course-1"}}}
	svc := NewCertificateService(repo, students, courses, &mockBatchFinder{}, nil, nil, nil, nil)

	_, err := svc.Issue(context.Background(), IssueCertificateRequest{
		StudentID:      "student-1",
		CourseID:       "course-1",
		CompletionDate: time.Now(),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCertificateServiceDeleteDropsVerificationCache(t *testing.T) {
	svc, repo, _, cache := newCertServiceFixture(false)
	repo.details = map[string]*models.CertificateDetail{
		"cert-row-1": {Certificate: models.Certificate{ID: "cert-row-1", CertificateID: "CERT-2026-0003", StudentID: "student-1"}},
	}

	require.NoError(t, svc.Delete(context.Background(), "cert-row-1"))
	assert.Equal(t, "cert-row-1", repo.deletedID)
	assert.Equal(t, []string{"verify:CERT-2026-0003"}, cache.patterns)
}

func TestCertificateServiceDeleteUnknown(t *testing.T) {
	svc, _, _, _ := newCertServiceFixture(false)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCertificateServiceOwnedByUser(t *testing.T) {
	svc, repo, _, _ := newCertServiceFixture(false)
	repo.details = map[string]*models.CertificateDetail{
		"cert-row-1": {Certificate: models.Certificate{ID: "cert-row-1", CertificateID: "CERT-2026-0003", StudentID: "student-1"}},
	}

	owned, err := svc.OwnedByUser(context.Background(), "cert-row-1", "user-1")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = svc.OwnedByUser(context.Background(), "cert-row-1", "someone-else")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestCertificateServiceIssueBatchMismatch(t *testing.T) {
	svc, _, _, _ := newCertServiceFixture(false)

	// batch-1 belongs to course-1; issuing against a different course must fail
	repoBatches := "batch-1"
	_, err := svc.Issue(context.Background(), IssueCertificateRequest{
		StudentID:      "student-1",
		CourseID:       "course-2",
		BatchID:        &repoBatches,
		CompletionDate: time.Now(),
	})
	require.Error(t, err)
}
