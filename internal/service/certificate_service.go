package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type certificateRepository interface {
	List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CertificateDetail, error)
	ExistsForStudentCourse(ctx context.Context, studentID, courseID string) (bool, error)
	NextCertificateID(ctx context.Context, year int) (string, error)
	Create(ctx context.Context, certificate *models.Certificate) error
	Delete(ctx context.Context, id string) error
}

type certificateStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	EnrollmentExists(ctx context.Context, studentID, courseID string) (bool, error)
}

type certificateCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type certificateBatchRepository interface {
	FindByID(ctx context.Context, id string) (*models.BatchDetail, error)
}

type certificateDocumentScheduler interface {
	ScheduleCertificate(certificateID string)
}

type certificateCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// IssueCertificateRequest captures fields for issuing a certificate.
type IssueCertificateRequest struct {
	StudentID      string    `json:"student_id" validate:"required"`
	CourseID       string    `json:"course_id" validate:"required"`
	BatchID        *string   `json:"batch_id"`
	CompletionDate time.Time `json:"completion_date" validate:"required"`
}

// CertificateService handles certificate issuance. Certificates are
// immutable once created.
type CertificateService struct {
	repo      certificateRepository
	students  certificateStudentRepository
	courses   certificateCourseRepository
	batches   certificateBatchRepository
	documents certificateDocumentScheduler
	cache     certificateCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCertificateService creates a new certificate service.
func NewCertificateService(repo certificateRepository, students certificateStudentRepository, courses certificateCourseRepository, batches certificateBatchRepository, documents certificateDocumentScheduler, cache certificateCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		repo:      repo,
		students:  students,
		courses:   courses,
		batches:   batches,
		documents: documents,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns paginated certificates.
func (s *CertificateService) List(ctx context.Context, filter models.CertificateFilter) ([]models.CertificateDetail, *models.Pagination, error) {
	certificates, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certificates, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a certificate by identifier.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.CertificateDetail, error) {
	certificate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return certificate, nil
}

// ListForUser returns certificates belonging to the student linked to a
// login account.
func (s *CertificateService) ListForUser(ctx context.Context, userID string) ([]models.CertificateDetail, error) {
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	certificates, _, err := s.repo.List(ctx, models.CertificateFilter{StudentID: student.ID, PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certificates, nil
}

// OwnedByUser reports whether a certificate belongs to the student linked
// to the given login account.
func (s *CertificateService) OwnedByUser(ctx context.Context, id, userID string) (bool, error) {
	certificate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	student, err := s.students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return certificate.StudentID == student.ID, nil
}

// Delete revokes an issued certificate. The verification cache entry is
// dropped so public lookups stop validating it right away.
func (s *CertificateService) Delete(ctx context.Context, id string) error {
	certificate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete certificate")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "verify:"+certificate.CertificateID); err != nil {
			s.logger.Warn("failed to invalidate verification cache", zap.Error(err))
		}
	}
	return nil
}

// Issue creates a certificate for a student's completed course. A student
// holds at most one certificate per course.
func (s *CertificateService) Issue(ctx context.Context, req IssueCertificateRequest) (*models.CertificateDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	enrolled, err := s.students.EnrollmentExists(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this course")
	}

	if req.BatchID != nil && *req.BatchID != "" {
		batch, err := s.batches.FindByID(ctx, *req.BatchID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "batch not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}
		if batch.CourseID != course.ID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "batch does not belong to the selected course")
		}
	} else {
		req.BatchID = nil
	}

	exists, err := s.repo.ExistsForStudentCourse(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a certificate already exists for this student and course")
	}

	certificateID, err := s.repo.NextCertificateID(ctx, s.now().Year())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign certificate id")
	}

	certificate := &models.Certificate{
		CertificateID:  certificateID,
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		BatchID:        req.BatchID,
		CompletionDate: req.CompletionDate,
		IssuedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "verify:"+certificate.CertificateID); err != nil {
			s.logger.Warn("failed to invalidate verification cache", zap.Error(err))
		}
	}
	if s.documents != nil {
		s.documents.ScheduleCertificate(certificate.ID)
	}

	return s.Get(ctx, certificate.ID)
}
