package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

// defaultStudentPassword seeds newly provisioned student accounts. Students
// are expected to change it on first login.
const defaultStudentPassword = "student123"

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	ListEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	EnrollmentExists(ctx context.Context, studentID, courseID string) (bool, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	PaymentSummaries(ctx context.Context, studentIDs []string) (map[string]models.PaymentSummary, error)
}

type studentUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	UpdateEmail(ctx context.Context, id, email string) error
	Deactivate(ctx context.Context, id string) error
}

type studentCourseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type studentBatchRepository interface {
	FindByID(ctx context.Context, id string) (*models.BatchDetail, error)
}

// CreateStudentRequest captures fields for registering students. Password
// is optional; accounts created without one get the default password.
type CreateStudentRequest struct {
	Name           string    `json:"name" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone"`
	Password       string    `json:"password" validate:"omitempty,min=8"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

// UpdateStudentRequest modifies student fields.
type UpdateStudentRequest struct {
	Name           string    `json:"name" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone"`
	EnrollmentDate time.Time `json:"enrollment_date"`
}

// EnrollStudentRequest links a student to a course.
type EnrollStudentRequest struct {
	CourseID string  `json:"course_id" validate:"required"`
	BatchID  *string `json:"batch_id"`
}

// StudentService handles student registration, enrollment and payment state.
type StudentService struct {
	repo      studentRepository
	users     studentUserRepository
	courses   studentCourseRepository
	batches   studentBatchRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a new student service.
func NewStudentService(repo studentRepository, users studentUserRepository, courses studentCourseRepository, batches studentBatchRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, users: users, courses: courses, batches: batches, validator: validate, logger: logger}
}

// List returns paginated students with derived payment status.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	ids := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	summaries, err := s.repo.PaymentSummaries(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment summaries")
	}

	details := make([]models.StudentDetail, 0, len(students))
	for _, student := range students {
		summary := summaries[student.ID]
		details = append(details, models.StudentDetail{
			Student:       student,
			TotalFees:     summary.TotalFees,
			TotalPaid:     summary.TotalPaid,
			PaymentStatus: derivePaymentStatus(summary),
		})
	}
	return details, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a student with enrollments and payment context.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.buildDetail(ctx, student)
}

// GetByUserID returns the student linked to a login account. Used by
// student-scoped routes where the caller only knows their own user ID.
func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.buildDetail(ctx, student)
}

// Create registers a student and provisions their login account.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
	}

	password := req.Password
	if password == "" {
		password = defaultStudentPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision student account")
	}

	enrollmentDate := req.EnrollmentDate
	if enrollmentDate.IsZero() {
		enrollmentDate = time.Now().UTC()
	}

	student := &models.Student{
		UserID:         user.ID,
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		Phone:          strings.TrimSpace(req.Phone),
		EnrollmentDate: enrollmentDate,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student, keeping the login email in sync.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this email already exists")
	}

	emailChanged := student.Email != req.Email
	student.Name = strings.TrimSpace(req.Name)
	student.Email = req.Email
	student.Phone = strings.TrimSpace(req.Phone)
	if !req.EnrollmentDate.IsZero() {
		student.EnrollmentDate = req.EnrollmentDate
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	if emailChanged {
		if err := s.users.UpdateEmail(ctx, student.UserID, student.Email); err != nil {
			s.logger.Warn("failed to sync login email", zap.String("student_id", id), zap.Error(err))
		}
	}
	return student, nil
}

// Delete removes a student and deactivates their login account.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if err := s.users.Deactivate(ctx, student.UserID); err != nil {
		s.logger.Warn("failed to deactivate login account", zap.String("student_id", id), zap.Error(err))
	}
	return nil
}

// Enroll links a student to a course, optionally within a batch.
func (s *StudentService) Enroll(ctx context.Context, studentID string, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	if _, err := s.repo.FindByID(ctx, studentID); err != nil {
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

	exists, err := s.repo.EnrollmentExists(ctx, studentID, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this course")
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		CourseID:  req.CourseID,
		BatchID:   req.BatchID,
	}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}
	return enrollment, nil
}

func (s *StudentService) buildDetail(ctx context.Context, student *models.Student) (*models.StudentDetail, error) {
	enrollments, err := s.repo.ListEnrollments(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	summaries, err := s.repo.PaymentSummaries(ctx, []string{student.ID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment summary")
	}
	summary := summaries[student.ID]
	return &models.StudentDetail{
		Student:       *student,
		Enrollments:   enrollments,
		TotalFees:     summary.TotalFees,
		TotalPaid:     summary.TotalPaid,
		PaymentStatus: derivePaymentStatus(summary),
	}, nil
}

// derivePaymentStatus classifies a student's payment state from aggregate
// fees and recorded payments. Overpayment still counts as fully paid.
func derivePaymentStatus(summary models.PaymentSummary) models.PaymentStatus {
	switch {
	case summary.Enrollments == 0:
		return models.PaymentStatusNoCourse
	case summary.TotalPaid <= 0:
		return models.PaymentStatusUnpaid
	case summary.TotalPaid >= summary.TotalFees:
		return models.PaymentStatusFullPaid
	default:
		return models.PaymentStatusPartial
	}
}
