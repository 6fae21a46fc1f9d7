package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

const verifyNotFoundMessage = "No certificate found with that ID. Please check the ID and try again."

type verificationCertificateRepository interface {
	FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error)
}

type verificationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// VerificationService answers public certificate lookups. Results are
// cached since verification pages are hit without authentication.
type VerificationService struct {
	repo     verificationCertificateRepository
	cache    verificationCache
	cacheTTL time.Duration
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(repo verificationCertificateRepository, cache verificationCache, cacheTTL time.Duration, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &VerificationService{repo: repo, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

// Verify looks up a certificate by its public identifier. Lookups are
// case-insensitive; unknown identifiers produce a negative result, not an
// error.
func (s *VerificationService) Verify(ctx context.Context, certificateID string) (*models.VerificationResult, error) {
	certificateID = strings.ToUpper(strings.TrimSpace(certificateID))
	if certificateID == "" {
		return &models.VerificationResult{Valid: false, Error: "certificate ID is required"}, nil
	}

	cacheKey := "verify:" + certificateID
	if s.cache != nil {
		var cached models.VerificationResult
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("verification cache read failed", zap.Error(err))
		} else {
			s.metrics.RecordCacheOperation(false)
		}
	}

	detail, err := s.repo.FindByCertificateID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			result := &models.VerificationResult{Valid: false, Error: verifyNotFoundMessage}
			s.store(ctx, cacheKey, result)
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}

	result := &models.VerificationResult{
		Valid: true,
		Certificate: &models.VerifiedCertificate{
			CertificateID:         detail.CertificateID,
			CompletionDate:        detail.CompletionDate,
			IssuedAt:              detail.IssuedAt,
			StudentName:           detail.StudentName,
			StudentEnrollmentDate: detail.StudentEnrollmentDate,
			CourseName:            detail.CourseName,
			CourseDescription:     detail.CourseDescription,
			CourseDuration:        detail.CourseDuration,
			CourseStatus:          detail.CourseStatus,
			CourseFee:             detail.CourseFee,
			BatchName:             detail.BatchName,
			BatchStartDate:        detail.BatchStartDate,
			BatchEndDate:          detail.BatchEndDate,
			BatchInstructor:       detail.BatchInstructor,
		},
	}
	s.store(ctx, cacheKey, result)
	return result, nil
}

func (s *VerificationService) store(ctx context.Context, key string, result *models.VerificationResult) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("verification cache write failed", zap.Error(err))
	}
}
