package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
)

type mockVerifyRepo struct {
	detail  *models.CertificateDetail
	lookups []string
}

func (m *mockVerifyRepo) FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error) {
	m.lookups = append(m.lookups, certificateID)
	if m.detail == nil || m.detail.CertificateID != certificateID {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

type mockVerifyCache struct {
	values map[string][]byte
}

func (m *mockVerifyCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockVerifyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = raw
	return nil
}

func validCertDetail() *models.CertificateDetail {
	batchName := "Evening Batch"
	return &models.CertificateDetail{
		Certificate: models.Certificate{
			CertificateID:  "CERT-2026-0001",
			CompletionDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			IssuedAt:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Alice",
		CourseName:  "Go Basics",
		BatchName:   &batchName,
	}
}

func TestVerificationServiceNormalizesInput(t *testing.T) {
	repo := &mockVerifyRepo{detail: validCertDetail()}
	svc := NewVerificationService(repo, nil, time.Minute, nil, nil)

	result, err := svc.Verify(context.Background(), "  cert-2026-0001  ")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Certificate)
	assert.Equal(t, "CERT-2026-0001", result.Certificate.CertificateID)
	assert.Equal(t, []string{"CERT-2026-0001"}, repo.lookups)
}

func TestVerificationServiceUnknownID(t *testing.T) {
	repo := &mockVerifyRepo{}
	svc := NewVerificationService(repo, nil, time.Minute, nil, nil)

	result, err := svc.Verify(context.Background(), "CERT-2026-9999")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Nil(t, result.Certificate)
	assert.Equal(t, verifyNotFoundMessage, result.Error)
}

func TestVerificationServiceEmptyID(t *testing.T) {
	repo := &mockVerifyRepo{}
	svc := NewVerificationService(repo, nil, time.Minute, nil, nil)

	result, err := svc.Verify(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Empty(t, repo.lookups)
}

func TestVerificationServiceCachesResults(t *testing.T) {
	repo := &mockVerifyRepo{detail: validCertDetail()}
	cache := &mockVerifyCache{}
	svc := NewVerificationService(repo, cache, time.Minute, nil, nil)

	first, err := svc.Verify(context.Background(), "CERT-2026-0001")
	require.NoError(t, err)
	require.True(t, first.Valid)

	second, err := svc.Verify(context.Background(), "CERT-2026-0001")
	require.NoError(t, err)
	assert.True(t, second.Valid)
	assert.Equal(t, first.Certificate.StudentName, second.Certificate.StudentName)

	// second call is served from cache
	assert.Len(t, repo.lookups, 1)
}

func TestVerificationServiceCachesNegativeResults(t *testing.T) {
	repo := &mockVerifyRepo{}
	cache := &mockVerifyCache{}
	svc := NewVerificationService(repo, cache, time.Minute, nil, nil)

	_, err := svc.Verify(context.Background(), "CERT-2026-9999")
	require.NoError(t, err)
	result, err := svc.Verify(context.Background(), "CERT-2026-9999")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, repo.lookups, 1)
}
