package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/sms-api/internal/models"
	"github.com/campuskit/sms-api/internal/service"
	"github.com/campuskit/sms-api/pkg/storage"
)

type verifyRepoMock struct {
	detail *models.CertificateDetail
}

func (m *verifyRepoMock) FindByCertificateID(ctx context.Context, certificateID string) (*models.CertificateDetail, error) {
	if m.detail == nil || m.detail.CertificateID != certificateID {
		return nil, sql.ErrNoRows
	}
	return m.detail, nil
}

func newVerifyHandler(detail *models.CertificateDetail, signer *storage.SignedURLSigner) *CertificateHandler {
	verification := service.NewVerificationService(&verifyRepoMock{detail: detail}, nil, time.Minute, nil, nil)
	return NewCertificateHandler(nil, verification, nil, signer, nil)
}

func performVerify(t *testing.T, handler *CertificateHandler, certificateID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/verify/"+url.PathEscape(certificateID), nil)
	c.Params = gin.Params{{Key: "certificate_id", Value: certificateID}}
	handler.Verify(c)
	return w
}

func TestCertificateHandlerVerifyValid(t *testing.T) {
	batchName := "Evening Batch"
	handler := newVerifyHandler(&models.CertificateDetail{
		Certificate: models.Certificate{
			CertificateID:  "CERT-2026-0001",
			CompletionDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			IssuedAt:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Alice",
		CourseName:  "Go Basics",
		BatchName:   &batchName,
	}, nil)

	w := performVerify(t, handler, "CERT-2026-0001")
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, true, payload["valid"])

	cert, ok := payload["certificate"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Alice", cert["student_name"])
	assert.Equal(t, "Evening Batch", cert["batch_name"])
}

func TestCertificateHandlerVerifyUnknown(t *testing.T) {
	handler := newVerifyHandler(nil, nil)

	w := performVerify(t, handler, "CERT-2026-9999")
	require.Equal(t, http.StatusNotFound, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, false, payload["valid"])
	assert.NotEmpty(t, payload["error"])
	_, hasCertificate := payload["certificate"]
	assert.False(t, hasCertificate)
}

func TestCertificateHandlerVerifyBlankID(t *testing.T) {
	handler := newVerifyHandler(nil, nil)

	for _, id := range []string{"", "   "} {
		w := performVerify(t, handler, id)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, false, payload["valid"])
		assert.NotEmpty(t, payload["error"])
	}
}

func TestCertificateHandlerVerifySignsDownloadLink(t *testing.T) {
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	handler := newVerifyHandler(&models.CertificateDetail{
		Certificate: models.Certificate{
			CertificateID:  "CERT-2026-0005",
			CompletionDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			IssuedAt:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Alice",
		CourseName:  "Go Basics",
	}, signer)

	w := performVerify(t, handler, "CERT-2026-0005")
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	cert, ok := payload["certificate"].(map[string]interface{})
	require.True(t, ok)

	downloadURL, ok := cert["download_url"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(downloadURL, "/certificates/download?token="))

	token, err := url.QueryUnescape(strings.TrimPrefix(downloadURL, "/certificates/download?token="))
	require.NoError(t, err)
	certificateID, _, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "CERT-2026-0005", certificateID)
}

func TestCertificateHandlerDownloadVerifiedBadToken(t *testing.T) {
	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	handler := NewCertificateHandler(nil, nil, nil, signer, nil)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/certificates/download?token=not-a-token", nil)
	handler.DownloadVerified(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCertificateHandlerVerifyOmitsBatchWhenAbsent(t *testing.T) {
	handler := newVerifyHandler(&models.CertificateDetail{
		Certificate: models.Certificate{
			CertificateID:  "CERT-2026-0002",
			CompletionDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			IssuedAt:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
		},
		StudentName: "Bob",
		CourseName:  "Go Basics",
	}, nil)

	w := performVerify(t, handler, "CERT-2026-0002")
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	cert, ok := payload["certificate"].(map[string]interface{})
	require.True(t, ok)
	_, hasBatch := cert["batch_name"]
	assert.False(t, hasBatch)
}
