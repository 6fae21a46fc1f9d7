package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/sms-api/internal/models"
	"github.com/campuskit/sms-api/internal/service"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
	"github.com/campuskit/sms-api/pkg/response"
	"github.com/campuskit/sms-api/pkg/storage"
)

// CertificateHandler handles certificate endpoints, including the public
// verification lookup.
type CertificateHandler struct {
	service      *service.CertificateService
	verification *service.VerificationService
	documents    *service.DocumentService
	signer       *storage.SignedURLSigner
	metrics      *service.MetricsService
}

// NewCertificateHandler constructs a certificate handler.
func NewCertificateHandler(svc *service.CertificateService, verification *service.VerificationService, documents *service.DocumentService, signer *storage.SignedURLSigner, metrics *service.MetricsService) *CertificateHandler {
	return &CertificateHandler{service: svc, verification: verification, documents: documents, signer: signer, metrics: metrics}
}

// List godoc
// @Summary List certificates
// @Tags Certificates
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	var filter models.CertificateFilter
	filter.StudentID = c.Query("student_id")
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	certificates, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificates, pagination)
}

// Get godoc
// @Summary Get certificate by id
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	certificate, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

// ListMine godoc
// @Summary Certificates for the logged-in student
// @Tags Certificates
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/me/certificates [get]
func (h *CertificateHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certificates, err := h.service.ListForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificates, nil)
}

// Issue godoc
// @Summary Issue certificate
// @Description Issues an immutable certificate; one per student and course
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body service.IssueCertificateRequest true "Certificate payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	var req service.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	certificate, err := h.service.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// Delete godoc
// @Summary Revoke a certificate
// @Description Deletes an issued certificate; public verification stops validating it
// @Tags Certificates
// @Param id path string true "Certificate ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [delete]
func (h *CertificateHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download certificate PDF
// @Description Admins download any certificate; students only their own
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	id := c.Param("id")
	if claims.Role != models.RoleAdmin {
		owned, err := h.service.OwnedByUser(c.Request.Context(), id, claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !owned {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another student"))
			return
		}
	}

	path, filename, err := h.documents.CertificateFile(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filename)
}

// DownloadVerified godoc
// @Summary Download a verified certificate PDF
// @Description Public download using the signed token issued by verification
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /certificates/download [get]
func (h *CertificateHandler) DownloadVerified(c *gin.Context) {
	certificateID, _, _, err := h.signer.Parse(c.Query("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download link"))
		return
	}
	path, filename, err := h.documents.CertificateFileByNumber(c.Request.Context(), certificateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filename)
}

// Verify godoc
// @Summary Verify a certificate
// @Description Public lookup by certificate identifier; no authentication
// @Tags Certificates
// @Produce json
// @Param certificate_id path string true "Public certificate identifier"
// @Success 200 {object} models.VerificationResult
// @Failure 400 {object} models.VerificationResult
// @Failure 404 {object} models.VerificationResult
// @Router /verify/{certificate_id} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	certificateID := strings.TrimSpace(c.Param("certificate_id"))
	if certificateID == "" {
		c.JSON(http.StatusBadRequest, models.VerificationResult{Valid: false, Error: "Certificate ID is required."})
		return
	}

	result, err := h.verification.Verify(c.Request.Context(), certificateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordVerification(result.Valid)

	// The verification payload is a bare object, not the standard
	// envelope, so third-party consumers can parse it directly. Misses
	// answer 404 with the same shape.
	if !result.Valid {
		c.JSON(http.StatusNotFound, result)
		return
	}

	if h.signer != nil && result.Certificate != nil {
		token, _, err := h.signer.Generate(result.Certificate.CertificateID, fmt.Sprintf("certificate-%s.pdf", result.Certificate.CertificateID))
		if err == nil {
			result.Certificate.DownloadURL = "/certificates/download?token=" + url.QueryEscape(token)
		}
	}
	c.JSON(http.StatusOK, result)
}
