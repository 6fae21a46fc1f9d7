package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/sms-api/internal/models"
	"github.com/campuskit/sms-api/internal/service"
	appErrors "github.com/campuskit/sms-api/pkg/errors"
	"github.com/campuskit/sms-api/pkg/response"
)

// CustomInvoiceHandler handles free-form invoice endpoints.
type CustomInvoiceHandler struct {
	service   *service.CustomInvoiceService
	documents *service.DocumentService
}

// NewCustomInvoiceHandler constructs a custom invoice handler.
func NewCustomInvoiceHandler(svc *service.CustomInvoiceService, documents *service.DocumentService) *CustomInvoiceHandler {
	return &CustomInvoiceHandler{service: svc, documents: documents}
}

// List godoc
// @Summary List custom invoices
// @Tags CustomInvoices
// @Produce json
// @Param search query string false "Search keyword"
// @Param from query string false "Payment date lower bound (RFC 3339)"
// @Param to query string false "Payment date upper bound (RFC 3339)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /custom-invoices [get]
func (h *CustomInvoiceHandler) List(c *gin.Context) {
	var filter models.CustomInvoiceFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	invoices, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// Get godoc
// @Summary Get custom invoice by id
// @Tags CustomInvoices
// @Produce json
// @Param id path string true "Custom invoice ID"
// @Success 200 {object} response.Envelope
// @Router /custom-invoices/{id} [get]
func (h *CustomInvoiceHandler) Get(c *gin.Context) {
	invoice, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Create godoc
// @Summary Create custom invoice
// @Description Totals are computed server-side from the line items
// @Tags CustomInvoices
// @Accept json
// @Produce json
// @Param payload body service.CustomInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Router /custom-invoices [post]
func (h *CustomInvoiceHandler) Create(c *gin.Context) {
	var req service.CustomInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// Update godoc
// @Summary Update custom invoice
// @Tags CustomInvoices
// @Accept json
// @Produce json
// @Param id path string true "Custom invoice ID"
// @Param payload body service.CustomInvoiceRequest true "Invoice payload"
// @Success 200 {object} response.Envelope
// @Router /custom-invoices/{id} [put]
func (h *CustomInvoiceHandler) Update(c *gin.Context) {
	var req service.CustomInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Delete godoc
// @Summary Delete custom invoice
// @Tags CustomInvoices
// @Produce json
// @Param id path string true "Custom invoice ID"
// @Success 204
// @Router /custom-invoices/{id} [delete]
func (h *CustomInvoiceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download custom invoice PDF
// @Tags CustomInvoices
// @Produce application/pdf
// @Param id path string true "Custom invoice ID"
// @Success 200 {file} binary
// @Router /custom-invoices/{id}/download [get]
func (h *CustomInvoiceHandler) Download(c *gin.Context) {
	path, filename, err := h.documents.CustomInvoiceFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.FileAttachment(path, filename)
}
