package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	"github.com/usra-dev/usra-api/internal/service"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
	"github.com/usra-dev/usra-api/pkg/response"
)

type requestWorkflow interface {
	SubmitChange(ctx context.Context, req dto.CreateChangeRequest, actor *models.JWTClaims) (*models.Request, error)
	SubmitSwap(ctx context.Context, req dto.CreateSwapRequest, actor *models.JWTClaims) (*models.Request, error)
	VerifySwapEligibility(ctx context.Context, studentID, counterpartID string) error
	Review(ctx context.Context, req dto.ReviewRequest, reviewer *models.JWTClaims) (*models.Request, error)
	RespondToSwap(ctx context.Context, req dto.RespondSwapRequest, actor *models.JWTClaims) (*models.Request, error)
	Appeal(ctx context.Context, req dto.AppealRequest, actor *models.JWTClaims) (*models.Request, error)
	Cancel(ctx context.Context, req dto.CancelRequest, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RequestDetail, error)
	List(ctx context.Context, filter models.RequestFilter, actor *models.JWTClaims) ([]models.RequestRow, int, error)
	ListSwaps(ctx context.Context, filter models.SwapFilter, actor *models.JWTClaims) ([]models.SwapRow, int, error)
}

type requestExporter interface {
	ExportRequests(ctx context.Context, filter models.RequestFilter, format service.ExportFormat) (*service.ExportResult, error)
}

// RequestHandler exposes REST endpoints for the request workflow.
type RequestHandler struct {
	service  requestWorkflow
	exporter requestExporter
	metrics  *service.MetricsService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(svc requestWorkflow, exporter requestExporter, metrics *service.MetricsService) *RequestHandler {
	return &RequestHandler{service: svc, exporter: exporter, metrics: metrics}
}

// SubmitChange godoc
// @Summary Submit a group or section change request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateChangeRequest true "Change request payload"
// @Success 201 {object} response.Envelope
// @Router /requests/change [post]
func (h *RequestHandler) SubmitChange(c *gin.Context) {
	var req dto.CreateChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid change request payload"))
		return
	}
	request, err := h.service.SubmitChange(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountWorkflowRequest(string(request.Kind))
	response.JSON(c, http.StatusCreated, request, nil)
}

// SubmitSwap godoc
// @Summary Submit a swap request or open opportunity
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CreateSwapRequest true "Swap request payload"
// @Success 201 {object} response.Envelope
// @Router /requests/swap [post]
func (h *RequestHandler) SubmitSwap(c *gin.Context) {
	var req dto.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid swap request payload"))
		return
	}
	request, err := h.service.SubmitSwap(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountWorkflowRequest(string(request.Kind))
	response.JSON(c, http.StatusCreated, request, nil)
}

// VerifySwap godoc
// @Summary Check whether two students may swap placements
// @Tags Requests
// @Produce json
// @Param student_id query string true "Requesting student"
// @Param counterpart_student_id query string true "Counterpart student"
// @Success 200 {object} response.Envelope
// @Router /requests/swap/verify [get]
func (h *RequestHandler) VerifySwap(c *gin.Context) {
	studentID := c.Query("student_id")
	counterpartID := c.Query("counterpart_student_id")
	if studentID == "" || counterpartID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id and counterpart_student_id are required"))
		return
	}
	if err := h.service.VerifySwapEligibility(c.Request.Context(), studentID, counterpartID); err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status < http.StatusInternalServerError {
			response.JSON(c, http.StatusOK, gin.H{"eligible": false, "reason": appErr.Message}, nil)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"eligible": true}, nil)
}

// List godoc
// @Summary List requests
// @Tags Requests
// @Produce json
// @Param search query string false "Request ID or student last name"
// @Param status query string false "Workflow status"
// @Param type query string false "Logical type: group, section or swap"
// @Param urgency query int false "Urgency level"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	filter := requestFilterFromQuery(c)
	rows, total, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, models.NewPagination(filter.Page, filter.PageSize, total))
}

// ListSwaps godoc
// @Summary List swap requests and open opportunities
// @Tags Requests
// @Produce json
// @Param opportunity query bool false "Only open opportunities"
// @Success 200 {object} response.Envelope
// @Router /requests/swap [get]
func (h *RequestHandler) ListSwaps(c *gin.Context) {
	claims := claimsFromContext(c)
	page, pageSize := pageParams(c)
	filter := models.SwapFilter{
		Search:          strings.TrimSpace(c.Query("search")),
		StudentID:       c.Query("student_id"),
		Status:          models.RequestStatus(strings.ToUpper(c.Query("status"))),
		Urgency:         queryInt(c, "urgency", 0),
		OpportunityOnly: c.Query("opportunity") == "true",
		Page:            page,
		PageSize:        pageSize,
	}
	filter.StartDate, filter.EndDate = dateRangeFromQuery(c)

	rows, total, err := h.service.ListSwaps(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, models.NewPagination(page, pageSize, total))
}

// Get godoc
// @Summary Get request detail with the student's enrollment snapshot
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Review godoc
// @Summary Apply a review decision to a pending or appealed request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /requests/review [patch]
func (h *RequestHandler) Review(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	request, err := h.service.Review(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountReviewOutcome(string(req.Decision))
	response.JSON(c, http.StatusOK, request, nil)
}

// RespondSwap godoc
// @Summary Answer or claim a swap request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.RespondSwapRequest true "Swap response payload"
// @Success 200 {object} response.Envelope
// @Router /requests/swap [patch]
func (h *RequestHandler) RespondSwap(c *gin.Context) {
	var req dto.RespondSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid swap response payload"))
		return
	}
	request, err := h.service.RespondToSwap(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.CountReviewOutcome("swap_" + string(req.Response))
	response.JSON(c, http.StatusOK, request, nil)
}

// Appeal godoc
// @Summary Appeal a rejected request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.AppealRequest true "Appeal payload"
// @Success 200 {object} response.Envelope
// @Router /requests/appeal [patch]
func (h *RequestHandler) Appeal(c *gin.Context) {
	var req dto.AppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid appeal payload"))
		return
	}
	request, err := h.service.Appeal(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Cancel godoc
// @Summary Cancel a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.CancelRequest true "Cancel payload"
// @Success 204 "No Content"
// @Router /requests/cancel [delete]
func (h *RequestHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid cancel payload"))
		return
	}
	if err := h.service.Cancel(c.Request.Context(), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the request feed as CSV or PDF
// @Tags Requests
// @Produce octet-stream
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Router /requests/export [get]
func (h *RequestHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	filter := requestFilterFromQuery(c)
	result, err := h.exporter.ExportRequests(c.Request.Context(), filter, service.ExportFormat(strings.ToLower(c.DefaultQuery("format", "csv"))))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func requestFilterFromQuery(c *gin.Context) models.RequestFilter {
	page, pageSize := pageParams(c)
	filter := models.RequestFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		StudentID: c.Query("student_id"),
		Status:    models.RequestStatus(strings.ToUpper(c.Query("status"))),
		Type:      models.RequestType(strings.ToLower(c.Query("type"))),
		Urgency:   queryInt(c, "urgency", 0),
		Page:      page,
		PageSize:  pageSize,
	}
	filter.StartDate, filter.EndDate = dateRangeFromQuery(c)
	return filter
}

func dateRangeFromQuery(c *gin.Context) (*time.Time, *time.Time) {
	var start, end *time.Time
	if raw := c.Query("start_date"); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			start = &ts
		}
	}
	if raw := c.Query("end_date"); raw != "" {
		if ts, err := time.Parse("2006-01-02", raw); err == nil {
			// Inclusive upper bound: cover the whole day.
			ts = ts.Add(24*time.Hour - time.Nanosecond)
			end = &ts
		}
	}
	return start, end
}
