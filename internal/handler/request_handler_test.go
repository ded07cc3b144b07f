package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/middleware"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
)

type requestWorkflowMock struct {
	submitResp   *models.Request
	submitErr    error
	reviewResp   *models.Request
	reviewErr    error
	respondResp  *models.Request
	respondErr   error
	verifyErr    error
	cancelErr    error
	listRows     []models.RequestRow
	listTotal    int
	lastFilter   models.RequestFilter
	lastReview   dto.ReviewRequest
	lastActor    *models.JWTClaims
	reviewCalled bool
	cancelCalled bool
}

func (m *requestWorkflowMock) SubmitChange(ctx context.Context, req dto.CreateChangeRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.lastActor = actor
	return m.submitResp, m.submitErr
}

func (m *requestWorkflowMock) SubmitSwap(ctx context.Context, req dto.CreateSwapRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.lastActor = actor
	return m.submitResp, m.submitErr
}

func (m *requestWorkflowMock) VerifySwapEligibility(ctx context.Context, studentID, counterpartID string) error {
	return m.verifyErr
}

func (m *requestWorkflowMock) Review(ctx context.Context, req dto.ReviewRequest, reviewer *models.JWTClaims) (*models.Request, error) {
	m.reviewCalled = true
	m.lastReview = req
	return m.reviewResp, m.reviewErr
}

func (m *requestWorkflowMock) RespondToSwap(ctx context.Context, req dto.RespondSwapRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.lastActor = actor
	return m.respondResp, m.respondErr
}

func (m *requestWorkflowMock) Appeal(ctx context.Context, req dto.AppealRequest, actor *models.JWTClaims) (*models.Request, error) {
	m.lastActor = actor
	return m.submitResp, m.submitErr
}

func (m *requestWorkflowMock) Cancel(ctx context.Context, req dto.CancelRequest, actor *models.JWTClaims) error {
	m.cancelCalled = true
	m.lastActor = actor
	return m.cancelErr
}

func (m *requestWorkflowMock) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.RequestDetail, error) {
	return &models.RequestDetail{Request: models.Request{ID: id}}, nil
}

func (m *requestWorkflowMock) List(ctx context.Context, filter models.RequestFilter, actor *models.JWTClaims) ([]models.RequestRow, int, error) {
	m.lastFilter = filter
	return m.listRows, m.listTotal, nil
}

func (m *requestWorkflowMock) ListSwaps(ctx context.Context, filter models.SwapFilter, actor *models.JWTClaims) ([]models.SwapRow, int, error) {
	return nil, 0, nil
}

func staffContext(w *httptest.ResponseRecorder) (*gin.Context, *models.JWTClaims) {
	c, _ := gin.CreateTestContext(w)
	claims := &models.JWTClaims{UserID: "user-staff", Role: models.RoleStaff, PermissionLevel: models.PermissionStaff}
	c.Set(middleware.ContextUserKey, claims)
	return c, claims
}

func TestRequestHandlerSubmitChange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{
		submitResp: &models.Request{ID: "req-1", Kind: models.KindChangeGroup, Status: models.RequestStatusPending},
	}
	handler := NewRequestHandler(mockSvc, nil, nil)

	payload, _ := json.Marshal(dto.CreateChangeRequest{
		StudentID:   "8f14e45f-ceea-467f-a1d6-91b1b7e1d3da",
		Type:        models.RequestTypeGroup,
		RequestedID: "6512bd43-d9ca-46e0-a145-91b1b7e1d3db",
		Reason:      "schedule clash",
		Urgency:     2,
	})
	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/change", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.SubmitChange(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "req-1", envelope.Data.ID)

	// The service sees the authenticated caller, not just the body.
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "user-staff", mockSvc.lastActor.UserID)
}

func TestRequestHandlerSubmitChangeInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestWorkflowMock{}, nil, nil)

	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/change", bytes.NewBufferString(`{"student_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.SubmitChange(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerReviewPropagatesDecision(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{
		reviewResp: &models.Request{ID: "req-1", Status: models.RequestStatusApproved},
	}
	handler := NewRequestHandler(mockSvc, nil, nil)

	payload, _ := json.Marshal(dto.ReviewRequest{
		RequestID: "8f14e45f-ceea-467f-a1d6-91b1b7e1d3da",
		Decision:  dto.DecisionApprove,
		Comment:   "capacity available",
	})
	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/requests/review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Review(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.reviewCalled)
	assert.Equal(t, dto.DecisionApprove, mockSvc.lastReview.Decision)
}

func TestRequestHandlerReviewConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{reviewErr: appErrors.ErrInvalidState}
	handler := NewRequestHandler(mockSvc, nil, nil)

	payload, _ := json.Marshal(dto.ReviewRequest{
		RequestID: "8f14e45f-ceea-467f-a1d6-91b1b7e1d3da",
		Decision:  dto.DecisionReject,
	})
	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/requests/review", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Review(c)
	require.Equal(t, appErrors.ErrInvalidState.Status, w.Code)
}

func TestRequestHandlerVerifySwapReportsIneligible(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{
		verifyErr: appErrors.Clone(appErrors.ErrValidation, "students belong to different specialities"),
	}
	handler := NewRequestHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests/swap/verify?student_id=a&counterpart_student_id=b", nil)
	c.Request = req

	handler.VerifySwap(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data struct {
			Eligible bool   `json:"eligible"`
			Reason   string `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Eligible)
	assert.Contains(t, envelope.Data.Reason, "specialities")
}

func TestRequestHandlerListParsesFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{listTotal: 0}
	handler := NewRequestHandler(mockSvc, nil, nil)

	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests?status=pending&type=swap&urgency=2&page=3&page_size=25", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestStatusPending, mockSvc.lastFilter.Status)
	assert.Equal(t, models.RequestTypeSwap, mockSvc.lastFilter.Type)
	assert.Equal(t, 2, mockSvc.lastFilter.Urgency)
	assert.Equal(t, 3, mockSvc.lastFilter.Page)
	assert.Equal(t, 25, mockSvc.lastFilter.PageSize)
}

func TestRequestHandlerCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestWorkflowMock{}
	handler := NewRequestHandler(mockSvc, nil, nil)

	payload, _ := json.Marshal(dto.CancelRequest{
		RequestID: "8f14e45f-ceea-467f-a1d6-91b1b7e1d3da",
		StudentID: "6512bd43-d9ca-46e0-a145-91b1b7e1d3db",
	})
	w := httptest.NewRecorder()
	c, _ := staffContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/requests/cancel", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Cancel(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.cancelCalled)
	require.NotNil(t, mockSvc.lastActor)
	assert.Equal(t, "user-staff", mockSvc.lastActor.UserID)
}
