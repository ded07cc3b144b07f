package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
	"github.com/usra-dev/usra-api/pkg/response"
)

type staffManager interface {
	Create(ctx context.Context, req dto.CreateStaffRequest) (*models.Staff, error)
	Get(ctx context.Context, id string) (*models.Staff, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Staff, int, error)
	Update(ctx context.Context, id string, req dto.UpdateStaffRequest) (*models.Staff, error)
	Delete(ctx context.Context, id string) error
}

// StaffHandler exposes administrative staff endpoints.
type StaffHandler struct {
	service staffManager
}

// NewStaffHandler constructs the handler.
func NewStaffHandler(service staffManager) *StaffHandler {
	return &StaffHandler{service: service}
}

// Create godoc
// @Summary Register a staff member with their account
// @Tags Staff
// @Accept json
// @Produce json
// @Param payload body dto.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Router /staff [post]
func (h *StaffHandler) Create(c *gin.Context) {
	var req dto.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid staff payload"))
		return
	}
	staff, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, staff)
}

// List godoc
// @Summary List staff members
// @Tags Staff
// @Produce json
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *StaffHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	staff, total, err := h.service.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, models.NewPagination(page, pageSize, total))
}

// Get godoc
// @Summary Get a staff member
// @Tags Staff
// @Produce json
// @Param id path string true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [get]
func (h *StaffHandler) Get(c *gin.Context) {
	staff, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// Update godoc
// @Summary Update a staff member
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param payload body dto.UpdateStaffRequest true "Staff payload"
// @Success 200 {object} response.Envelope
// @Router /staff/{id} [put]
func (h *StaffHandler) Update(c *gin.Context) {
	var req dto.UpdateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid staff payload"))
		return
	}
	staff, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// Delete godoc
// @Summary Delete a staff member and their account
// @Tags Staff
// @Param id path string true "Staff ID"
// @Success 204 "No Content"
// @Router /staff/{id} [delete]
func (h *StaffHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
