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

type teacherManager interface {
	Create(ctx context.Context, req dto.CreateTeacherRequest) (*models.Teacher, error)
	Get(ctx context.Context, id string) (*models.Teacher, error)
	List(ctx context.Context, search string, page, pageSize int) ([]models.Teacher, int, error)
	Update(ctx context.Context, id string, req dto.UpdateTeacherRequest) (*models.Teacher, error)
	Delete(ctx context.Context, id string) error
	Assign(ctx context.Context, teacherID string, req dto.AssignTeacherRequest) error
	Unassign(ctx context.Context, teacherID string, req dto.AssignTeacherRequest) error
}

// TeacherHandler exposes teacher directory endpoints.
type TeacherHandler struct {
	service teacherManager
}

// NewTeacherHandler constructs the handler.
func NewTeacherHandler(service teacherManager) *TeacherHandler {
	return &TeacherHandler{service: service}
}

// Create godoc
// @Summary Register a teacher with their account
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body dto.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req dto.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teacher payload"))
		return
	}
	teacher, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Name search"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c)
	teachers, total, err := h.service.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, models.NewPagination(page, pageSize, total))
}

// Get godoc
// @Summary Get a teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Update godoc
// @Summary Update a teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req dto.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid teacher payload"))
		return
	}
	teacher, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Delete godoc
// @Summary Delete a teacher, their assignments and their account
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Success 204 "No Content"
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Assign godoc
// @Summary Assign a teacher to a section or group
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.AssignTeacherRequest true "Assignment payload"
// @Success 204 "No Content"
// @Router /teachers/{id}/assign [post]
func (h *TeacherHandler) Assign(c *gin.Context) {
	var req dto.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	if err := h.service.Assign(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Unassign godoc
// @Summary Remove a teacher's section or group assignment
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.AssignTeacherRequest true "Assignment payload"
// @Success 204 "No Content"
// @Router /teachers/{id}/assign [delete]
func (h *TeacherHandler) Unassign(c *gin.Context) {
	var req dto.AssignTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	if err := h.service.Unassign(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
