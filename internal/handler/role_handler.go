package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/usra-dev/usra-api/internal/dto"
	"github.com/usra-dev/usra-api/internal/models"
	appErrors "github.com/usra-dev/usra-api/pkg/errors"
	"github.com/usra-dev/usra-api/pkg/response"
)

type roleManager interface {
	List(ctx context.Context) ([]models.Role, error)
	Get(ctx context.Context, id string) (*models.Role, error)
	Create(ctx context.Context, req dto.CreateRoleRequest) (*models.Role, error)
	Update(ctx context.Context, id string, req dto.UpdateRoleRequest) (*models.Role, error)
	Delete(ctx context.Context, id string) error
}

// RoleHandler exposes role management endpoints.
type RoleHandler struct {
	service roleManager
}

// NewRoleHandler constructs the handler.
func NewRoleHandler(service roleManager) *RoleHandler {
	return &RoleHandler{service: service}
}

// List godoc
// @Summary List roles ordered by permission level
// @Tags Roles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roles [get]
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles, nil)
}

// Get godoc
// @Summary Get a role
// @Tags Roles
// @Produce json
// @Param id path string true "Role ID"
// @Success 200 {object} response.Envelope
// @Router /roles/{id} [get]
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Create godoc
// @Summary Create a custom role
// @Tags Roles
// @Accept json
// @Produce json
// @Param payload body dto.CreateRoleRequest true "Role payload"
// @Success 201 {object} response.Envelope
// @Router /roles [post]
func (h *RoleHandler) Create(c *gin.Context) {
	var req dto.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid role payload"))
		return
	}
	role, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// Update godoc
// @Summary Update a non-protected role
// @Tags Roles
// @Accept json
// @Produce json
// @Param id path string true "Role ID"
// @Param payload body dto.UpdateRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Router /roles/{id} [put]
func (h *RoleHandler) Update(c *gin.Context) {
	var req dto.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid role payload"))
		return
	}
	role, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, role, nil)
}

// Delete godoc
// @Summary Delete an empty non-protected role
// @Tags Roles
// @Param id path string true "Role ID"
// @Success 204 "No Content"
// @Router /roles/{id} [delete]
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
