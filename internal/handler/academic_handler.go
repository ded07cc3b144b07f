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

type academicManager interface {
	CreateSpeciality(ctx context.Context, req dto.CreateSpecialityRequest) (*models.Speciality, error)
	GetSpeciality(ctx context.Context, id string) (*models.Speciality, error)
	ListSpecialities(ctx context.Context) ([]models.Speciality, error)
	UpdateSpeciality(ctx context.Context, id string, req dto.CreateSpecialityRequest) (*models.Speciality, error)
	DeleteSpeciality(ctx context.Context, id string) error

	CreateSection(ctx context.Context, req dto.CreateSectionRequest) (*models.Section, error)
	GetSection(ctx context.Context, id string) (*models.Section, error)
	ListSections(ctx context.Context, specialityID string) ([]models.Section, error)
	UpdateSection(ctx context.Context, id string, req dto.CreateSectionRequest) (*models.Section, error)
	DeleteSection(ctx context.Context, id string) error

	CreateGroup(ctx context.Context, req dto.CreateGroupRequest) (*models.Group, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context, sectionID string, groupType models.GroupType) ([]models.Group, error)
	UpdateGroup(ctx context.Context, id string, req dto.CreateGroupRequest) (*models.Group, error)
	DeleteGroup(ctx context.Context, id string) error
}

// AcademicHandler exposes the speciality, section and group endpoints.
type AcademicHandler struct {
	service academicManager
}

// NewAcademicHandler constructs the handler.
func NewAcademicHandler(service academicManager) *AcademicHandler {
	return &AcademicHandler{service: service}
}

// CreateSpeciality godoc
// @Summary Create a speciality
// @Tags Academics
// @Accept json
// @Produce json
// @Param payload body dto.CreateSpecialityRequest true "Speciality payload"
// @Success 201 {object} response.Envelope
// @Router /specialities [post]
func (h *AcademicHandler) CreateSpeciality(c *gin.Context) {
	var req dto.CreateSpecialityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid speciality payload"))
		return
	}
	speciality, err := h.service.CreateSpeciality(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, speciality)
}

// ListSpecialities godoc
// @Summary List specialities
// @Tags Academics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /specialities [get]
func (h *AcademicHandler) ListSpecialities(c *gin.Context) {
	specialities, err := h.service.ListSpecialities(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, specialities, nil)
}

// GetSpeciality godoc
// @Summary Get a speciality
// @Tags Academics
// @Produce json
// @Param id path string true "Speciality ID"
// @Success 200 {object} response.Envelope
// @Router /specialities/{id} [get]
func (h *AcademicHandler) GetSpeciality(c *gin.Context) {
	speciality, err := h.service.GetSpeciality(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, speciality, nil)
}

// UpdateSpeciality godoc
// @Summary Update a speciality
// @Tags Academics
// @Accept json
// @Produce json
// @Param id path string true "Speciality ID"
// @Param payload body dto.CreateSpecialityRequest true "Speciality payload"
// @Success 200 {object} response.Envelope
// @Router /specialities/{id} [put]
func (h *AcademicHandler) UpdateSpeciality(c *gin.Context) {
	var req dto.CreateSpecialityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid speciality payload"))
		return
	}
	speciality, err := h.service.UpdateSpeciality(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, speciality, nil)
}

// DeleteSpeciality godoc
// @Summary Delete an empty speciality and its sections
// @Tags Academics
// @Param id path string true "Speciality ID"
// @Success 204 "No Content"
// @Router /specialities/{id} [delete]
func (h *AcademicHandler) DeleteSpeciality(c *gin.Context) {
	if err := h.service.DeleteSpeciality(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateSection godoc
// @Summary Create a section under a speciality
// @Tags Academics
// @Accept json
// @Produce json
// @Param payload body dto.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *AcademicHandler) CreateSection(c *gin.Context) {
	var req dto.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section payload"))
		return
	}
	section, err := h.service.CreateSection(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// ListSections godoc
// @Summary List sections, optionally scoped to a speciality
// @Tags Academics
// @Produce json
// @Param speciality_id query string false "Speciality ID"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *AcademicHandler) ListSections(c *gin.Context) {
	sections, err := h.service.ListSections(c.Request.Context(), c.Query("speciality_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// GetSection godoc
// @Summary Get a section
// @Tags Academics
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *AcademicHandler) GetSection(c *gin.Context) {
	section, err := h.service.GetSection(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// UpdateSection godoc
// @Summary Update a section
// @Tags Academics
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.CreateSectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *AcademicHandler) UpdateSection(c *gin.Context) {
	var req dto.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid section payload"))
		return
	}
	section, err := h.service.UpdateSection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// DeleteSection godoc
// @Summary Delete an empty section and its groups
// @Tags Academics
// @Param id path string true "Section ID"
// @Success 204 "No Content"
// @Router /sections/{id} [delete]
func (h *AcademicHandler) DeleteSection(c *gin.Context) {
	if err := h.service.DeleteSection(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateGroup godoc
// @Summary Create a tutorial or lab group under a section
// @Tags Academics
// @Accept json
// @Produce json
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 201 {object} response.Envelope
// @Router /groups [post]
func (h *AcademicHandler) CreateGroup(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group payload"))
		return
	}
	group, err := h.service.CreateGroup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, group)
}

// ListGroups godoc
// @Summary List groups, optionally scoped to a section and type
// @Tags Academics
// @Produce json
// @Param section_id query string false "Section ID"
// @Param type query string false "Group type" Enums(TUTORIAL, LAB)
// @Success 200 {object} response.Envelope
// @Router /groups [get]
func (h *AcademicHandler) ListGroups(c *gin.Context) {
	groups, err := h.service.ListGroups(c.Request.Context(), c.Query("section_id"), models.GroupType(c.Query("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil)
}

// GetGroup godoc
// @Summary Get a group
// @Tags Academics
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [get]
func (h *AcademicHandler) GetGroup(c *gin.Context) {
	group, err := h.service.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// UpdateGroup godoc
// @Summary Update a group, keeping its type
// @Tags Academics
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param payload body dto.CreateGroupRequest true "Group payload"
// @Success 200 {object} response.Envelope
// @Router /groups/{id} [put]
func (h *AcademicHandler) UpdateGroup(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group payload"))
		return
	}
	group, err := h.service.UpdateGroup(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// DeleteGroup godoc
// @Summary Delete an empty group
// @Tags Academics
// @Param id path string true "Group ID"
// @Success 204 "No Content"
// @Router /groups/{id} [delete]
func (h *AcademicHandler) DeleteGroup(c *gin.Context) {
	if err := h.service.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
