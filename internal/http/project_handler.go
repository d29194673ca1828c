package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"synergysphere/internal/domain"
	"synergysphere/internal/service"
)

// ProjectHandler expone el CRUD de proyectos del usuario autenticado.
type ProjectHandler struct {
	logger     *zap.Logger
	projectSvc *service.ProjectService
}

func NewProjectHandler(logger *zap.Logger, projectSvc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{logger: logger, projectSvc: projectSvc}
}

// Create maneja POST /projects.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create project request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	actor := actorID(c)
	project, err := h.projectSvc.Create(c.Request.Context(), actor, domain.NewProject{
		Name:        req.Name,
		Description: req.Description,
		Members:     req.Members,
		CreatedBy:   actor,
	})
	if err != nil {
		writeError(c, h.logger, "could not create project", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// List maneja GET /projects.
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectSvc.ListForUser(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, h.logger, "could not list projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get maneja GET /projects/:id.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectSvc.Get(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "project not found", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// Update maneja PATCH /projects/:id.
func (h *ProjectHandler) Update(c *gin.Context) {
	var req domain.ProjectUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update project request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	project, err := h.projectSvc.Update(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, h.logger, "could not update project", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// Delete maneja DELETE /projects/:id.
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projectSvc.Delete(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		writeError(c, h.logger, "could not delete project", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMember maneja POST /projects/:id/members.
func (h *ProjectHandler) AddMember(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid add member request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	project, err := h.projectSvc.AddMember(c.Request.Context(), actorID(c), c.Param("id"), req.UserID)
	if err != nil {
		writeError(c, h.logger, "could not add project member", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

// RemoveMember maneja DELETE /projects/:id/members/:user_id.
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	project, err := h.projectSvc.RemoveMember(c.Request.Context(), actorID(c), c.Param("id"), c.Param("user_id"))
	if err != nil {
		writeError(c, h.logger, "could not remove project member", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}
