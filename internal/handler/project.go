package handler

import (
	"net/http"
	"time"

	"freelance_hub/internal/middleware"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectHandler struct {
	projectService service.ProjectService
	log            logger.Logger
}

func NewProjectHandler(projectService service.ProjectService, log logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		log:            log,
	}
}

type CreateProjectRequest struct {
	Title        string     `json:"title" binding:"required,notblank,max=200"`
	Description  string     `json:"description" binding:"max=10000"`
	Budget       string     `json:"budget" binding:"omitempty,numeric"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	FreelancerID *uuid.UUID `json:"freelancer_id,omitempty"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), middleware.CurrentUser(c), service.CreateProjectInput{
		Title:        req.Title,
		Description:  req.Description,
		Budget:       req.Budget,
		Deadline:     req.Deadline,
		FreelancerID: req.FreelancerID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// Get - маршрут под RequireParticipant
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projectService.Get(c.Request.Context(), middleware.CurrentUser(c), c.MustGet(middleware.ContextKeyProjectID).(uuid.UUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, project)
}
