package handler

import (
	"net/http"

	"freelance_hub/internal/middleware"
	"freelance_hub/internal/service"
	"freelance_hub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ChatHandler struct {
	chatService service.ChatService
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		log:         log,
	}
}

type SendMessageRequest struct {
	ProjectID   uuid.UUID `json:"project_id" binding:"required"`
	Content     string    `json:"content" binding:"required,notblank"`
	Attachments []string  `json:"attachments" binding:"omitempty,max=10,dive,max=2048"`
}

type TypingRequest struct {
	ProjectID uuid.UUID `json:"project_id" binding:"required"`
	IsTyping  *bool     `json:"is_typing" binding:"required"`
}

func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := h.chatService.Send(c.Request.Context(), middleware.CurrentUser(c), service.SendMessageInput{
		ProjectID:   req.ProjectID,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// History - маршрут под RequireParticipant
func (h *ChatHandler) History(c *gin.Context) {
	projectID := c.MustGet(middleware.ContextKeyProjectID).(uuid.UUID)

	messages, err := h.chatService.History(c.Request.Context(), middleware.CurrentUser(c), projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *ChatHandler) Typing(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if err := h.chatService.NotifyTyping(c.Request.Context(), middleware.CurrentUser(c), req.ProjectID, *req.IsTyping); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) Rooms(c *gin.Context) {
	rooms, err := h.chatService.ListRooms(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
