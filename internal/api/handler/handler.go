package handler

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/chathub"
	"matchchat/backend/internal/complaint"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/match"
	"matchchat/backend/internal/metrics"
	"matchchat/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatService is what the HTTP layer calls on the chat store.
type ChatService interface {
	Authorize(ctx context.Context, chatID, userID string) (*models.Chat, error)
	UserChats(ctx context.Context, userID string) ([]models.ChatPreview, error)
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, chatID, messageID string) (*models.ChatMessage, error)
	AppendMessage(ctx context.Context, in chat.AppendInput) (*models.ChatMessage, error)
	EditMessage(ctx context.Context, chatID, messageID, userID, text string) (*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, chatID, messageID, userID string) (*models.ChatMessage, error)
	MarkRead(ctx context.Context, chatID, userID, lastReadMessageID string) error
	SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error
}

type MatchService interface {
	Like(ctx context.Context, from, to string) (*match.Result, error)
	Unlike(ctx context.Context, from, to string) error
}

type ComplaintService interface {
	File(ctx context.Context, in complaint.FileInput) (*models.Complaint, error)
}

// Handler wires the HTTP and WebSocket surface to the services.
type Handler struct {
	Hub        *chathub.ManagerService
	Chats      ChatService
	Matches    MatchService
	Complaints ComplaintService
	Auth       *Auth
	log        *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, chats ChatService, matches MatchService, complaints ComplaintService, auth *Auth, log *zap.Logger) *Handler {
	return &Handler{
		Hub:        hub,
		Chats:      chats,
		Matches:    matches,
		Complaints: complaints,
		Auth:       auth,
		log:        logger.OrNop(log).Named("http"),
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, apperr.OK("ok", "")) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authed := r.Group("/", h.Auth.Middleware())
	authed.GET("/ws", h.ServeWebSocket)

	api := authed.Group("/api")
	api.POST("/likes/:userId", h.Like)
	api.DELETE("/likes/:userId", h.Unlike)

	api.GET("/chats", h.ListChats)
	api.GET("/chats/:chatId/messages", h.ListMessages)
	api.POST("/chats/:chatId/messages", h.SendMessage)
	api.GET("/chats/:chatId/messages/:messageId", h.GetMessage)
	api.PATCH("/chats/:chatId/messages/:messageId", h.EditMessage)
	api.DELETE("/chats/:chatId/messages/:messageId", h.DeleteMessage)
	api.POST("/chats/:chatId/read", h.MarkRead)
	api.POST("/chats/:chatId/typing", h.SetTyping)

	api.POST("/complaints", h.FileComplaint)
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, apperr.Fail[any](err))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, apperr.Fail[any](apperr.Invalid("decode request", err.Error())))
}
