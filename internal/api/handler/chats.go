package handler

import (
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/complaint"
	"matchchat/backend/internal/models"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Text  string        `json:"text"`
	Media *models.Media `json:"media"`
}

type editMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type readRequest struct {
	LastReadMessageID string `json:"lastReadMessageId" binding:"required"`
}

type typingRequest struct {
	IsTyping bool `json:"isTyping"`
}

func (h *Handler) ListChats(c *gin.Context) {
	previews, err := h.Chats.UserChats(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(previews, ""))
}

func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("chatId")
	if _, err := h.Chats.Authorize(ctx, chatID, currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	msgs, err := h.Chats.ListMessages(ctx, chatID, limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(msgs, ""))
}

func (h *Handler) GetMessage(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("chatId")
	if _, err := h.Chats.Authorize(ctx, chatID, currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	msg, err := h.Chats.GetMessage(ctx, chatID, c.Param("messageId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(*msg, ""))
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.Chats.AppendMessage(c.Request.Context(), chat.AppendInput{
		ChatID:   c.Param("chatId"),
		FromUser: currentUser(c),
		Text:     req.Text,
		Media:    req.Media,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apperr.OK(*msg, "sent"))
}

func (h *Handler) EditMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.Chats.EditMessage(c.Request.Context(), c.Param("chatId"), c.Param("messageId"), currentUser(c), req.Text)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(*msg, "edited"))
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	msg, err := h.Chats.DeleteMessage(c.Request.Context(), c.Param("chatId"), c.Param("messageId"), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(*msg, "deleted"))
}

func (h *Handler) MarkRead(c *gin.Context) {
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Chats.MarkRead(c.Request.Context(), c.Param("chatId"), currentUser(c), req.LastReadMessageID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(true, ""))
}

func (h *Handler) SetTyping(c *gin.Context) {
	var req typingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Chats.SetTyping(c.Request.Context(), c.Param("chatId"), currentUser(c), req.IsTyping); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(true, ""))
}

func (h *Handler) FileComplaint(c *gin.Context) {
	var req complaint.FileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ReporterID = currentUser(c)
	filed, err := h.Complaints.File(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, apperr.OK(*filed, "complaint filed"))
}
