package handler

import (
	"matchchat/backend/internal/apperr"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Like(c *gin.Context) {
	res, err := h.Matches.Like(c.Request.Context(), currentUser(c), c.Param("userId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "liked"
	if res.IsMatch {
		msg = "it's a match"
	}
	c.JSON(http.StatusOK, apperr.OK(*res, msg))
}

func (h *Handler) Unlike(c *gin.Context) {
	if err := h.Matches.Unlike(c.Request.Context(), currentUser(c), c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, apperr.OK(true, "unliked"))
}
