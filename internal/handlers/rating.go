package handlers

import (
	"net/http"

	"quill/internal/middleware"

	"github.com/gin-gonic/gin"
)

type RatingHandler struct {
	*Deps
}

func NewRatingHandler(d *Deps) *RatingHandler {
	return &RatingHandler{Deps: d}
}

type ratingRequest struct {
	Value int `json:"value" binding:"required,oneof=1 -1"`
}

// Rate 点赞/点踩，重复同一操作即撤销
func (h *RatingHandler) Rate(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	post, err := h.Posts.Get(ctx, c.Param("slug"), user.ID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	sum, err := h.Ratings.Toggle(ctx, post.ID, user.ID, req.Value, c.ClientIP())
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	h.Cache.Delete(detailCacheKey(post.Slug))
	c.JSON(http.StatusOK, gin.H{"rating_sum": sum})
}
