package handlers

import (
	"fmt"
	"net/http"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/services"
	"quill/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	*Deps
}

func NewPostHandler(d *Deps) *PostHandler {
	return &PostHandler{Deps: d}
}

type postRequest struct {
	Title          string        `json:"title" binding:"required,max=255"`
	Description    string        `json:"description" binding:"max=500"`
	Text           string        `json:"text" binding:"required"`
	CategoryID     *uint         `json:"category_id"`
	Status         models.Status `json:"status" binding:"omitempty,oneof=published draft"`
	Fixed          bool          `json:"fixed"`
	RegenerateSlug bool          `json:"regenerate_slug"`
}

func (r postRequest) input() services.PostInput {
	return services.PostInput{
		Title:          r.Title,
		Description:    r.Description,
		Text:           r.Text,
		CategoryID:     r.CategoryID,
		Status:         r.Status,
		Fixed:          r.Fixed,
		RegenerateSlug: r.RegenerateSlug,
	}
}

func detailCacheKey(postSlug string) string {
	return fmt.Sprintf("post:detail:%s", postSlug)
}

// List 已发布文章，置顶优先，按时间倒序
func (h *PostHandler) List(c *gin.Context) {
	result, err := h.Posts.List(c.Request.Context(), services.ListPostsQuery{
		Page:         page(c),
		PerPage:      h.PageSize,
		CategorySlug: c.Query("category"),
	})
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Mine 当前用户的全部文章（包括草稿）
func (h *PostHandler) Mine(c *gin.Context) {
	result, err := h.Posts.List(c.Request.Context(), services.ListPostsQuery{
		Page:          page(c),
		PerPage:       h.PageSize,
		AuthorID:      currentUserID(c),
		IncludeDrafts: true,
	})
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) Detail(c *gin.Context) {
	postSlug := c.Param("slug")
	cacheKey := detailCacheKey(postSlug)

	if cached := h.Cache.Get(cacheKey); cached != nil {
		if data, ok := cached.(gin.H); ok {
			c.JSON(http.StatusOK, data)
			return
		}
	}

	ctx := c.Request.Context()
	post, err := h.Posts.Get(ctx, postSlug, currentUserID(c))
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	threads, err := h.Comments.Forest(ctx, post.ID)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	data := gin.H{
		"post":         post,
		"content_html": utils.RenderMarkdown(post.Text),
		"comments":     renderThreads(threads),
	}
	// 草稿只给作者看，不进共享缓存
	if post.Status == models.StatusPublished {
		h.Cache.Set(cacheKey, data)
	}
	c.JSON(http.StatusOK, data)
}

func (h *PostHandler) Search(c *gin.Context) {
	query := c.Query("q")
	posts, err := h.Posts.Search(c.Request.Context(), query, 50)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "posts": posts})
}

func (h *PostHandler) Create(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := middleware.CurrentUser(c)
	post, err := h.Posts.Create(c.Request.Context(), user.ID, req.input())
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *PostHandler) Update(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oldSlug := c.Param("slug")
	user := middleware.CurrentUser(c)
	post, err := h.Posts.Update(c.Request.Context(), user.ID, oldSlug, req.input())
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	h.Cache.Delete(detailCacheKey(oldSlug))
	h.Cache.Delete(detailCacheKey(post.Slug))
	c.JSON(http.StatusOK, post)
}

func (h *PostHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	post, err := h.Posts.Delete(c.Request.Context(), user.ID, c.Param("slug"))
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	h.Cache.Delete(detailCacheKey(post.Slug))
	c.Status(http.StatusNoContent)
}
