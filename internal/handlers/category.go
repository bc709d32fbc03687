package handlers

import (
	"net/http"

	"quill/internal/services"

	"github.com/gin-gonic/gin"
)

type CategoryHandler struct {
	*Deps
}

func NewCategoryHandler(d *Deps) *CategoryHandler {
	return &CategoryHandler{Deps: d}
}

type categoryRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Slug        string `json:"slug" binding:"max=255"`
	Description string `json:"description" binding:"max=300"`
}

func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.Categories.List(c.Request.Context())
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Detail 分类信息及其下的已发布文章
func (h *CategoryHandler) Detail(c *gin.Context) {
	ctx := c.Request.Context()
	category, err := h.Categories.Get(ctx, c.Param("slug"))
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	posts, err := h.Posts.List(ctx, services.ListPostsQuery{
		Page:         page(c),
		PerPage:      h.PageSize,
		CategorySlug: category.Slug,
	})
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "posts": posts})
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category, err := h.Categories.Create(c.Request.Context(), req.Title, req.Slug, req.Description)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}
