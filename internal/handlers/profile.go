package handlers

import (
	"net/http"
	"time"

	"quill/internal/middleware"
	"quill/internal/services"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	*Deps
}

func NewProfileHandler(d *Deps) *ProfileHandler {
	return &ProfileHandler{Deps: d}
}

type profileRequest struct {
	Bio       string `json:"bio" binding:"max=500"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	Country   string `json:"country" binding:"omitempty,len=2"`
	City      string `json:"city" binding:"max=100"`
}

// Show 用户主页：资料和已发布文章
func (h *ProfileHandler) Show(c *gin.Context) {
	ctx := c.Request.Context()
	profile, err := h.Profiles.Get(ctx, c.Param("slug"))
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	posts, err := h.Posts.List(ctx, services.ListPostsQuery{
		Page:     page(c),
		PerPage:  h.PageSize,
		AuthorID: profile.UserID,
	})
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "posts": posts})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.ProfileInput{Bio: req.Bio, Country: req.Country, City: req.City}
	if req.BirthDate != "" {
		d, err := time.Parse(time.DateOnly, req.BirthDate)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "birth_date must be YYYY-MM-DD"})
			return
		}
		in.BirthDate = &d
	}

	profile, err := h.Profiles.Update(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
