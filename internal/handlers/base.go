package handlers

import (
	"errors"
	"net/http"

	"quill/internal/middleware"
	"quill/internal/services"
	"quill/internal/slug"
	"quill/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps 所有 handler 共享的依赖
type Deps struct {
	Auth       *services.AuthService
	Posts      *services.PostService
	Categories *services.CategoryService
	Profiles   *services.ProfileService
	Comments   *services.CommentService
	Ratings    *services.RatingService
	Cache      *utils.Cache
	Log        logrus.FieldLogger
	PageSize   int
}

// RenderError 把服务层错误映射成 HTTP 状态码
func RenderError(c *gin.Context, log logrus.FieldLogger, err error) {
	code := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, services.ErrNotFound):
		code, message = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrForbidden):
		code, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrInvalidInput):
		code, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials):
		code, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, services.ErrUserExists):
		code, message = http.StatusConflict, err.Error()
	case errors.Is(err, slug.ErrUniquenessConflict):
		code, message = http.StatusConflict, "could not allocate a unique slug, please retry"
	}

	if code >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	}
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// currentUserID 未登录返回 0
func currentUserID(c *gin.Context) uint {
	if user := middleware.CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.ParseID(c.Param(name))
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
	}
	return id, ok
}

func page(c *gin.Context) int {
	if p := utils.StringToInt(c.Query("page")); p > 0 {
		return p
	}
	return 1
}
