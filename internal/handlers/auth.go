package handlers

import (
	"net/http"

	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	*Deps
}

func NewAuthHandler(d *Deps) *AuthHandler {
	return &AuthHandler{Deps: d}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// account 当前用户自己的视图，带邮箱
type account struct {
	*models.User
	Email string `json:"email"`
}

func accountOf(u *models.User) account {
	return account{User: u, Email: u.Email}
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	if err := h.startSession(c, user.ID); err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusCreated, accountOf(user))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Auth.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		RenderError(c, h.Log, err)
		return
	}

	if err := h.startSession(c, user.ID); err != nil {
		RenderError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, accountOf(user))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, accountOf(middleware.CurrentUser(c)))
}

func (h *AuthHandler) startSession(c *gin.Context, userID uint) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	return session.Save()
}
