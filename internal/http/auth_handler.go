package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"synergysphere/internal/domain"
	"synergysphere/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de sesion y perfil.
type AuthHandler struct {
	logger  *zap.Logger
	authSvc *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler.
func NewAuthHandler(logger *zap.Logger, authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{logger: logger, authSvc: authSvc}
}

// SignUp maneja POST /auth/signup.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Password    string `json:"password" binding:"required"`
		DisplayName string `json:"display_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signup request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.authSvc.SignUp(c.Request.Context(), service.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(c, h.logger, "could not sign up", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": session.User, "session": session})
}

// SignIn maneja POST /auth/signin.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signin request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.authSvc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials", "kind": "unauthorized"})
			return
		}
		writeError(c, h.logger, "could not sign in", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": session.User, "session": session})
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	session, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, service.ErrJWTInvalid) || errors.Is(err, service.ErrJWTExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "kind": "unauthorized"})
			return
		}
		writeError(c, h.logger, "could not refresh session", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": session.User, "session": session})
}

// SignOut maneja POST /auth/signout.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid signout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.authSvc.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		if domain.KindOf(err).Retryable() {
			writeError(c, h.logger, "could not revoke session", err)
			return
		}
		h.logger.Debug("signout with unknown token", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// CurrentUser maneja GET /auth/user.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	user, err := h.authSvc.CurrentUser(c.Request.Context(), actorID(c))
	if err != nil {
		writeError(c, h.logger, "could not load user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetProfile maneja GET /profiles/:id.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if id == "me" {
		id = actorID(c)
	}
	profile, err := h.authSvc.Profile(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "could not load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
