package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hsedesk/internal/apperr"
	"github.com/lalith-99/hsedesk/internal/auth"
	"github.com/lalith-99/hsedesk/internal/repository"
	"go.uber.org/zap"
)

// AuthHandler handles signup and login, the only public endpoints besides
// health. A new user has no company; POST /v1/companies comes next.
type AuthHandler struct {
	userRepo repository.UserRepository
	issuer   *auth.Issuer
	logger   *zap.Logger
}

func NewAuthHandler(userRepo repository.UserRepository, issuer *auth.Issuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		issuer:   issuer,
		logger:   logger,
	}
}

type signupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,max=200"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// authResponse is what both signup and login return. The client sends the
// token as "Authorization: Bearer <token>".
type authResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signup handles POST /v1/auth/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := h.userRepo.GetByEmail(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("failed to check existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	user, err := h.userRepo.Create(c.Request.Context(), email, strings.TrimSpace(req.DisplayName), hash)
	if err != nil {
		// Two signups for the same address can both pass the lookup above.
		if errors.Is(err, apperr.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	token, expires, err := h.issuer.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, ExpiresAt: expires})
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		h.logger.Error("failed to find user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Same answer for unknown email and wrong password.
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if !errors.Is(err, auth.ErrWrongPassword) {
			h.logger.Error("failed to check password", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, expires, err := h.issuer.Generate(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, ExpiresAt: expires})
}
