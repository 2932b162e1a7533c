package handler

import (
	"errors"
	"net/http"

	"vdt-app/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler interface {
	Signup(c *gin.Context)
	Login(c *gin.Context)
}

type authHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

func NewAuthHandler(authService service.AuthService, logger *zap.Logger) AuthHandler {
	return &authHandler{authService: authService, logger: logger}
}

type SignupRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup handles POST /signup
func (h *authHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Username and password required")
		return
	}

	_, err := h.authService.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserAlreadyExists):
			respondMessage(c, http.StatusConflict, "Username already exists")
		case errors.Is(err, service.ErrPasswordTooLong):
			respondMessage(c, http.StatusBadRequest, "Password must be at most 72 bytes")
		default:
			respondInternalError(c, h.logger, "Failed to register user", err)
		}
		return
	}

	respondMessage(c, http.StatusCreated, "User registered successfully")
}

// Login handles POST /login
func (h *authHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Username and password required")
		return
	}

	tokenString, _, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondMessage(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondInternalError(c, h.logger, "Failed to login user", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}
