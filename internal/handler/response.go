package handler

import (
	"net/http"

	"vdt-app/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"message": message})
}

// respondInternalError logs err with detail and sends the client an
// opaque 500.
func respondInternalError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Error(msg,
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(middleware.ContextRequestID)),
	)
	respondMessage(c, http.StatusInternalServerError, "Server error")
}
