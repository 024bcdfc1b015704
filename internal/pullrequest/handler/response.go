package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/festy23/pitcrew/internal/pullrequest/model"
)

// errorResponse writes the {"error": message} body used by every pullrequest endpoint.
func errorResponse(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, model.ErrorResponse{Error: message})
}
