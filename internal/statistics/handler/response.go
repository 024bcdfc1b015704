// Package handler provides response helpers for statistics module.
package handler

import (
	"github.com/gin-gonic/gin"

	pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"
)

// errorResponse sends an error response.
func errorResponse(c *gin.Context, message string, status int) {
	c.JSON(status, pullrequestModel.ErrorResponse{Error: message})
}
