package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/indexpilot/indexpilot/common"
)

// ErrorHandler renders the last error a handler attached to the context.
// APIErrors keep their status and field detail; anything else becomes an
// opaque 500 so internal error text never reaches clients.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if apiErr, ok := err.(common.APIError); ok {
			response := gin.H{"error": apiErr.Message}
			if apiErr.Fields != nil {
				response["fields"] = apiErr.Fields
			}
			c.JSON(apiErr.Status, response)
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
