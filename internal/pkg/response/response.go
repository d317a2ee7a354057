package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes {success:true, message, ...fields}.
func Success(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{}
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true
	body["message"] = message
	c.JSON(status, body)
}

func OK(c *gin.Context, message string, fields gin.H) {
	Success(c, http.StatusOK, message, fields)
}

func Error(c *gin.Context, status int, message, detail string) {
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   detail,
	})
}
