package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/pkg/response"
)

func Health(c *gin.Context) {
	response.OK(c, "health check", nil)
}
