package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

func Welcome(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"message":   "UnderLeaf is running",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
