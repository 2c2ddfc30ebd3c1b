package ports

import (
	"github.com/gin-gonic/gin"
)

type StatusHandler interface {
	Health(c *gin.Context)
	Ready(c *gin.Context)
	Stats(c *gin.Context)
}

type WebSocketHandler interface {
	HandleWebSocket(c *gin.Context)
}
