package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"adbfleet/models"
)

func SetupRoutes(router *gin.Engine, h *Handler, wsHub *WebSocketHub) {
	router.Use(CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
			"status":  "ok",
			"workers": h.dispatcher.Workers(),
		}))
	})

	api := router.Group("/api")
	{
		devices := api.Group("/devices")
		{
			devices.GET("", h.GetDevices)
			devices.GET("/snapshot", h.GetSnapshot)
			devices.GET("/snapshot/:id", h.GetDevice)
			devices.POST("/scan", h.ScanDevices)
		}

		api.POST("/dispatch", h.Dispatch)
		api.POST("/shell", h.Shell)

		history := api.Group("/history")
		{
			history.GET("", h.GetHistory)
			history.GET("/:id", h.GetDispatch)
		}
	}

	router.GET("/ws", func(c *gin.Context) {
		HandleWebSocket(wsHub, c)
	})
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
