package router

import (
	"github.com/gin-gonic/gin"

	"huijin-agent/internal/http/handler"
)

type Handlers struct {
	Chat  *handler.ChatHandler
	Voice *handler.VoiceHandler
}

func SetupRoutes(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		ChatRouter(api.Group("/chat"), h.Chat)
		if h.Voice != nil {
			api.GET("/voice-link", h.Voice.Link)
		}
	}
}

func ChatRouter(rg *gin.RouterGroup, h *handler.ChatHandler) {
	rg.POST("", h.Post)
	rg.GET("", h.Get)
}
