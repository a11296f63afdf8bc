package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/groundqa/internal/middleware"
)

type RouterDeps struct {
	Chat      *ChatHandler
	Health    *HealthHandler
	RateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.Use(middleware.RequestID())
	api.GET("/health", deps.Health.Health)

	limited := api.Group("")
	limited.Use(middleware.RateLimit(deps.RateLimit))
	limited.POST("/chat", deps.Chat.Chat)
	limited.POST("/conversations", deps.Chat.CreateConversation)
	api.GET("/conversations/:id", deps.Chat.GetConversation)
}
