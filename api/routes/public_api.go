package routes

import (
	"bookswap/api/handlers"
	"bookswap/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func PublicApi(router *gin.Engine) *gin.RouterGroup {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	publicEndpoints := router.Group("/api/v1/")
	{
		publicEndpoints.POST("auth/register", handlers.Register)
		publicEndpoints.POST("auth/login", handlers.Login)
	}

	// Мессенджер: все операции только с аутентификацией
	messagingEndpoints := router.Group("/api/v1/")
	messagingEndpoints.Use(middleware.AuthMiddleware())
	{
		messagingEndpoints.POST("auth/logout", handlers.Logout)

		messagingEndpoints.GET("threads", handlers.ListInboxHandler)
		messagingEndpoints.GET("thread/:thread_id/messages", handlers.GetThreadMessagesHandler)
		messagingEndpoints.POST("thread/:thread_id/messages", handlers.SendMessageHandler)
		messagingEndpoints.DELETE("message/:message_id", handlers.DeleteMessageHandler)
		messagingEndpoints.GET("thread/start", handlers.StartConversationHandler)
		messagingEndpoints.POST("thread/start", handlers.StartConversationHandler)
	}

	return publicEndpoints
}

// MessagingApi регистрирует роуты мессенджера с произвольным
// middleware аутентификации (в тестах - TestAuthMiddleware)
func MessagingApi(router *gin.Engine, auth gin.HandlerFunc) *gin.RouterGroup {
	messagingEndpoints := router.Group("/api/v1/")
	messagingEndpoints.Use(auth)
	{
		messagingEndpoints.GET("threads", handlers.ListInboxHandler)
		messagingEndpoints.GET("thread/:thread_id/messages", handlers.GetThreadMessagesHandler)
		messagingEndpoints.POST("thread/:thread_id/messages", handlers.SendMessageHandler)
		messagingEndpoints.DELETE("message/:message_id", handlers.DeleteMessageHandler)
		messagingEndpoints.GET("thread/start", handlers.StartConversationHandler)
		messagingEndpoints.POST("thread/start", handlers.StartConversationHandler)
	}
	return messagingEndpoints
}
