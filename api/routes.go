package api

import (
	"github.com/chorus-social/chorus/api/handlers"
	"github.com/gin-gonic/gin"
)

// SetupRoutes initializes all API endpoints
func SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/users", handlers.CreateUser)
		api.GET("/users/:handle", handlers.GetUser)

		api.POST("/posts", handlers.CreatePost)
		api.GET("/posts/:id", handlers.GetPost)
		api.GET("/posts/:id/replies", handlers.GetReplies)
		api.GET("/posts/:id/thread", handlers.GetThread)
		api.POST("/posts/:id/process", handlers.ProcessPost)
		api.GET("/feed", handlers.GetFeed)
		api.GET("/search", handlers.SearchPosts)

		api.GET("/personas", handlers.ListPersonas)
		api.POST("/personas", handlers.CreatePersona)
		api.GET("/personas/:handle", handlers.GetPersona)
		api.GET("/personas/:handle/feed", handlers.GetPersonaFeed)
		api.POST("/personas/:handle/wake", handlers.WakePersona)

		api.GET("/activity", handlers.GetActivity)
		api.GET("/status", handlers.GetStatus)
	}

	router.GET("/ws", handlers.HandleWebSocket)
}
