package handlers

import (
	"teamhub/backend/internal/middleware"
	"teamhub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth     services.AuthService
	Users    services.UserService
	Friends  services.FriendRequestService
	Groups   services.GroupService
	Joins    services.JoinRequestService
	Tasks    services.TaskService
	Messages services.MessageService
}

type RouteOptions struct {
	Cookie CookieConfig
	// AuthLimiter, when set, guards the unauthenticated login and register
	// endpoints.
	AuthLimiter gin.HandlerFunc
}

// RegisterRoutes mounts the /api/v1 surface on router.
func RegisterRoutes(router *gin.Engine, svc Services, opts RouteOptions) {
	authHandler := NewAuthHandler(svc.Auth, opts.Cookie)
	userHandler := NewUserHandler(svc.Users)
	friendHandler := NewFriendRequestHandler(svc.Friends)
	groupHandler := NewGroupHandler(svc.Groups, svc.Joins)
	joinHandler := NewJoinRequestHandler(svc.Joins)
	taskHandler := NewTaskHandler(svc.Tasks)
	messageHandler := NewMessageHandler(svc.Messages)

	session := middleware.SessionAuth(svc.Auth, authHandler.cookie.Name)
	self := middleware.RequireSelf("userId")

	api := router.Group("/api/v1")

	public := api.Group("")
	if opts.AuthLimiter != nil {
		public.Use(opts.AuthLimiter)
	}
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)

	api.GET("/users/search", userHandler.Search)
	api.GET("/friend-requests/accepted/:userId", friendHandler.ListFriends)

	protected := api.Group("")
	protected.Use(session)

	protected.POST("/logout", authHandler.Logout)

	users := protected.Group("/users")
	{
		users.GET("/me", userHandler.GetMe)
		users.PATCH("/me", userHandler.UpdateMe)
		users.POST("/me/avatar/upload-url", userHandler.AvatarUploadURL)
		users.PUT("/me/avatar", userHandler.SetAvatar)
		users.GET("/:id", userHandler.GetUser)
	}

	friends := protected.Group("/friend-requests")
	{
		friends.POST("", friendHandler.Send)
		friends.GET("/pending", friendHandler.ListPending)
		friends.GET("/sent", friendHandler.ListSent)
		friends.PATCH("/:id", friendHandler.Respond)
	}

	groups := protected.Group("/groups")
	{
		groups.POST("", groupHandler.Create)
		groups.GET("/public", groupHandler.ListPublic)
		groups.GET("/user/:userId", self, groupHandler.ListForUser)
		groups.GET("/:id", groupHandler.Get)
		groups.GET("/:id/members", groupHandler.ListMembers)
		groups.PATCH("/:id", groupHandler.Update)
		groups.DELETE("/:id", groupHandler.Delete)
		groups.POST("/:id/invitations", groupHandler.Invite)
	}

	joins := protected.Group("/join-requests")
	{
		joins.POST("", joinHandler.Create)
		joins.PATCH("/:id", joinHandler.Respond)
		joins.GET("/owner/:userId", self, joinHandler.ListForOwner)
		joins.GET("/user/:userId", self, joinHandler.ListForUser)
	}

	tasks := protected.Group("/tasks")
	{
		tasks.POST("", taskHandler.CreateTask)
		tasks.GET("/user/:userId", self, taskHandler.GetTasksByUser)
		tasks.GET("/user/:userId/personal", self, taskHandler.GetPersonalTasks)
		tasks.GET("/user/:userId/team", self, taskHandler.GetTeamTasks)
		tasks.GET("/user/:userId/team/:groupId", self, taskHandler.GetTeamTasks)
		tasks.GET("/group/:groupId", taskHandler.GetGroupTasks)
		tasks.GET("/:id", taskHandler.GetTaskByID)
		tasks.PATCH("/:id", taskHandler.UpdateTask)
		tasks.PATCH("/:id/complete", taskHandler.CompleteTask)
		tasks.DELETE("/:id", taskHandler.DeleteTask)
	}

	messages := protected.Group("/messages")
	{
		messages.POST("", messageHandler.Send)
		messages.GET("/:userId", messageHandler.Conversation)
	}
}
