package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/taskplanner/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Profile *apiHandler.ProfileHandler
	Task    *apiHandler.TaskHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/register", handlers.Auth.Register)
	r.POST("/api/v1/auth/login", handlers.Auth.Login)
	r.POST("/api/v1/auth/refresh", handlers.Auth.Refresh)
	r.POST("/api/v1/auth/logout", authMiddleware(handlers.Auth.Logout))

	// Protected routes
	r.GET("/api/v1/profile", authMiddleware(handlers.Profile.GetProfile))
	r.PUT("/api/v1/profile", authMiddleware(handlers.Profile.UpdateProfile))

	r.GET("/api/v1/tasks", authMiddleware(handlers.Task.GetTasks))
	r.POST("/api/v1/tasks", authMiddleware(handlers.Task.CreateTask))
	r.GET("/api/v1/tasks/count", authMiddleware(handlers.Task.CountTasks))
	r.GET("/api/v1/tasks/graph", authMiddleware(handlers.Task.Graph))
	r.GET("/api/v1/tasks/calendar", authMiddleware(handlers.Task.Calendar))
	r.GET("/api/v1/tasks/stats", authMiddleware(handlers.Task.Stats))
	r.GET("/api/v1/tasks/{id}", authMiddleware(handlers.Task.GetTask))
	r.PUT("/api/v1/tasks/{id}", authMiddleware(handlers.Task.UpdateTask))
	r.DELETE("/api/v1/tasks/{id}", authMiddleware(handlers.Task.DeleteTask))
	r.PUT("/api/v1/tasks/{id}/status", authMiddleware(handlers.Task.UpdateStatus))
	r.POST("/api/v1/tasks/{id}/subtasks", authMiddleware(handlers.Task.AddSubtask))
	r.GET("/api/v1/tasks/{id}/subtasks", authMiddleware(handlers.Task.GetSubtasks))
	r.POST("/api/v1/tasks/{id}/dependencies", authMiddleware(handlers.Task.AddDependency))
	r.GET("/api/v1/tasks/{id}/dependencies", authMiddleware(handlers.Task.GetDependencies))
	r.GET("/api/v1/tasks/{id}/blocked", authMiddleware(handlers.Task.IsBlocked))

	return r
}
