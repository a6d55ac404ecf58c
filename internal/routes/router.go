package routes

import (
	"github.com/gin-gonic/gin"

	"shared-tasks/internal/controller"
	"shared-tasks/internal/middleware"
)

// Deps are the handlers the router mounts.
type Deps struct {
	Tasks  *controller.Tasks
	Events *controller.Events
	DB     controller.Pinger
	Cache  controller.Pinger
}

func Router(d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())

	// Health for load balancers and K8s probes
	router.GET("/health", controller.Health)
	router.GET("/ready", controller.Ready(d.DB, d.Cache))

	router.GET("/tasks", d.Tasks.List)
	router.GET("/tasks/:id", d.Tasks.Get)
	router.POST("/tasks", d.Tasks.Create)
	router.PATCH("/tasks/:id", d.Tasks.Update)
	router.DELETE("/tasks/:id", d.Tasks.Delete)

	// Push channel: every committed mutation is mirrored here
	router.GET("/ws", d.Events.Stream)

	return router
}
