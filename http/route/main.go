package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-media-service/http/controller"
	middlewares "github.com/tnqbao/gau-media-service/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.New()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(gin.Recovery(), middles.RequestLogger, middles.CORSMiddleware)

	r.GET("/health", ctrl.Health)

	apiRoutes := r.Group("/api/v1")
	{
		mediaRoutes := apiRoutes.Group("/media/:owner_type/:owner_id")
		{
			mediaRoutes.DELETE("", ctrl.DeleteOwnerMedia)

			mediaRoutes.POST("/:collection", ctrl.AttachMedia)
			mediaRoutes.GET("/:collection", ctrl.ListMedia)
			mediaRoutes.DELETE("/:collection", ctrl.ClearCollection)
			mediaRoutes.GET("/:collection/url", ctrl.GetMediaURL)
			mediaRoutes.DELETE("/:collection/:extension", ctrl.DeleteMedia)
		}

		maintenanceRoutes := apiRoutes.Group("/maintenance")
		{
			maintenanceRoutes.POST("/cleanup", ctrl.EnqueueCleanup)
		}
	}
	return r
}
