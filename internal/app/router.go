package app

import (
	"github.com/gin-gonic/gin"
	"github.com/pffigueiredo/daily-step-tracker/docs"
	"github.com/pffigueiredo/daily-step-tracker/pkg/monitoring"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		steps := api.Group("/steps")
		{
			steps.POST("", c.dailySteps.CreateOrUpdate)
			steps.GET("", c.dailySteps.ListUserSteps)
			steps.GET("/by-date", c.dailySteps.GetStepsByDate)
			steps.PATCH("/:id", c.dailySteps.UpdateSteps)
			steps.DELETE("/:id", c.dailySteps.DeleteSteps)
		}
	}
}
