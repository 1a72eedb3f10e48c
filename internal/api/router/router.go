package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/jobmail/internal/api/handler"
)

// ServiceName is reported by the health endpoint
const ServiceName = "jobmail-api-service"

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, allowedOrigins []string) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware(allowedOrigins))

	r.GET("/health", healthHandler(deps.Checks))

	jobHandler := handler.NewJobHandler(deps)

	// Board routes keep the paths the dashboard frontend calls
	r.GET("/data", jobHandler.ListAll)
	r.GET("/jobs", jobHandler.ListByStatus)
	r.POST("/apply/:job_id", jobHandler.Apply)
	r.POST("/save/:job_id", jobHandler.Save)
	r.POST("/deny/:job_id", jobHandler.Deny)
	r.POST("/tracking/:job_id", jobHandler.Track)
	r.POST("/move/:job_id", jobHandler.Move)
	r.DELETE("/delete/:job_id", jobHandler.Delete)

	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/ingestions - enqueue an ingestion run
		v1.POST("/ingestions", jobHandler.CreateIngestion)
	}

	return r
}

func healthHandler(checks map[string]handler.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		components := gin.H{}
		for name, check := range checks {
			if err := check.HealthCheck(ctx); err != nil {
				components[name] = err.Error()
				status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":     status,
			"service":    ServiceName,
			"components": components,
		})
	}
}
