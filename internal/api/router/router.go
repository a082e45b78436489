package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huntswarm/huntswarm/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "huntswarm-control-service",
		})
	})

	swarmHandler := handler.NewSwarmHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		sw := v1.Group("/swarm")
		{
			// POST /api/v1/swarm/deploy - Deploy the hunter swarm
			sw.POST("/deploy", swarmHandler.DeploySwarm)

			// POST /api/v1/swarm/stop - Idle every hunting agent
			sw.POST("/stop", swarmHandler.StopSwarm)

			// GET /api/v1/swarm/progress - Aggregated collection progress
			sw.GET("/progress", swarmHandler.GetProgress)

			// GET /api/v1/swarm/health - System health report
			sw.GET("/health", swarmHandler.GetHealth)

			// GET /api/v1/swarm/export - Export discovered businesses
			sw.GET("/export", swarmHandler.ExportBusinesses)

			hunters := sw.Group("/hunters")
			{
				// GET /api/v1/swarm/hunters - Per-agent status list
				hunters.GET("", swarmHandler.ListHunters)

				// POST /api/v1/swarm/hunters/scale - Scale a hunter type
				hunters.POST("/scale", swarmHandler.ScaleHunters)

				// POST /api/v1/swarm/hunters/:agent_id/pause - Pause an agent
				hunters.POST("/:agent_id/pause", swarmHandler.PauseHunter)

				// POST /api/v1/swarm/hunters/:agent_id/restart - Restart an agent
				hunters.POST("/:agent_id/restart", swarmHandler.RestartHunter)
			}
		}
	}

	return r
}
