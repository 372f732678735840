package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// MCPHandler 挂载在 EndpointPath 上的 MCP Streamable HTTP 服务
type MCPHandler interface {
	http.Handler
	EndpointPath() string
}

// SetupRouter mcpServer 可为 nil
func SetupRouter(handler *Handler, mcpServer MCPHandler, isDebug bool) *gin.Engine {
	var r *gin.Engine
	if isDebug {
		gin.SetMode(gin.DebugMode)
		r = gin.Default()
	} else {
		gin.SetMode(gin.ReleaseMode)
		r = gin.New()
		r.Use(gin.Recovery())
	}

	// TraceID 中间件 - 必须在其他中间件之前
	r.Use(TraceIDMiddleware())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Trace-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Trace-ID"},
		AllowCredentials: false,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if mcpServer != nil {
		r.Any(mcpServer.EndpointPath(), gin.WrapH(mcpServer))
	}

	api := r.Group("/api/v1")
	{
		autopilotAPI := api.Group("/autopilot")
		{
			autopilotAPI.GET("/status", handler.AutopilotStatus)
			autopilotAPI.POST("/toggle", handler.ToggleAutopilot)
		}

		api.POST("/pronunciation/toggle", handler.TogglePronunciation)

		exerciseAPI := api.Group("/exercise")
		{
			exerciseAPI.GET("", handler.GetExercise)
			exerciseAPI.POST("", handler.PushExercise)
			exerciseAPI.GET("/answers", handler.AnswerKey)
		}

		api.GET("/attempts", handler.ListAttempts)
		api.DELETE("/attempts", handler.ClearAttempts)

		api.POST("/assist", handler.Assist)

		browserAPI := api.Group("/browser")
		{
			browserAPI.POST("/start", handler.StartBrowser)
			browserAPI.POST("/stop", handler.StopBrowser)
			browserAPI.GET("/status", handler.BrowserStatus)
		}
	}

	return r
}
