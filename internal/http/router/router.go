package router

import (
	"github.com/gin-gonic/gin"

	"fractionalhub.app/concierge/internal/analyzer"
	"fractionalhub.app/concierge/internal/http/handler"
	"fractionalhub.app/concierge/internal/service"
	"fractionalhub.app/concierge/internal/store"
)

type Deps struct {
	Services    *service.Services
	Transcripts analyzer.TranscriptAnalyzer
	Python      *analyzer.PythonProxy
	Profiles    store.ProfileStore
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		toolCallHandler := handler.NewToolCallHandler(deps.Services.ToolCalls())
		v1.POST("/tool-call", toolCallHandler.Relay)

		analyzeHandler := handler.NewAnalyzeHandler(deps.Transcripts, deps.Python)
		v1.POST("/analyze", analyzeHandler.Analyze)
		v1.POST("/analyze/python", analyzeHandler.AnalyzePython)

		memoryHandler := handler.NewMemoryHandler(deps.Services.Memory())
		v1.POST("/memory/save", memoryHandler.Save)
		v1.POST("/memory/context", memoryHandler.Context)

		tokenHandler := handler.NewTokenHandler(deps.Services.Tokens())
		v1.GET("/token", tokenHandler.Get)

		profileHandler := handler.NewProfileHandler(deps.Profiles)
		v1.GET("/profile", profileHandler.Get)
	}
}
