package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medword/internal/bootstrap"
	"medword/internal/transport/http/handler"
	"medword/internal/transport/http/middleware"
)

const editsPath = "/api/v1/host/edits"

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger.Named("http"), editsPath), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	maxBytes := app.Config.Sync.MaxUploadBytes
	hostHandler := handler.NewHostHandler(app.Bridge)
	chatHandler := handler.NewChatHandler(app.Chat, app.Sources)
	sourceHandler := handler.NewSourceHandler(app.Sources, maxBytes)
	promptHandler := handler.NewPromptHandler(app.Prompts)
	textHandler := handler.NewTextHandler(app.Text)
	datasetHandler := handler.NewDatasetHandler(app.Datasets, maxBytes)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret, app.Config.Auth.AdminRole))

	hostGroup := v1.Group("/host")
	hostGroup.POST("/snapshot", hostHandler.PushSnapshot)
	hostGroup.GET("/edits", hostHandler.DrainEdits)

	chatGroup := v1.Group("/chat")
	chatGroup.GET("", chatHandler.State)
	chatGroup.POST("/initialize", chatHandler.Initialize)
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.PUT("/sessions/:id/current", chatHandler.SwitchSession)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.PUT("/draft", chatHandler.SetDraft)
	chatGroup.POST("/reset", chatHandler.Reset)

	sourceGroup := v1.Group("/sources")
	sourceGroup.GET("", sourceHandler.List)
	sourceGroup.POST("/refresh", sourceHandler.Refresh)
	sourceGroup.POST("/upload", sourceHandler.Upload)
	sourceGroup.POST("/uploads/:id/retry", sourceHandler.RetryUpload)
	sourceGroup.DELETE("/uploads/:id", sourceHandler.DismissUpload)
	sourceGroup.DELETE("/:id", sourceHandler.Remove)
	sourceGroup.POST("/:id/toggle", sourceHandler.Toggle)
	sourceGroup.POST("/selection/all", sourceHandler.SelectAll)
	sourceGroup.DELETE("/selection", sourceHandler.ClearSelection)
	sourceGroup.POST("/analyze", sourceHandler.Analyze)

	promptGroup := v1.Group("/prompts")
	promptGroup.GET("", promptHandler.List)
	promptGroup.POST("", promptHandler.Create)
	promptGroup.PUT("/selected", promptHandler.Select)
	promptGroup.PUT("/:id", promptHandler.Update)
	promptGroup.DELETE("/:id", promptHandler.Delete)

	textGroup := v1.Group("/text")
	textGroup.GET("/status", textHandler.Status)
	textGroup.POST("/translate", textHandler.Translate)
	textGroup.POST("/translate-selection", textHandler.TranslateSelection)
	textGroup.POST("/generate", textHandler.Generate)
	textGroup.POST("/apply", textHandler.Apply)
	textGroup.POST("/report", textHandler.InsertReport)

	datasetGroup := v1.Group("/datasets")
	datasetGroup.GET("", datasetHandler.State)
	datasetGroup.POST("/upload", datasetHandler.Upload)
	datasetGroup.PUT("/config", datasetHandler.UpdateConfig)
	datasetGroup.POST("/visualization", datasetHandler.Generate)
	datasetGroup.POST("/visualization/insert", datasetHandler.Insert)

	return router
}
