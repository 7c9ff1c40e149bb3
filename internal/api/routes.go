package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mun_dashboard/internal/api/handlers"
	"mun_dashboard/internal/middleware"
	"mun_dashboard/internal/service"
)

// SetupRoutes 註冊所有路由；gatherer 為 nil 時不提供 /metrics
func SetupRoutes(r *gin.Engine, services *service.Services, jwtSecret []byte, gatherer prometheus.Gatherer) {
	// 初始化 handlers
	chairHandler := handlers.NewChairHandler(services.Chair)
	delegateHandler := handlers.NewDelegateHandler(services.Delegate)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocket, services.Chair)

	r.Use(middleware.RequestLogger(), middleware.CORS())

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API 路由群組
	api := r.Group("/api")

	// 基本的健康檢查
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// 需要身分的路由
	identified := api.Group("/")
	identified.Use(middleware.Identity(jwtSecret))

	chair := identified.Group("/chair")
	{
		chair.GET("", chairHandler.GetState)
		chair.PUT("/committee", chairHandler.UpdateCommittee)
		chair.POST("/session/start", chairHandler.StartSession)
		chair.POST("/session/stop", chairHandler.StopSession)

		// 點名與代表
		chair.POST("/participants", chairHandler.AddParticipant)
		chair.PATCH("/participants/:id", chairHandler.UpdateParticipant)
		chair.DELETE("/participants/:id", chairHandler.RemoveParticipant)
		chair.POST("/rollcall/complete", chairHandler.CompleteRollCall)
		chair.GET("/rollcall", chairHandler.RollCall)

		// 紀律
		chair.POST("/participants/:id/strikes", chairHandler.AddStrike)
		chair.DELETE("/participants/:id/strikes", chairHandler.RemoveStrike)
		chair.POST("/participants/:id/feedback", chairHandler.AddFeedback)
		chair.GET("/participants/:id/discipline", chairHandler.Discipline)

		// 動議與表決
		chair.POST("/motions", chairHandler.AddMotion)
		chair.POST("/motions/:id/star", chairHandler.StarMotion)
		chair.POST("/motions/:id/status", chairHandler.SetMotionStatus)
		chair.POST("/motions/:id/vote", chairHandler.StartVote)
		chair.GET("/vote", chairHandler.VoteProgress)
		chair.POST("/vote/ballots", chairHandler.RecordVote)
		chair.POST("/vote/end", chairHandler.EndVote)
		chair.GET("/score", chairHandler.Score)

		// 發言名單
		chair.POST("/speakers", chairHandler.AddSpeaker)
		chair.DELETE("/speakers/:id", chairHandler.RemoveSpeaker)
		chair.POST("/speakers/active", chairHandler.SetActiveSpeaker)
		chair.PUT("/speakers/duration", chairHandler.SetSpeakerDuration)
		chair.GET("/speakers/clock", chairHandler.SpeakerClock)

		chair.POST("/crisis/:list", chairHandler.AddCrisisItem)
		chair.POST("/archive", chairHandler.AddToArchive)
		chair.POST("/checklists/:kind/:step/toggle", chairHandler.ToggleChecklistStep)
		chair.DELETE("/checklists/:kind", chairHandler.ResetChecklist)
		chair.PUT("/emoji", chairHandler.SetEmoji)

		chair.POST("/save", chairHandler.Save)
		chair.DELETE("/session", chairHandler.CloseSession)
		chair.GET("/activity", chairHandler.Activity)
		chair.GET("/ws", wsHandler.HandleWebSocket)
	}

	delegate := identified.Group("/delegate")
	{
		delegate.GET("", delegateHandler.GetState)
		delegate.POST("/conferences", delegateHandler.AddConference)
		delegate.DELETE("/conferences/:id", delegateHandler.RemoveConference)
		delegate.POST("/conferences/:id/activate", delegateHandler.ActivateConference)
		delegate.PATCH("/active", delegateHandler.UpdateActive)
		delegate.POST("/active/matrix", delegateHandler.AddMatrixEntry)
		delegate.DELETE("/active/matrix/:index", delegateHandler.RemoveMatrixEntry)
		delegate.POST("/active/checklist/:key/toggle", delegateHandler.ToggleChecklist)
		delegate.POST("/active/sources/:list", delegateHandler.AddSource)
		delegate.DELETE("/active/sources/:list/:index", delegateHandler.RemoveSource)
		delegate.POST("/active/resources", delegateHandler.AddResource)
		delegate.DELETE("/active/resources/:index", delegateHandler.RemoveResource)
		delegate.GET("/countdowns", delegateHandler.Countdowns)
		delegate.POST("/save", delegateHandler.Save)
		delegate.DELETE("/session", delegateHandler.CloseSession)
	}
}
