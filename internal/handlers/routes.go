package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/discussion"
	"dev.roundtable.agent/internal/observability/metrics"
)

// NewEngine wires the session API, stream endpoint and metrics endpoint
// into a gin engine.
func NewEngine(manager *discussion.Manager, collector *metrics.Collector, log *logrus.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	dh := NewDiscussionHandler(manager, log)
	sh := NewStreamHandler(manager, log)

	engine.GET("/health", dh.Health)
	if collector != nil {
		engine.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	v1 := engine.Group("/v1")
	{
		v1.POST("/discussions", dh.Start)
		v1.POST("/discussions/messages", dh.AddMessage)
		v1.POST("/discussions/responses", dh.GenerateResponses)
		v1.GET("/discussions/next-speakers", dh.NextSpeakers)
		v1.POST("/discussions/advance", dh.AdvanceRound)
		v1.GET("/discussions/status", dh.Status)
		v1.POST("/discussions/end", dh.End)
		v1.GET("/discussions/stream", sh.Stream)
		v1.GET("/usage", dh.Usage)
	}

	return engine
}
