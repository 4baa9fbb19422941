// Package router registers the legal RAG HTTP routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/legal-rag/internal/legalrag/handler"
	"github.com/kart-io/legal-rag/pkg/infra/app"
)

// APIPrefix is the route group of the query API.
const APIPrefix = "/v1/legal"

// Register registers the legal RAG routes on the engine. gatherer backs
// /metrics; a nil gatherer leaves the endpoint out.
func Register(r gin.IRouter, h *handler.Handler, gatherer prometheus.Gatherer) {
	logger.Info("Registering legal RAG routes...")

	api := r.Group(APIPrefix)
	{
		api.POST("/search", h.Search)
		api.POST("/ask", h.Ask)
		api.POST("/optimize", h.Optimize)
		api.POST("/analyze", h.Analyze)
		api.POST("/compare", h.Compare)
		api.POST("/batch", h.Batch)
		api.GET("/suggest", h.Suggest)

		api.GET("/tools", h.ListTools)
		api.POST("/tools/:kind", h.Tool)

		api.GET("/stats", h.Stats)
	}

	r.GET("/healthz", h.Health)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, app.GetVersionInfo())
	})

	logger.Info("HTTP routes registered")
}
