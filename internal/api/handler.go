// Package api exposes the session control and status endpoints.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"supertrend-core/internal/engine"
	"supertrend-core/internal/strategy"
	"supertrend-core/pkg/db"
)

// timeNow is swapped out by tests.
var timeNow = time.Now

// Server wires HTTP endpoints around the session service and the ledger.
type Server struct {
	Router  *gin.Engine
	Service engine.Service
	Ledger  *db.Ledger
	Log     zerolog.Logger
}

// NewServer builds the router with the standard middleware stack.
func NewServer(svc engine.Service, ledger *db.Ledger, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(log))
	r.Use(RateLimitMiddleware())

	s := &Server{
		Router:  r,
		Service: svc,
		Ledger:  ledger,
		Log:     log.With().Str("component", "api").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.POST("/session/start", s.startSession)
		api.POST("/session/stop", s.stopSession)
		api.PUT("/risk", s.updateRisk)
		api.GET("/trades/recent", s.getRecentTrades)
		api.GET("/summary/today", s.getTodaySummary)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Service.Status())
}

func (s *Server) startSession(c *gin.Context) {
	if err := s.Service.StartSession(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) stopSession(c *gin.Context) {
	s.Service.StopSession()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) updateRisk(c *gin.Context) {
	var p strategy.RiskParams
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid risk params: " + err.Error()})
		return
	}
	if p.MaxDailyLoss < 0 || p.MaxTrades < 0 || p.LotSize < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "risk params must be non-negative"})
		return
	}
	s.Service.UpdateRiskParams(p)
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (s *Server) getRecentTrades(c *gin.Context) {
	n, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	trades, err := s.Ledger.RecentTrades(c.Request.Context(), n)
	if err != nil {
		s.Log.Error().Err(err).Msg("recent trades query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) getTodaySummary(c *gin.Context) {
	day, err := s.Ledger.DailySummary(c.Request.Context(), timeNow())
	if err != nil {
		s.Log.Error().Err(err).Msg("daily summary query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, day)
}
