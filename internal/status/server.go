// Package status serves the tracker's local health and inspection endpoints.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marvelcn015/crypto-tracker/internal/connection"
	"github.com/marvelcn015/crypto-tracker/internal/market"
	"github.com/marvelcn015/crypto-tracker/internal/model"
	"github.com/marvelcn015/crypto-tracker/internal/tracker"
	"github.com/marvelcn015/crypto-tracker/internal/version"
)

// Health values reported by /health.
const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

// Tracker is the view of the service the status server reads.
type Tracker interface {
	Status() tracker.Status
	Store() *market.Store
}

// Pinger checks the snapshot database. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes /health, /status, /assets, /alerts and /favorites.
type Server struct {
	tracker Tracker
	db      Pinger
	logger  *slog.Logger
	engine  *gin.Engine
	srv     *http.Server
}

// NewServer creates a status server. db may be nil when snapshots are off.
func NewServer(port int, t Tracker, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		tracker: t,
		db:      db,
		logger:  logger.With("component", "status"),
		engine:  engine,
	}
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/assets", s.getAssets)
	s.engine.GET("/assets/:id", s.getAsset)
	s.engine.GET("/alerts", s.getAlerts)
	s.engine.GET("/favorites", s.getFavorites)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting status server", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	st := s.tracker.Status()
	health := Healthy
	components := gin.H{
		"channel": st.Channel,
		"store": gin.H{
			"assets": st.Store.Assets,
			"alerts": st.Store.Alerts,
		},
	}

	if st.Channel.Status != connection.StatusConnected || st.Store.Assets == 0 {
		health = Degraded
	}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			health = Unhealthy
			components["database"] = gin.H{"status": "disconnected", "error": err.Error()}
		} else {
			components["database"] = "connected"
		}
	}

	code := http.StatusOK
	if health == Unhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     health,
		"version":    version.Get(),
		"components": components,
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.tracker.Status())
}

func (s *Server) getAssets(c *gin.Context) {
	assets := s.tracker.Store().Assets()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(assets),
		"assets": assets,
	})
}

func (s *Server) getAsset(c *gin.Context) {
	a, ok := s.tracker.Store().Asset(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) getAlerts(c *gin.Context) {
	status := model.AlertStatus(c.Query("status"))
	switch status {
	case "", model.AlertPending, model.AlertTriggered:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", status)})
		return
	}

	alerts := s.tracker.Store().Alerts(status)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) getFavorites(c *gin.Context) {
	favorites := s.tracker.Store().Favorites()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(favorites),
		"favorites": favorites,
	})
}
