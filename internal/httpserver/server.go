// Package httpserver exposes a small local HTTP API to inspect the client
// and request an early refresh.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/byod/internal/model"
	"github.com/tinytelemetry/byod/internal/poller"
	"github.com/tinytelemetry/byod/internal/render"
)

const defaultHistoryLimit = 50

// StatusSource reports the poller state.
type StatusSource interface {
	Status() poller.Status
}

// StatsSource reports the renderer counters.
type StatsSource interface {
	Stats() render.Stats
}

// Refresher requests an early poll.
type Refresher interface {
	Notify() bool
	Pending() bool
}

// Deps are the narrow views of the running client the API reads from.
// History may be nil when the history store is disabled.
type Deps struct {
	Poller    StatusSource
	Renderer  StatsSource
	History   model.HistoryReader
	Refresher Refresher
}

// Server provides the local HTTP API.
type Server struct {
	addr      string
	deps      Deps
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = "127.0.0.1:2300"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// routes builds the gin engine.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)
	api.GET("/history", s.handleHistory)
	api.POST("/refresh", s.handleRefresh)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	st := s.deps.Poller.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
		"cycles": st.Cycles,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.deps.Poller.Status()

	body := gin.H{
		"interval_seconds": st.Interval.Seconds(),
		"cycles":           st.Cycles,
		"refresh_pending":  s.deps.Refresher.Pending(),
	}
	if !st.NextPollAt.IsZero() {
		body["next_poll_at"] = st.NextPollAt.UTC()
	}
	if st.LastCycle != nil {
		body["last_cycle"] = st.LastCycle
	}
	if st.LastDirective != nil {
		body["directive"] = st.LastDirective
	}
	if s.deps.Renderer != nil {
		body["renderer"] = s.deps.Renderer.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	cycles, err := s.deps.History.RecentCycles(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	counts, err := s.deps.History.OutcomeCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read outcome counts"})
		return
	}
	if cycles == nil {
		cycles = []model.CycleRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"cycles":   cycles,
		"count":    len(cycles),
		"outcomes": counts,
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	queued := s.deps.Refresher.Notify()
	c.JSON(http.StatusAccepted, gin.H{
		"queued":    queued,
		"collapsed": !queued,
	})
}
