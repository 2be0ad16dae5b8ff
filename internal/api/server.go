// Package api serves the local console: a JSON API over the engine's state
// and the mutation gateway, plus health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/shiftguard/internal/account"
	"github.com/roach88/shiftguard/internal/attendance"
	"github.com/roach88/shiftguard/internal/model"
	"github.com/roach88/shiftguard/internal/replication"
)

// Options configures the console server.
type Options struct {
	Issuer          string
	SigningKey      string
	SessionTTL      time.Duration
	RateLimitPerMin int
	Location        *time.Location
	Gatherer        prometheus.Gatherer
	Now             func() time.Time
}

// Server is the console HTTP API.
type Server struct {
	gw       *attendance.Gateway
	engine   *replication.Engine
	accounts *account.Service
	opts     Options
	log      *slog.Logger
	now      func() time.Time
	router   *gin.Engine
}

// New builds the server and its routes.
func New(gw *attendance.Gateway, accounts *account.Service, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		gw:       gw,
		engine:   gw.Engine(),
		accounts: accounts,
		opts:     opts,
		log:      logger,
		now:      now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	if s.opts.RateLimitPerMin > 0 {
		r.Use(newIPLimiter(s.opts.RateLimitPerMin, s.opts.RateLimitPerMin, s.now).middleware())
	}

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", s.healthz)

	r.POST("/v1/session", s.login)
	r.POST("/v1/users", s.register)
	r.POST("/v1/password-recovery", s.recoverPassword)

	owner := requireRole(model.RoleOwner)
	staff := requireRole(model.RoleOwner, model.RoleAdmin)

	v1 := r.Group("/v1", s.sessionAuth())
	v1.DELETE("/session", s.logout)
	v1.GET("/state", s.state)
	v1.GET("/status", s.status)
	v1.POST("/sync", s.sync)
	v1.GET("/reports", s.reports)
	v1.POST("/workers/:id/toggle", s.toggleWorker)

	v1.GET("/dashboard", staff, s.dashboard)
	v1.POST("/workers", staff, s.addWorker)
	v1.PATCH("/workers/:id", staff, s.updateWorker)
	v1.DELETE("/workers/:id", staff, s.deleteWorker)
	v1.POST("/bulk", staff, s.bulk)
	v1.DELETE("/logs/:id", staff, s.deleteLog)

	v1.PUT("/teams/:team", owner, s.renameTeam)
	v1.DELETE("/logs", owner, s.flushLogs)
	v1.DELETE("/login-logs/:id", owner, s.deleteLoginLog)
	v1.DELETE("/users/:id", owner, s.deleteUser)
	v1.POST("/roster/reset", owner, s.resetRoster)
	v1.POST("/bridge/toggle", owner, s.toggleBridge)
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("console listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// requestLogger logs one line per request, skipping /healthz and /metrics.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			return
		}
		log.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
