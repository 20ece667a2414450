// Package httpapi exposes the planning services as a JSON API under
// /v1/users/:user.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexanderramin/cadence/internal/app"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	app  *app.App
	gin  *gin.Engine
	log  *zap.Logger
	addr string
}

func New(a *app.App, cfg config.HTTPConfig) (*Server, error) {
	if a == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Addr == "" {
		return nil, errors.New("http address is required")
	}
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	srv := &Server{
		app:  a,
		gin:  gin.New(),
		log:  a.Log.Named("http"),
		addr: cfg.Addr,
	}
	srv.gin.Use(gin.Recovery(), requestLogger(srv.log))
	srv.mapHandlers()
	return srv, nil
}

// Handler returns the routed engine, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.gin }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	hs := &http.Server{
		Addr:              s.addr,
		Handler:           s.gin,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.addr))
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func (s *Server) mapHandlers() {
	s.gin.GET("/health", s.health)

	u := s.gin.Group("/v1/users/:user")

	tasks := u.Group("/tasks")
	tasks.POST("", s.addTask)
	tasks.GET("", s.listTasks)
	tasks.GET("/:id", s.getTask)
	tasks.DELETE("/:id", s.deleteTask)
	tasks.POST("/:id/start", s.startTask)
	tasks.POST("/:id/complete", s.completeTask)
	u.POST("/import", s.importTasks)

	u.GET("/schedule/:week", s.getWeek)
	u.PUT("/schedule/:week", s.setSchedule)

	plans := u.Group("/plans")
	plans.POST("", s.generatePlan)
	plans.GET("", s.listPlans)
	plans.GET("/:id", s.getPlan)
	plans.POST("/:id/refine", s.refinePlan)
	plans.POST("/:id/execute", s.executePlan)
	u.POST("/replan", s.replan)

	u.GET("/profile", s.getProfile)
	u.PATCH("/profile", s.updateProfile)
	u.POST("/reviews", s.submitReview)
	u.GET("/insights", s.insights)
	u.GET("/history", s.history)
}

func (s *Server) health(c *gin.Context) {
	ok(c, gin.H{"status": "healthy", "service": "cadence"})
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			log.Error("request failed", append(fields, zap.String("error", c.Errors.String()))...)
			return
		}
		log.Debug("request", fields...)
	}
}
