// Package httpapi serves the reasoner over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/config"
)

const reasonerKey = "reasoner"

// Server routes API requests to the Reasoner published on a gate.
type Server struct {
	gate   *ontoreason.ReadyGate
	cfg    config.ServerConfig
	logger *zap.Logger
	router *gin.Engine
}

// New builds the router. Requests other than /healthz and /metrics get 503
// until gate holds a Reasoner.
func New(gate *ontoreason.ReadyGate, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{gate: gate, cfg: cfg, logger: logger, router: gin.New()}
	s.router.Use(gin.Recovery(), s.accessLog())

	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.Use(s.requireReady())
	{
		v1.POST("/enrich", s.handleEnrich)
		v1.POST("/enrich/batch", s.handleEnrichBatch)
		v1.POST("/query", s.handleQuery)
		v1.GET("/ontology/stats", s.handleStats)
		v1.GET("/ontology/export", s.handleExport)
		v1.GET("/consistency", s.handleConsistency)
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. At most cfg.MaxConnections connections are served at once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("http server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("max_connections", s.cfg.MaxConnections),
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) requireReady() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := s.gate.Get()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.Set(reasonerKey, r)
		c.Next()
	}
}

func reasoner(c *gin.Context) *ontoreason.Reasoner {
	return c.MustGet(reasonerKey).(*ontoreason.Reasoner)
}
