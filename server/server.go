// Package server exposes tree stores to browser UIs over HTTP and websockets.
// Each browser session gets its own store, seeded from the configured tree.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/gorilla/websocket"

	"github.com/brettbedarf/webtree"
	"github.com/brettbedarf/webtree/config"
	"github.com/brettbedarf/webtree/internal/util"
)

const shutdownTimeout = 5 * time.Second

// Server holds the session registry and the HTTP plumbing around it
type Server struct {
	cfg      *config.Config
	seed     webtree.Tree
	sessions *Sessions
	metrics  *metrics
	engine   *gin.Engine
	upgrader websocket.Upgrader
}

// New creates a Server whose sessions start from a copy of seed
func New(cfg *config.Config, seed webtree.Tree) *Server {
	s := &Server{
		cfg:      cfg,
		seed:     seed.Clone(),
		sessions: NewSessions(cfg.MaxSessions),
		metrics:  newMetrics(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	if cfg.LogLvl > util.DebugLevel && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), corsMiddleware(cfg.AllowOrigins))
	s.registerRoutes(engine)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Sessions returns the live session registry
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// checkOrigin allows websocket upgrades from the configured CORS origins.
// Requests without an Origin header are not from a browser and are allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || allowAllOrigins(s.cfg.AllowOrigins) {
		return true
	}
	return slices.Contains(s.cfg.AllowOrigins, origin)
}

// reap ends idle sessions; run periodically by the scheduler
func (s *Server) reap() {
	n := s.sessions.Reap(s.cfg.SessionTTL)
	s.metrics.reaped.Add(float64(n))
	s.metrics.sessions.Set(float64(s.sessions.Len()))
}

// Serve listens on the configured address and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is [Server.Serve] on an existing listener
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	logger := util.GetLogger("Server")

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(s.cfg.ReapInterval).Do(s.reap); err != nil {
		ln.Close()
		return err
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          util.NewLogLogger("http.Server", util.ErrorLevel),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving tree API")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeAsync runs [Server.Serve] in a goroutine and reports its result on the returned channel
func (s *Server) ServeAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(ctx)
		close(done)
	}()

	return done
}
