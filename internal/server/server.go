// Package server exposes the reply contract and per-user chat sessions over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	Config         config.ServerConfig
	Gateway        chat.Gateway
	GatewayTimeout time.Duration
	Sessions       *Sessions
	Logger         zerolog.Logger
}

// Server is the mentor HTTP API.
type Server struct {
	cfg      config.ServerConfig
	router   *gin.Engine
	sessions *Sessions
	log      zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New builds the router. Sessions may be nil, in which case only the reply
// contract is served.
func New(opts Options) *Server {
	log := opts.Logger.With().Str("component", "server").Logger()
	stop := make(chan struct{})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.Use(MetricsRecorder())
	router.Use(cors.New(corsConfig(opts.Config.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		reply := NewReplyHandler(opts.Gateway, opts.GatewayTimeout, opts.Logger)
		api.POST("/gemini", reply.Reply)
		api.POST("/reply", reply.Reply)

		if opts.Sessions != nil {
			NewSessionHandler(opts.Sessions, stop).Register(api.Group("/sessions/:user"))
		}
	}

	return &Server{
		cfg:      opts.Config,
		router:   router,
		sessions: opts.Sessions,
		log:      log,
		stop:     stop,
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (s *Server) closeStreams() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully and flushes
// session writes.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	// Event streams never finish on their own.
	srv.RegisterOnShutdown(s.closeStreams)

	if s.sessions != nil {
		sweepCtx, stopSweep := context.WithCancel(ctx)
		defer stopSweep()
		go s.sessions.RunSweeper(sweepCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if s.sessions != nil {
		s.sessions.Close()
	}
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
