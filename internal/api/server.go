// Package api exposes the on-demand synchronization trigger over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"dayahead/internal/config"
	"dayahead/internal/model"
	"dayahead/internal/service"
)

// Synchronizer runs an on-demand synchronization.
type Synchronizer interface {
	Synchronize(ctx context.Context, start, stop time.Time, pair model.DomainPair) (service.Result, error)
}

// Server hosts the REST surface.
type Server struct {
	cfg     config.APIConfig
	handler http.Handler
	logger  zerolog.Logger
}

// New builds the router. metrics may be nil.
func New(cfg config.APIConfig, sync Synchronizer, defaultPair model.DomainPair, metrics http.Handler, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(errorHandler())

	h := &handlers{sync: sync, defaultPair: defaultPair, logger: logger}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	router.POST("/dayahead", h.synchronize)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	return &Server{cfg: cfg, handler: corsHandler.Handler(router), logger: logger}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("api server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

func errorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
			Error: errorDetail{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"},
		})
	})
}
