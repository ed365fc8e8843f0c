// Package server exposes capabilities, accounts, posts and publishing over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blacktop/postgate/internal/auth"
	"github.com/blacktop/postgate/internal/availability"
	"github.com/blacktop/postgate/internal/logutil"
	"github.com/blacktop/postgate/internal/metrics"
	"github.com/blacktop/postgate/internal/postgate"
	"github.com/blacktop/postgate/internal/publish"
	"github.com/gin-gonic/gin"
)

// Store is the storage surface the handlers need.
type Store interface {
	publish.Store
	CreateAccount(ctx context.Context, a postgate.SocialAccount) (postgate.SocialAccount, error)
	CreatePost(ctx context.Context, p postgate.Post, targetAccountIDs []int64) (postgate.Post, error)
}

// Server holds the handler dependencies.
type Server struct {
	store        Store
	evaluator    *availability.Evaluator
	orchestrator *publish.Orchestrator
	secret       []byte
}

// New wires the handlers. queue receives the ids of targets routed for publishing.
func New(store Store, queue publish.Queue, secret []byte) *Server {
	return &Server{
		store:        store,
		evaluator:    availability.NewEvaluator(store),
		orchestrator: publish.NewOrchestrator(store, queue),
		secret:       secret,
	}
}

// Handler builds the gin engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.Instrument(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/", auth.RequireUser(s.secret))
	api.GET("/capabilities", s.capabilities)
	api.POST("/capabilities/validate", s.validate)
	api.GET("/accounts", s.listAccounts)
	api.POST("/accounts", s.createAccount)
	api.POST("/posts", s.createPost)
	api.GET("/posts/:id", s.getPost)
	api.POST("/posts/:id/publish", s.publish)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logutil.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logutil.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

// fail maps storage errors onto responses.
func fail(c *gin.Context, err error) {
	if errors.Is(err, postgate.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	logutil.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
}
