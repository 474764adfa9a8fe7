// Package gateway exposes the HTTP surface of the bot: slash commands,
// interactive payloads, the events API, the OAuth install callback,
// and health endpoints. Requests are verified, turned into triage
// requests, and handed to a worker pool through the request bus.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crestline/triagebot/pkg/bus"
	"github.com/crestline/triagebot/pkg/config"
	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/metrics"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/store"
	"github.com/crestline/triagebot/pkg/triage"
)

// Server wires the HTTP handlers to the triage machinery.
type Server struct {
	cfg     *config.Config
	store   store.Store
	runner  *triage.Runner
	bus     *bus.RequestBus
	meters  *metrics.Store
	factory slackapi.Factory

	httpSrv *http.Server
	workers *errgroup.Group
	cancel  context.CancelFunc
	ready   atomic.Bool
	started time.Time
}

func NewServer(cfg *config.Config, st store.Store, runner *triage.Runner, rb *bus.RequestBus, meters *metrics.Store, factory slackapi.Factory) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		runner:  runner,
		bus:     rb,
		meters:  meters,
		factory: factory,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /slack/command", s.handleCommand)
	mux.HandleFunc("POST /slack/interactive", s.handleInteractive)
	mux.HandleFunc("POST /slack/events", s.handleEvents)
	mux.HandleFunc("GET /slack/oauth/callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /statusz", s.handleStatusz)

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the mux for httptest.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start launches the worker pool and the HTTP listener. It returns
// once the listener is up; ListenAndServe errors after startup are
// logged, not returned.
func (s *Server) Start(ctx context.Context) error {
	workCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.workers, _ = errgroup.WithContext(workCtx)
	for i := 0; i < s.cfg.Triage.Workers; i++ {
		s.workers.Go(func() error {
			s.workLoop(workCtx)
			return nil
		})
	}

	go func() {
		logger.InfoCF("gateway", "Listening", map[string]any{
			"addr": s.httpSrv.Addr,
		})
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("gateway", "HTTP server failed", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	s.started = time.Now()
	s.ready.Store(true)
	return nil
}

// Stop drains in reverse order: stop accepting HTTP, close the bus so
// workers finish the queue, then wait for them.
func (s *Server) Stop(ctx context.Context) error {
	s.ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "HTTP shutdown incomplete", map[string]any{
			"error": err.Error(),
		})
	}

	s.bus.Close()
	if s.cancel != nil {
		s.cancel()
	}
	if s.workers != nil {
		_ = s.workers.Wait()
	}
	logger.InfoC("gateway", "Gateway stopped")
	return nil
}

func (s *Server) workLoop(ctx context.Context) {
	for {
		req, ok := s.bus.ConsumeRequest(ctx)
		if !ok {
			return
		}
		if err := s.runner.Execute(ctx, req); err != nil {
			logger.ErrorCF("gateway", "Triage request failed", map[string]any{
				"run":     req.ID,
				"tenant":  req.TenantID,
				"channel": req.ChannelID,
				"error":   err.Error(),
			})
		}
	}
}

// isAllowed applies the requester allow-list. An empty list allows
// everyone in the workspace.
func (s *Server) isAllowed(userID string) bool {
	if len(s.cfg.Slack.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range s.cfg.Slack.AllowFrom {
		if userID == allowed {
			return true
		}
	}
	return false
}

func (s *Server) enqueue(ctx context.Context, req triage.Request) error {
	if err := s.bus.PublishRequest(ctx, req); err != nil {
		return fmt.Errorf("queueing triage request: %w", err)
	}
	logger.InfoCF("gateway", "Triage request queued", map[string]any{
		"run":     req.ID,
		"tenant":  req.TenantID,
		"channel": req.ChannelID,
		"hours":   req.HoursBack,
	})
	return nil
}
