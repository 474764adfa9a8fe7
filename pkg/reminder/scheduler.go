// Package reminder fires a periodic nudge to every installed
// workspace on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/store"
)

// Sender delivers one reminder to one installed workspace.
type Sender func(ctx context.Context, inst store.Installation) error

// InstallerDM returns a Sender that DMs text to whoever installed the
// bot in each workspace, using that workspace's own token.
func InstallerDM(factory slackapi.Factory, text string) Sender {
	return func(_ context.Context, inst store.Installation) error {
		if inst.InstallerUserID == "" {
			return fmt.Errorf("installation %s has no installer to remind", inst.TenantID)
		}
		api := factory(inst.BotToken)
		_, _, err := api.PostMessage(inst.InstallerUserID, slack.MsgOptionText(text, false))
		return err
	}
}

// Scheduler evaluates a cron expression once a minute and fans the
// reminder out to all tenants when it is due. Send errors are logged
// per tenant, never retried, and never stop the schedule.
type Scheduler struct {
	store    store.Store
	sender   Sender
	schedule string

	gron    *gronx.Gronx
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

func NewScheduler(s store.Store, sender Sender, schedule string) *Scheduler {
	return &Scheduler{
		store:    s,
		sender:   sender,
		schedule: schedule,
		gron:     gronx.New(),
	}
}

// Start begins the minute ticker. It fails fast on an invalid
// expression instead of silently never firing.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.gron.IsValid(s.schedule) {
		return fmt.Errorf("invalid reminder schedule %q", s.schedule)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(runCtx)

	logger.InfoCF("reminder", "Scheduler started", map[string]any{
		"schedule": s.schedule,
	})
	return nil
}

// Stop halts the ticker and waits for an in-flight fire to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	logger.InfoC("reminder", "Scheduler stopped")
}

// TriggerNow fires the reminder immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	return s.fire(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := s.gron.IsDue(s.schedule, now)
			if err != nil {
				logger.ErrorCF("reminder", "Schedule evaluation failed", map[string]any{
					"schedule": s.schedule,
					"error":    err.Error(),
				})
				continue
			}
			if !due {
				continue
			}
			if err := s.fire(ctx); err != nil {
				logger.ErrorCF("reminder", "Fire failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) error {
	installs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing installations: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	var failed int64
	var mu sync.Mutex

	for _, inst := range installs {
		g.Go(func() error {
			if err := s.sender(gctx, inst); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				logger.WarnCF("reminder", "Send failed", map[string]any{
					"tenant": inst.TenantID,
					"error":  err.Error(),
				})
			}
			// One tenant failing must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	logger.InfoCF("reminder", "Reminder fired", map[string]any{
		"tenants": len(installs),
		"failed":  failed,
	})
	return nil
}
