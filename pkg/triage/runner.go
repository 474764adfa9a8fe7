package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/metrics"
)

// Status represents the current state of a triage run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Run tracks the runtime state of one triage request.
type Run struct {
	ID        string
	TenantID  string
	ChannelID string
	Status    Status
	StartTime time.Time
	EndTime   time.Time
	Scanned   int
	Matched   int
	Error     string

	done chan struct{}
}

// Runner executes triage requests with a duration guardrail and keeps
// one run per tenant/channel pair in flight at a time.
type Runner struct {
	mu       sync.RWMutex
	runs     map[string]*Run
	active   map[string]string
	cancel   map[string]context.CancelFunc
	pipeline *Pipeline
	meters   *metrics.Store
	maxRun   time.Duration
}

// NewRunner creates a runner. maxRunMinutes bounds each run; runs that
// exceed it are canceled and marked failed.
func NewRunner(pipeline *Pipeline, meters *metrics.Store, maxRunMinutes int) *Runner {
	if maxRunMinutes <= 0 {
		maxRunMinutes = 2
	}
	return &Runner{
		runs:     make(map[string]*Run),
		active:   make(map[string]string),
		cancel:   make(map[string]context.CancelFunc),
		pipeline: pipeline,
		meters:   meters,
		maxRun:   time.Duration(maxRunMinutes) * time.Minute,
	}
}

func activeKey(tenantID, channelID string) string {
	return tenantID + "/" + channelID
}

// Start begins executing a request asynchronously. The returned Run is
// a detached copy; poll GetStatus for progress.
func (r *Runner) Start(ctx context.Context, req Request) (*Run, error) {
	run, err := r.start(ctx, req)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return run.snapshot(), nil
}

// start registers and launches the run, returning the live record so
// Execute can wait on its done channel.
func (r *Runner) start(ctx context.Context, req Request) (*Run, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("run ID is required")
	}
	if req.TenantID == "" || req.ChannelID == "" {
		return nil, fmt.Errorf("tenant and channel are required")
	}

	key := activeKey(req.TenantID, req.ChannelID)

	r.mu.Lock()
	if runID, busy := r.active[key]; busy {
		r.mu.Unlock()
		return nil, fmt.Errorf("triage already running in %s (run %s)", req.ChannelID, runID)
	}

	run := &Run{
		ID:        req.ID,
		TenantID:  req.TenantID,
		ChannelID: req.ChannelID,
		Status:    StatusRunning,
		StartTime: time.Now(),
		done:      make(chan struct{}),
	}
	r.runs[req.ID] = run
	r.active[key] = req.ID

	runCtx, cancelFn := context.WithTimeout(ctx, r.maxRun)
	r.cancel[req.ID] = cancelFn
	r.mu.Unlock()

	go r.run(runCtx, run, req)

	return run, nil
}

// Execute runs a request synchronously, for worker loops that manage
// their own concurrency. The same dedup and timeout rules apply.
func (r *Runner) Execute(ctx context.Context, req Request) error {
	run, err := r.start(ctx, req)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-run.done:
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if run.Status != StatusCompleted {
		return fmt.Errorf("run %s %s: %s", run.ID, run.Status, run.Error)
	}
	return nil
}

// GetStatus returns a detached copy of a run's current state. The live
// record keeps changing while the run executes, so callers get a copy
// they can read and encode without holding the runner's lock.
func (r *Runner) GetStatus(runID string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return run.snapshot(), nil
}

// ListRuns returns detached copies of all tracked runs.
func (r *Runner) ListRuns() []*Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		result = append(result, run.snapshot())
	}
	return result
}

// snapshot copies the run's exported state. Callers must hold the
// runner's lock.
func (run *Run) snapshot() *Run {
	c := *run
	c.done = nil
	return &c
}

func (r *Runner) run(ctx context.Context, run *Run, req Request) {
	defer close(run.done)
	defer func() {
		r.mu.Lock()
		delete(r.active, activeKey(run.TenantID, run.ChannelID))
		if cancel, ok := r.cancel[run.ID]; ok {
			cancel()
			delete(r.cancel, run.ID)
		}
		r.mu.Unlock()
	}()

	res, err := r.pipeline.Execute(ctx, req)

	event := metrics.RunEvent{
		WindowHours: req.HoursBack,
		Timestamp:   time.Now(),
	}

	r.mu.Lock()
	run.EndTime = time.Now()
	event.Duration = run.EndTime.Sub(run.StartTime)
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		if ctx.Err() != nil {
			run.Status = StatusCanceled
		}
		event.Failed = true
	} else {
		run.Status = StatusCompleted
		run.Scanned = res.Scanned
		run.Matched = res.Matched
		event.Scanned = res.Scanned
		event.Matched = res.Matched
		event.ExportBytes = res.ExportBytes
	}
	r.mu.Unlock()

	if r.meters != nil {
		r.meters.Record(run.TenantID, run.ChannelID, event)
	}

	if err != nil {
		logger.ErrorCF("triage", "Run failed", map[string]any{
			"run":     run.ID,
			"tenant":  run.TenantID,
			"channel": run.ChannelID,
			"error":   err.Error(),
		})
		return
	}
	logger.InfoCF("triage", "Run completed", map[string]any{
		"run":     run.ID,
		"channel": run.ChannelID,
		"scanned": res.Scanned,
		"matched": res.Matched,
	})
}
