package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crestline/triagebot/cmd/triagebot/internal"
	"github.com/crestline/triagebot/pkg/auth"
	"github.com/crestline/triagebot/pkg/bus"
	"github.com/crestline/triagebot/pkg/config"
	"github.com/crestline/triagebot/pkg/export"
	"github.com/crestline/triagebot/pkg/gateway"
	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/metrics"
	"github.com/crestline/triagebot/pkg/reminder"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/store"
	"github.com/crestline/triagebot/pkg/triage"
)

func serveCmd(debug, noReminder bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	meters := metrics.NewStore()
	requestBus := bus.NewRequestBus()
	pipeline := triage.NewPipeline(
		auth.NewResolver(st),
		slackapi.New,
		export.CSV{},
		cfg.Taxonomy,
		cfg.Triage.PageSize,
		cfg.Triage.MaxPages,
	)
	runner := triage.NewRunner(pipeline, meters, cfg.Triage.MaxRunMinutes)

	server := gateway.NewServer(cfg, st, runner, requestBus, meters, slackapi.New)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("error starting gateway: %w", err)
	}
	fmt.Printf("Gateway started on %s\n", cfg.ListenAddr())

	var scheduler *reminder.Scheduler
	if cfg.Reminder.Enabled && !noReminder {
		scheduler = reminder.NewScheduler(st, reminder.InstallerDM(slackapi.New, cfg.Reminder.Text), cfg.Reminder.Schedule)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("error starting reminder scheduler: %w", err)
		}
		fmt.Printf("Reminder scheduler started (%s)\n", cfg.Reminder.Schedule)
	}

	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	if err := server.Stop(context.Background()); err != nil {
		logger.WarnCF("serve", "Shutdown incomplete", map[string]any{"error": err.Error()})
	}
	fmt.Println("Gateway stopped")

	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("error opening postgres store: %w", err)
		}
		logger.InfoC("serve", "Using postgres installation store")
		return st, nil
	default:
		logger.WarnC("serve", "Using in-memory installation store, installs are lost on restart")
		return store.NewMemory(), nil
	}
}
