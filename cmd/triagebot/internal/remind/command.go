package remind

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crestline/triagebot/cmd/triagebot/internal"
	"github.com/crestline/triagebot/pkg/reminder"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/store"
)

func NewRemindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remind",
		Short:   "Fire the reminder once, outside the schedule",
		Example: "triagebot remind",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return remindCmd()
		},
	}

	return cmd
}

func remindCmd() error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	ctx := context.Background()

	var st store.Store
	if cfg.Store.Driver == "postgres" {
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return fmt.Errorf("error opening postgres store: %w", err)
		}
	} else {
		return fmt.Errorf("manual reminders need the postgres store, the memory store is empty between runs")
	}
	defer st.Close()

	scheduler := reminder.NewScheduler(st, reminder.InstallerDM(slackapi.New, cfg.Reminder.Text), cfg.Reminder.Schedule)
	if err := scheduler.TriggerNow(ctx); err != nil {
		return fmt.Errorf("error firing reminder: %w", err)
	}
	fmt.Println("Reminder sent")
	return nil
}
