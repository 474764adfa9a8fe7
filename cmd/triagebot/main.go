package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/crestline/triagebot/cmd/triagebot/internal"
	"github.com/crestline/triagebot/cmd/triagebot/internal/remind"
	"github.com/crestline/triagebot/cmd/triagebot/internal/serve"
	"github.com/crestline/triagebot/cmd/triagebot/internal/version"
)

func NewTriagebotCommand() *cobra.Command {
	short := fmt.Sprintf("triagebot - channel triage summaries v%s", internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "triagebot",
		Short:   short,
		Example: "triagebot serve",
	}

	cmd.AddCommand(
		serve.NewServeCommand(),
		remind.NewRemindCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	_ = godotenv.Load()

	cmd := NewTriagebotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
