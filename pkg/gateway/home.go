package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/crestline/triagebot/pkg/logger"
)

const (
	triageModalCallbackID = "triage_window"
	openTriageModalAction = "open_triage_modal"
	modalChannelBlock     = "channel_block"
	modalChannelAction    = "channel_select"
	modalHoursBlock       = "hours_block"
	modalHoursAction      = "hours_input"
)

// triageModal builds the channel/window picker opened from the home
// panel.
func triageModal(defaultHours int) slack.ModalViewRequest {
	channelSelect := slack.NewOptionsSelectBlockElement(
		slack.OptTypeConversations,
		slack.NewTextBlockObject(slack.PlainTextType, "Pick a channel", false, false),
		modalChannelAction,
	)
	hoursInput := slack.NewPlainTextInputBlockElement(
		slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("Hours to scan (default %d)", defaultHours), false, false),
		modalHoursAction,
	)

	return slack.ModalViewRequest{
		Type:       slack.VTModal,
		CallbackID: triageModalCallbackID,
		Title:      slack.NewTextBlockObject(slack.PlainTextType, "Run triage", false, false),
		Submit:     slack.NewTextBlockObject(slack.PlainTextType, "Scan", false, false),
		Close:      slack.NewTextBlockObject(slack.PlainTextType, "Cancel", false, false),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewInputBlock(modalChannelBlock,
					slack.NewTextBlockObject(slack.PlainTextType, "Channel", false, false),
					nil, channelSelect),
				slack.NewInputBlock(modalHoursBlock,
					slack.NewTextBlockObject(slack.PlainTextType, "Window", false, false),
					slack.NewTextBlockObject(slack.PlainTextType, "Leave empty for the default window", false, false),
					hoursInput),
			},
		},
	}
}

// publishHome renders the app home panel: how to use the bot plus the
// tenant's recent run stats.
func (s *Server) publishHome(ctx context.Context, tenantID, userID string) {
	api, err := s.tenantAPI(ctx, tenantID)
	if err != nil {
		logger.WarnCF("gateway", "Home publish for unknown tenant", map[string]any{
			"tenant": tenantID,
			"error":  err.Error(),
		})
		return
	}

	var b strings.Builder
	b.WriteString("*Triage bot*\n")
	b.WriteString("Run `/triage [hours]` in any channel to get a classified summary of its recent history, posted in a thread with a CSV export attached.\n")

	if meter, ok := s.meters.Get(tenantID); ok {
		fmt.Fprintf(&b, "\n*This workspace*\nRuns: %d (failed %d)\nMessages scanned: %d, tracked: %d\n",
			meter.Runs, meter.Failures, meter.MessagesScanned, meter.MessagesMatched)
		if !meter.LastRun.IsZero() {
			fmt.Fprintf(&b, "Last run: %s\n", meter.LastRun.Format("2006-01-02 15:04 MST"))
		}
	}

	view := slack.HomeTabViewRequest{
		Type: slack.VTHomeTab,
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewSectionBlock(
					slack.NewTextBlockObject(slack.MarkdownType, b.String(), false, false),
					nil, nil),
				slack.NewActionBlock("triage_actions",
					slack.NewButtonBlockElement(openTriageModalAction, "open",
						slack.NewTextBlockObject(slack.PlainTextType, "Run triage", false, false))),
			},
		},
	}

	if _, err := api.PublishViewContext(ctx, userID, view, ""); err != nil {
		logger.ErrorCF("gateway", "Home publish failed", map[string]any{
			"tenant": tenantID,
			"user":   userID,
			"error":  err.Error(),
		})
	}
}
