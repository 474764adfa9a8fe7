package triage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/crestline/triagebot/pkg/auth"
	"github.com/crestline/triagebot/pkg/history"
	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/taxonomy"
)

// Exporter renders enriched messages into a downloadable artifact.
type Exporter interface {
	Export(msgs []Enriched, tax taxonomy.Taxonomy) (data []byte, filename string, err error)
}

// Result carries the counters of one completed run.
type Result struct {
	Scanned     int
	Matched     int
	ExportBytes int
	Truncated   bool
}

// Pipeline executes a single triage request end to end: resolve the
// tenant, fetch the window, classify, post the summary in a thread,
// and attach the export.
type Pipeline struct {
	resolver *auth.Resolver
	factory  slackapi.Factory
	exporter Exporter
	tax      taxonomy.Taxonomy
	pageSize int
	maxPages int
}

func NewPipeline(resolver *auth.Resolver, factory slackapi.Factory, exporter Exporter, tax taxonomy.Taxonomy, pageSize, maxPages int) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		factory:  factory,
		exporter: exporter,
		tax:      tax,
		pageSize: pageSize,
		maxPages: maxPages,
	}
}

// Execute runs one triage request. Authorization failures abort before
// any platform call. Channel access failures are reported to the
// requesting user instead of returned as pipeline errors. Export and
// upload failures never fail a run that already posted its summary.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Result, error) {
	cred, err := p.resolver.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	api := p.factory(cred.BotToken)

	noticeText := fmt.Sprintf("On it. Scanning the last %dh of this channel, summary lands in this thread.", req.HoursBack)
	_, noticeTS, err := api.PostMessage(req.ChannelID, slack.MsgOptionText(noticeText, false))
	if err != nil {
		// A channel the bot cannot post into is the same situation as a
		// channel it cannot read: tell the requester, not the error log.
		if history.IsAccessError(err) {
			accessErr := &history.ChannelAccessError{ChannelID: req.ChannelID, Err: err}
			logger.WarnCF("triage", "Channel not accessible", map[string]any{
				"tenant":  req.TenantID,
				"channel": req.ChannelID,
				"reason":  err.Error(),
			})
			p.notifyRequester(api, req, accessErr)
			return &Result{}, nil
		}
		return nil, fmt.Errorf("posting acknowledgement in %s: %w", req.ChannelID, err)
	}

	fetcher := history.NewFetcher(api, p.pageSize, p.maxPages)
	msgs, truncated, err := fetcher.FetchWindow(ctx, req.ChannelID, req.HoursBack)
	if err != nil {
		var accessErr *history.ChannelAccessError
		if errors.As(err, &accessErr) {
			p.reportAccessFailure(api, req, noticeTS, accessErr)
			return &Result{}, nil
		}
		return nil, err
	}

	enriched := Enrich(msgs, p.tax, cred.BotUserID)
	summary := Summarize(enriched, p.tax)
	summary.Truncated = truncated

	_, _, err = api.PostMessage(req.ChannelID,
		slack.MsgOptionText(FormatSummary(summary, req.HoursBack), false),
		slack.MsgOptionTS(noticeTS),
	)
	if err != nil {
		return nil, fmt.Errorf("posting summary in %s: %w", req.ChannelID, err)
	}

	res := &Result{
		Scanned:   summary.Scanned,
		Matched:   summary.Tracked,
		Truncated: truncated,
	}
	res.ExportBytes = p.attachExport(ctx, api, req, noticeTS, enriched)
	return res, nil
}

// attachExport uploads the CSV into the summary thread. Failures are
// logged and swallowed: the summary already answered the user.
func (p *Pipeline) attachExport(ctx context.Context, api slackapi.API, req Request, threadTS string, msgs []Enriched) int {
	if p.exporter == nil {
		return 0
	}
	data, filename, err := p.exporter.Export(msgs, p.tax)
	if err != nil {
		logger.ErrorCF("triage", "Export failed", map[string]any{
			"channel": req.ChannelID,
			"error":   err.Error(),
		})
		return 0
	}

	title := filename
	if info, err := api.GetConversationInfo(&slack.GetConversationInfoInput{ChannelID: req.ChannelID}); err == nil && info.Name != "" {
		title = fmt.Sprintf("triage of #%s, last %dh", info.Name, req.HoursBack)
	}

	_, err = api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Filename:        filename,
		Title:           title,
		FileSize:        len(data),
		Reader:          bytes.NewReader(data),
		Channel:         req.ChannelID,
		ThreadTimestamp: threadTS,
	})
	if err != nil {
		logger.ErrorCF("triage", "Export upload failed", map[string]any{
			"channel": req.ChannelID,
			"error":   err.Error(),
		})
		return 0
	}
	return len(data)
}

// reportAccessFailure tells the requester why nothing happened: a short
// note in the thread for everyone, plus a DM with the detail.
func (p *Pipeline) reportAccessFailure(api slackapi.API, req Request, threadTS string, accessErr *history.ChannelAccessError) {
	logger.WarnCF("triage", "Channel not accessible", map[string]any{
		"tenant":  req.TenantID,
		"channel": accessErr.ChannelID,
		"reason":  accessErr.Err.Error(),
	})

	if _, _, err := api.PostMessage(req.ChannelID,
		slack.MsgOptionText("I can't read this channel's history, so no summary this time.", false),
		slack.MsgOptionTS(threadTS),
	); err != nil {
		logger.WarnCF("triage", "Could not post access failure note", map[string]any{
			"channel": req.ChannelID,
			"error":   err.Error(),
		})
	}

	p.notifyRequester(api, req, accessErr)
}

// notifyRequester DMs the requesting user with the access failure detail.
func (p *Pipeline) notifyRequester(api slackapi.API, req Request, accessErr *history.ChannelAccessError) {
	if req.RequestingUserID == "" {
		return
	}
	dm := fmt.Sprintf("Your triage request for <#%s> failed: %s. Re-invite the bot or check its scopes and try again.",
		accessErr.ChannelID, accessErr.Err.Error())
	if _, _, err := api.PostMessage(req.RequestingUserID, slack.MsgOptionText(dm, false)); err != nil {
		logger.WarnCF("triage", "Could not notify requester", map[string]any{
			"user":  req.RequestingUserID,
			"error": err.Error(),
		})
	}
}
