package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/crestline/triagebot/pkg/logger"
	"github.com/crestline/triagebot/pkg/slackapi"
	"github.com/crestline/triagebot/pkg/store"
	"github.com/crestline/triagebot/pkg/triage"
	"github.com/crestline/triagebot/pkg/utils"
)

// verifyAndRead checks the request signature and returns the body,
// restoring r.Body so form parsing still works downstream.
func (s *Server) verifyAndRead(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sv, err := slack.NewSecretsVerifier(r.Header, s.cfg.Slack.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("building verifier: %w", err)
	}
	if _, err := sv.Write(body); err != nil {
		return nil, err
	}
	if err := sv.Ensure(); err != nil {
		return nil, fmt.Errorf("signature mismatch: %w", err)
	}
	return body, nil
}

func ephemeral(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"response_type": "ephemeral",
		"text":          text,
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if _, err := s.verifyAndRead(r); err != nil {
		logger.WarnCF("gateway", "Rejected command", map[string]any{"error": err.Error()})
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if !s.isAllowed(cmd.UserID) {
		ephemeral(w, "You are not on the triage allow-list for this workspace.")
		return
	}

	req := triage.Request{
		ID:               uuid.NewString(),
		TenantID:         cmd.TeamID,
		ChannelID:        cmd.ChannelID,
		HoursBack:        triage.ParseHoursBack(cmd.Text, s.cfg.Triage.DefaultWindowHours),
		RequestingUserID: cmd.UserID,
		ReceivedAt:       time.Now(),
	}
	if err := utils.ValidateChannelID(req.ChannelID); err != nil {
		ephemeral(w, "This command only works inside a channel.")
		return
	}

	if err := s.enqueue(r.Context(), req); err != nil {
		ephemeral(w, "The triage queue is unavailable right now, try again in a minute.")
		return
	}
	ephemeral(w, fmt.Sprintf("Queued: scanning the last %dh of <#%s>.", req.HoursBack, req.ChannelID))
}

func (s *Server) handleInteractive(w http.ResponseWriter, r *http.Request) {
	if _, err := s.verifyAndRead(r); err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(r.FormValue("payload")), &callback); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	switch callback.Type {
	case slack.InteractionTypeViewSubmission:
		s.handleModalSubmit(w, r, callback)
	case slack.InteractionTypeBlockActions:
		s.handleBlockAction(w, r, callback)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleModalSubmit(w http.ResponseWriter, r *http.Request, callback slack.InteractionCallback) {
	if callback.View.CallbackID != triageModalCallbackID {
		w.WriteHeader(http.StatusOK)
		return
	}

	var values map[string]map[string]slack.BlockAction
	if callback.View.State != nil {
		values = callback.View.State.Values
	}
	channelID := values[modalChannelBlock][modalChannelAction].SelectedConversation
	hoursRaw := values[modalHoursBlock][modalHoursAction].Value

	req := triage.Request{
		ID:               uuid.NewString(),
		TenantID:         callback.Team.ID,
		ChannelID:        utils.NormalizeChannelRef(channelID),
		HoursBack:        triage.ParseHoursBack(hoursRaw, s.cfg.Triage.DefaultWindowHours),
		RequestingUserID: callback.User.ID,
		ReceivedAt:       time.Now(),
	}
	if err := utils.ValidateChannelID(req.ChannelID); err != nil {
		s.modalError(w, modalChannelBlock, "Pick a channel to scan.")
		return
	}

	if err := s.enqueue(r.Context(), req); err != nil {
		s.modalError(w, modalChannelBlock, "The triage queue is unavailable, try again shortly.")
		return
	}
	// Empty 200 closes the modal.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) modalError(w http.ResponseWriter, blockID, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"response_action": "errors",
		"errors":          map[string]string{blockID: text},
	})
}

func (s *Server) handleBlockAction(w http.ResponseWriter, r *http.Request, callback slack.InteractionCallback) {
	defer w.WriteHeader(http.StatusOK)

	for _, action := range callback.ActionCallback.BlockActions {
		if action.ActionID != openTriageModalAction {
			continue
		}
		api, err := s.tenantAPI(r.Context(), callback.Team.ID)
		if err != nil {
			logger.WarnCF("gateway", "Modal open for unknown tenant", map[string]any{
				"tenant": callback.Team.ID,
				"error":  err.Error(),
			})
			return
		}
		if _, err := api.OpenView(callback.TriggerID, triageModal(s.cfg.Triage.DefaultWindowHours)); err != nil {
			logger.ErrorCF("gateway", "OpenView failed", map[string]any{
				"tenant": callback.Team.ID,
				"error":  err.Error(),
			})
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := s.verifyAndRead(r)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "bad event", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "bad challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(challenge.Challenge))

	case slackevents.CallbackEvent:
		if ev, ok := event.InnerEvent.Data.(*slackevents.AppHomeOpenedEvent); ok {
			s.publishHome(r.Context(), event.TeamID, ev.User)
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	resp, err := slack.GetOAuthV2Response(&http.Client{Timeout: 10 * time.Second},
		s.cfg.Slack.ClientID, s.cfg.Slack.ClientSecret, code, s.cfg.Slack.RedirectURL)
	if err != nil {
		logger.ErrorCF("gateway", "OAuth exchange failed", map[string]any{"error": err.Error()})
		http.Error(w, "oauth exchange failed", http.StatusBadGateway)
		return
	}

	inst := store.Installation{
		TenantID:        resp.Team.ID,
		TeamName:        resp.Team.Name,
		BotToken:        resp.AccessToken,
		BotUserID:       resp.BotUserID,
		Scopes:          resp.Scope,
		InstallerUserID: resp.AuthedUser.ID,
		InstallerToken:  resp.AuthedUser.AccessToken,
	}
	if err := s.store.Upsert(r.Context(), inst); err != nil {
		logger.ErrorCF("gateway", "Saving installation failed", map[string]any{
			"tenant": inst.TenantID,
			"error":  err.Error(),
		})
		http.Error(w, "could not save installation", http.StatusInternalServerError)
		return
	}

	logger.InfoCF("gateway", "Workspace installed", map[string]any{
		"tenant": inst.TenantID,
		"team":   inst.TeamName,
	})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h2>Installed into %s</h2><p>Run /triage in any channel to get started.</p></body></html>", inst.TeamName)
}

// tenantAPI resolves the bot client for a tenant.
func (s *Server) tenantAPI(ctx context.Context, tenantID string) (slackapi.API, error) {
	inst, err := s.store.Lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.factory(inst.BotToken), nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleStatusz(w http.ResponseWriter, _ *http.Request) {
	type runLine struct {
		ID        string `json:"id"`
		TenantID  string `json:"tenant_id"`
		ChannelID string `json:"channel_id"`
		Status    string `json:"status"`
	}
	var runs []runLine
	for _, run := range s.runner.ListRuns() {
		runs = append(runs, runLine{
			ID:        run.ID,
			TenantID:  run.TenantID,
			ChannelID: run.ChannelID,
			Status:    string(run.Status),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"pending": s.bus.Pending(),
		"runs":    runs,
		"tenants": s.meters.Snapshot(),
	})
}
