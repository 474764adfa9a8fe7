// Package slackapitest provides an in-memory fake of the slackapi.API
// interface for pipeline and gateway tests.
package slackapitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// PostedMessage records one PostMessage call with its resolved form
// values (text, thread_ts, ...).
type PostedMessage struct {
	Channel  string
	Text     string
	ThreadTS string
}

// Fake implements slackapi.API against scripted responses.
type Fake struct {
	mu sync.Mutex

	BotUserID string
	TeamID    string

	// HistoryPages are served in order, one per
	// GetConversationHistoryContext call.
	HistoryPages []slack.GetConversationHistoryResponse
	HistoryErr   error
	historyCalls []slack.GetConversationHistoryParameters

	JoinErr error
	joined  []string
	// PostErr fails PostMessage calls. When PostErrChannel is set it
	// only fails posts to that channel, other posts succeed.
	PostErr        error
	PostErrChannel string
	posted         []PostedMessage
	UploadErr error
	uploads   []slack.UploadFileV2Parameters
	published []slack.HomeTabViewRequest
	opened    []slack.ModalViewRequest

	nextTS int
}

func (f *Fake) AuthTest() (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: f.BotUserID, TeamID: f.TeamID}, nil
}

func (f *Fake) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil && (f.PostErrChannel == "" || channelID == f.PostErrChannel) {
		return "", "", f.PostErr
	}
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, slack.APIURL, options...)
	if err != nil {
		return "", "", err
	}
	f.posted = append(f.posted, PostedMessage{
		Channel:  channelID,
		Text:     values.Get("text"),
		ThreadTS: values.Get("thread_ts"),
	})
	f.nextTS++
	return channelID, fmt.Sprintf("1700000000.%06d", f.nextTS), nil
}

func (f *Fake) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	f.historyCalls = append(f.historyCalls, *params)
	if len(f.HistoryPages) == 0 {
		return &slack.GetConversationHistoryResponse{}, nil
	}
	page := f.HistoryPages[0]
	f.HistoryPages = f.HistoryPages[1:]
	return &page, nil
}

func (f *Fake) GetConversationInfo(input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	ch := &slack.Channel{}
	ch.ID = input.ChannelID
	return ch, nil
}

func (f *Fake) JoinConversation(channelID string) (*slack.Channel, string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.JoinErr != nil {
		return nil, "", nil, f.JoinErr
	}
	f.joined = append(f.joined, channelID)
	ch := &slack.Channel{}
	ch.ID = channelID
	return ch, "", nil, nil
}

func (f *Fake) UploadFileV2Context(_ context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UploadErr != nil {
		return nil, f.UploadErr
	}
	f.uploads = append(f.uploads, params)
	return &slack.FileSummary{ID: "F001", Title: params.Title}, nil
}

func (f *Fake) OpenView(_ string, view slack.ModalViewRequest) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, view)
	return &slack.ViewResponse{}, nil
}

func (f *Fake) PublishViewContext(_ context.Context, _ string, view slack.HomeTabViewRequest, _ string) (*slack.ViewResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, view)
	return &slack.ViewResponse{}, nil
}

// Posted returns a copy of all recorded PostMessage calls.
func (f *Fake) Posted() []PostedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PostedMessage(nil), f.posted...)
}

// Uploads returns a copy of all recorded file uploads.
func (f *Fake) Uploads() []slack.UploadFileV2Parameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slack.UploadFileV2Parameters(nil), f.uploads...)
}

// Joined returns the channels the fake was asked to join.
func (f *Fake) Joined() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.joined...)
}

// HistoryCalls returns the history requests received so far.
func (f *Fake) HistoryCalls() []slack.GetConversationHistoryParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slack.GetConversationHistoryParameters(nil), f.historyCalls...)
}

// Published returns the home views published so far.
func (f *Fake) Published() []slack.HomeTabViewRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slack.HomeTabViewRequest(nil), f.published...)
}

// Opened returns the modals opened so far.
func (f *Fake) Opened() []slack.ModalViewRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]slack.ModalViewRequest(nil), f.opened...)
}

// HistoryMessage builds a history message for scripted pages.
func HistoryMessage(ts, user, text string) slack.Message {
	msg := slack.Message{}
	msg.Timestamp = ts
	msg.User = user
	msg.Text = text
	return msg
}
