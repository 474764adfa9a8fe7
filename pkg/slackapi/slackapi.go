// Package slackapi narrows the slack-go client to the calls the bot
// actually makes, so the pipeline and gateway can be tested against a
// mock without a live workspace.
package slackapi

import (
	"context"

	"github.com/slack-go/slack"
)

// API abstracts the subset of slack.Client methods used by the bot.
type API interface {
	AuthTest() (*slack.AuthTestResponse, error)

	// Messaging
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)

	// Conversations
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationInfo(input *slack.GetConversationInfoInput) (*slack.Channel, error)
	JoinConversation(channelID string) (*slack.Channel, string, []string, error)

	// Files
	UploadFileV2Context(ctx context.Context, params slack.UploadFileV2Parameters) (*slack.FileSummary, error)

	// Views
	OpenView(triggerID string, view slack.ModalViewRequest) (*slack.ViewResponse, error)
	PublishViewContext(ctx context.Context, userID string, view slack.HomeTabViewRequest, hash string) (*slack.ViewResponse, error)
}

// New returns a live client for the given bot token.
func New(botToken string) API {
	return slack.New(botToken)
}

// Factory builds an API from a bot token. The pipeline takes a Factory
// instead of a client so each request can use its own tenant's token and
// tests can substitute mocks.
type Factory func(botToken string) API
