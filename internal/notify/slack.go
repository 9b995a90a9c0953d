package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxSlackRetries caps retries for rate-limited API calls.
const maxSlackRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	OpenConversation(params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error)
}

// SlackMessenger delivers direct messages through the Slack Web API.
// When the recipient looks like a user id a DM conversation is opened
// first; otherwise the configured fallback channel is used.
type SlackMessenger struct {
	client    slackClient
	channelID string
}

type SlackOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

func NewSlackMessenger(opts SlackOpts) (*SlackMessenger, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, errors.New("slack: bot token is required")
	}
	m := &SlackMessenger{client: opts.Client, channelID: opts.ChannelID}
	if m.client == nil {
		m.client = slackapi.New(opts.BotToken)
	}
	return m, nil
}

func (m *SlackMessenger) SendDM(ctx context.Context, recipient, body string) (string, error) {
	if body == "" {
		return "", errors.New("slack: message body required")
	}
	channel := m.channelID
	if isSlackUserID(recipient) {
		conv, _, _, err := m.client.OpenConversation(&slackapi.OpenConversationParameters{
			Users: []string{recipient},
		})
		if err != nil {
			return "", fmt.Errorf("slack: open conversation: %w", err)
		}
		channel = conv.ID
	}
	if channel == "" {
		return "", errors.New("slack: no channel for recipient")
	}
	var ts string
	err := retryOnRateLimit(ctx, func() error {
		var postErr error
		_, ts, postErr = m.client.PostMessage(channel, slackapi.MsgOptionText(body, false))
		return postErr
	})
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	return ts, nil
}

// isSlackUserID reports whether s looks like a Slack member id (U.../W...).
func isSlackUserID(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] != 'U' && s[0] != 'W' {
		return false
	}
	for _, c := range s[1:] {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors, respecting context cancellation and RetryAfter.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxSlackRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxSlackRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
