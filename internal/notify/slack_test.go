package notify

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
)

type mockSlack struct {
	postedChannel string
	postErr       error
	openedUsers   []string
	openErr       error
}

func (m *mockSlack) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.postedChannel = channelID
	if m.postErr != nil {
		return "", "", m.postErr
	}
	return channelID, "1700000000.000100", nil
}

func (m *mockSlack) OpenConversation(params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error) {
	m.openedUsers = params.Users
	if m.openErr != nil {
		return nil, false, false, m.openErr
	}
	ch := &slackapi.Channel{}
	ch.ID = "D0001"
	return ch, false, false, nil
}

func TestSendDMToUser(t *testing.T) {
	mock := &mockSlack{}
	m, err := NewSlackMessenger(SlackOpts{Client: mock, ChannelID: "C0900"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ts, err := m.SendDM(context.Background(), "U12345", "tracking number missing")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ts == "" {
		t.Fatalf("missing timestamp")
	}
	if len(mock.openedUsers) != 1 || mock.openedUsers[0] != "U12345" {
		t.Fatalf("opened: %v", mock.openedUsers)
	}
	if mock.postedChannel != "D0001" {
		t.Fatalf("channel: %q", mock.postedChannel)
	}
}

func TestSendDMFallbackChannel(t *testing.T) {
	mock := &mockSlack{}
	m, _ := NewSlackMessenger(SlackOpts{Client: mock, ChannelID: "C0900"})
	if _, err := m.SendDM(context.Background(), "jordan_lee", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mock.postedChannel != "C0900" {
		t.Fatalf("channel: %q", mock.postedChannel)
	}
	if len(mock.openedUsers) != 0 {
		t.Fatalf("should not open conversation: %v", mock.openedUsers)
	}
}

func TestSendDMNoChannel(t *testing.T) {
	m, _ := NewSlackMessenger(SlackOpts{Client: &mockSlack{}})
	if _, err := m.SendDM(context.Background(), "jordan_lee", "hello"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSendDMEmptyBody(t *testing.T) {
	m, _ := NewSlackMessenger(SlackOpts{Client: &mockSlack{}, ChannelID: "C0900"})
	if _, err := m.SendDM(context.Background(), "U12345", ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSendDMPostError(t *testing.T) {
	mock := &mockSlack{postErr: errors.New("channel_not_found")}
	m, _ := NewSlackMessenger(SlackOpts{Client: mock, ChannelID: "C0900"})
	if _, err := m.SendDM(context.Background(), "jordan_lee", "hello"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewSlackMessengerRequiresToken(t *testing.T) {
	if _, err := NewSlackMessenger(SlackOpts{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIsSlackUserID(t *testing.T) {
	cases := map[string]bool{
		"U12345":     true,
		"W0ABC9":     true,
		"jordan_lee": false,
		"u12345":     false,
		"U":          false,
		"":           false,
	}
	for input, want := range cases {
		if got := isSlackUserID(input); got != want {
			t.Errorf("%q: got %v want %v", input, got, want)
		}
	}
}
