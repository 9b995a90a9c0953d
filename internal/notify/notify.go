// Package notify holds the outbound delivery channels: transactional
// email, Slack direct messages, and website thread replies.
package notify

import "context"

// Message is an outbound transactional email.
type Message struct {
	To      []string
	CC      []string
	Subject string
	HTML    string
}

// Mailer sends transactional email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Messenger delivers a direct message to a single recipient.
type Messenger interface {
	SendDM(ctx context.Context, recipient, body string) (string, error)
}

// ThreadReplier posts a reply into a website conversation thread.
type ThreadReplier interface {
	Reply(ctx context.Context, threadID, body string) (string, error)
}
