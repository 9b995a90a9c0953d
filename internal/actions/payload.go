package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Payload is the tagged union of per-type action payloads. Each variant
// carries only the fields its executor needs, so malformed proposals fail
// at decode time instead of deep inside a consumer.
type Payload interface {
	PayloadType() Type
	Summary() string
}

type DMSendPayload struct {
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

func (DMSendPayload) PayloadType() Type { return TypeDMSend }
func (p DMSendPayload) Summary() string { return truncate("DM to "+p.Recipient+": "+p.Body, 140) }

type EmailSendPayload struct {
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (EmailSendPayload) PayloadType() Type { return TypeEmailSend }
func (p EmailSendPayload) Summary() string {
	return truncate("Email "+strings.Join(p.To, ", ")+": "+p.Subject, 140)
}

type WebsiteReplyPayload struct {
	ThreadID string `json:"thread_id"`
	Body     string `json:"body"`
}

func (WebsiteReplyPayload) PayloadType() Type { return TypeWebsiteReply }
func (p WebsiteReplyPayload) Summary() string { return truncate("Website reply: "+p.Body, 140) }

type CreateTaskPayload struct {
	Title         string `json:"title"`
	AssignedTo    string `json:"assigned_to"`
	RevenueImpact string `json:"revenue_impact,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

func (CreateTaskPayload) PayloadType() Type { return TypeCreateTask }
func (p CreateTaskPayload) Summary() string {
	return truncate("Task for "+p.AssignedTo+": "+p.Title, 140)
}

type ContentRequestPayload struct {
	Kind  string `json:"kind"`
	Brief string `json:"brief"`
}

func (ContentRequestPayload) PayloadType() Type { return TypeContentRequest }
func (p ContentRequestPayload) Summary() string { return truncate("Content request: "+p.Brief, 140) }

// DecodePayload validates raw against the schema for the action type and
// unmarshals it into the matching variant.
func DecodePayload(actionType Type, raw json.RawMessage) (Payload, error) {
	if !ValidType(actionType) {
		return nil, fmt.Errorf("unknown action type: %s", actionType)
	}
	if len(raw) == 0 {
		return nil, errors.New("payload required")
	}
	if err := validateSchema(actionType, raw); err != nil {
		return nil, err
	}
	switch actionType {
	case TypeDMSend:
		var p DMSendPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeEmailSend:
		var p EmailSendPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeWebsiteReply:
		var p WebsiteReplyPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeCreateTask:
		var p CreateTaskPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeContentRequest:
		var p ContentRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown action type: %s", actionType)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
