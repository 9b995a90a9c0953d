// Package actions holds the domain model for proposed AI actions: the
// action/status vocabulary, the transition rules, and the typed payloads
// carried by each action type.
package actions

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeDMSend         Type = "dm_send"
	TypeEmailSend      Type = "email_send"
	TypeWebsiteReply   Type = "website_reply"
	TypeCreateTask     Type = "create_task"
	TypeContentRequest Type = "content_request"
)

func ValidType(t Type) bool {
	switch t {
	case TypeDMSend, TypeEmailSend, TypeWebsiteReply, TypeCreateTask, TypeContentRequest:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible from s.
func Terminal(s Status) bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Origin distinguishes agent-proposed actions from human-authored ones.
// A paused conversation refuses the former and keeps accepting the latter.
type Origin string

const (
	OriginAgent Origin = "agent"
	OriginHuman Origin = "human"
)

type Action struct {
	ID             string          `json:"action_id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Type           Type            `json:"action_type"`
	Status         Status          `json:"status"`
	Payload        json.RawMessage `json:"payload"`
	Priority       Priority        `json:"priority"`
	Preview        string          `json:"preview,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
}
