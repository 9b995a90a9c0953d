// Package gateway is the sole authorized entry point for persisting
// proposed actions, tasks, corrections, and escalations. Every write is
// gated on the caller allowlist; unauthorized callers leave no trace.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wrapops/internal/actions"
	"wrapops/internal/audit"
	"wrapops/internal/db"
	"wrapops/internal/metrics"
)

type RouteAction string

const (
	ActionCreateTask    RouteAction = "create_task"
	ActionCorrectAction RouteAction = "correct_action"
	ActionEscalate      RouteAction = "escalate"
)

type RouteContext struct {
	Description    string `json:"description"`
	DueDate        string `json:"due_date,omitempty"`
	RevenueImpact  string `json:"revenue_impact,omitempty"`
	Customer       string `json:"customer,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	QuoteID        string `json:"quote_id,omitempty"`
}

type RouteRequest struct {
	Action      RouteAction  `json:"action"`
	RequestedBy string       `json:"requested_by"`
	Target      string       `json:"target,omitempty"`
	Context     RouteContext `json:"context"`
}

type RouteResult struct {
	Success       bool        `json:"success"`
	Action        RouteAction `json:"action"`
	AssignedTo    string      `json:"assigned_to,omitempty"`
	RevenueImpact string      `json:"revenue_impact,omitempty"`
	TaskID        string      `json:"task_id,omitempty"`
	RecordID      string      `json:"record_id,omitempty"`
	Error         string      `json:"error,omitempty"`
}

type ProposeRequest struct {
	ConversationID string           `json:"conversation_id,omitempty"`
	OrganizationID string           `json:"organization_id,omitempty"`
	Type           actions.Type     `json:"action_type"`
	Payload        json.RawMessage  `json:"payload"`
	Priority       actions.Priority `json:"priority,omitempty"`
	Origin         actions.Origin   `json:"origin"`
	CreatedBy      string           `json:"created_by"`
}

type ProposeResult struct {
	ActionID string         `json:"action_id"`
	Status   actions.Status `json:"status"`
	Preview  string         `json:"preview,omitempty"`
}

// store is the slice of the database the gateway writes through.
type store interface {
	CreateTask(ctx context.Context, task db.Task) (string, error)
	InsertCorrection(ctx context.Context, c db.Correction) (string, error)
	InsertEscalation(ctx context.Context, e db.Escalation) (string, error)
	InsertAction(ctx context.Context, a actions.Action) (string, error)
	GetAction(ctx context.Context, actionID string) (*actions.Action, error)
	TransitionAction(ctx context.Context, actionID string, from, to actions.Status) (bool, error)
	GetConversationFlags(ctx context.Context, conversationID string) (db.ConversationFlags, error)
}

// Escalation routing is fixed: every escalation is addressed to the ops
// lead and the founder, never a caller-chosen recipient.
type EscalationAuthority struct {
	OpsLead string
	Founder string
}

type Gateway struct {
	store     store
	allow     Allowlist
	authority EscalationAuthority
	audit     *audit.Store
	log       *slog.Logger
}

func New(store store, allow Allowlist, authority EscalationAuthority, auditStore *audit.Store, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{store: store, allow: allow, authority: authority, audit: auditStore, log: log}
}

// ErrConflict is returned by Resolve when the action already left the
// pending state, typically because another operator decided first.
var ErrConflict = errors.New("action already resolved")

// Route performs one gateway action. Each case is a single persistence
// call: either the whole thing happened or none of it did.
func (g *Gateway) Route(ctx context.Context, req RouteRequest) RouteResult {
	result := RouteResult{Action: req.Action}
	if !g.allow.Allowed(req.RequestedBy) {
		result.Error = fmt.Sprintf("Unauthorized requester: %s", req.RequestedBy)
		metrics.GatewayRequestsTotal.WithLabelValues(string(req.Action), "unauthorized").Inc()
		g.log.Warn("gateway request refused", "action", req.Action, "requested_by", req.RequestedBy)
		return result
	}

	switch req.Action {
	case ActionCreateTask:
		g.routeCreateTask(ctx, req, &result)
	case ActionCorrectAction:
		g.routeCorrection(ctx, req, &result)
	case ActionEscalate:
		g.routeEscalation(ctx, req, &result)
	default:
		result.Error = fmt.Sprintf("unknown gateway action: %s", req.Action)
	}

	outcome := "error"
	if result.Success {
		outcome = "ok"
	}
	metrics.GatewayRequestsTotal.WithLabelValues(string(req.Action), outcome).Inc()
	if result.Success {
		g.auditRoute(ctx, req, result)
	}
	return result
}

func (g *Gateway) routeCreateTask(ctx context.Context, req RouteRequest, result *RouteResult) {
	if strings.TrimSpace(req.Target) == "" {
		result.Error = "target required for create_task"
		return
	}
	impact := req.Context.RevenueImpact
	if impact == "" {
		impact = "medium"
	}
	if !actions.ValidPriority(actions.Priority(impact)) {
		result.Error = fmt.Sprintf("invalid revenue_impact: %s", req.Context.RevenueImpact)
		return
	}
	dueDate, err := parseDueDate(req.Context.DueDate)
	if err != nil {
		result.Error = err.Error()
		return
	}
	taskID, err := g.store.CreateTask(ctx, db.Task{
		Title:          req.Context.Description,
		AssignedTo:     req.Target,
		RevenueImpact:  impact,
		CreatedBy:      req.RequestedBy,
		ConversationID: req.Context.ConversationID,
		QuoteID:        req.Context.QuoteID,
		Customer:       req.Context.Customer,
		Notes:          req.Context.Notes,
		DueDate:        dueDate,
	})
	if err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
	result.TaskID = taskID
	result.AssignedTo = req.Target
	result.RevenueImpact = impact
}

func (g *Gateway) routeCorrection(ctx context.Context, req RouteRequest, result *RouteResult) {
	correctionID, err := g.store.InsertCorrection(ctx, db.Correction{
		CorrectedBy:    req.RequestedBy,
		Target:         req.Target,
		Description:    req.Context.Description,
		Notes:          req.Context.Notes,
		ConversationID: req.Context.ConversationID,
	})
	if err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
	result.RecordID = correctionID
}

func (g *Gateway) routeEscalation(ctx context.Context, req RouteRequest, result *RouteResult) {
	escalationID, err := g.store.InsertEscalation(ctx, db.Escalation{
		RaisedBy:       req.RequestedBy,
		AddressedTo:    g.authority.OpsLead + "," + g.authority.Founder,
		Description:    req.Context.Description,
		Customer:       req.Context.Customer,
		QuoteID:        req.Context.QuoteID,
		ConversationID: req.Context.ConversationID,
	})
	if err != nil {
		result.Error = err.Error()
		return
	}
	result.Success = true
	result.RecordID = escalationID
}

// ProposeAction validates and persists a new action proposal. The
// conversation flags decide whether it starts pending or pre-approved.
func (g *Gateway) ProposeAction(ctx context.Context, req ProposeRequest) (ProposeResult, error) {
	if !g.allow.Allowed(req.CreatedBy) {
		return ProposeResult{}, fmt.Errorf("Unauthorized requester: %s", req.CreatedBy)
	}
	if !actions.ValidType(req.Type) {
		return ProposeResult{}, fmt.Errorf("unknown action type: %s", req.Type)
	}
	payload, err := actions.DecodePayload(req.Type, req.Payload)
	if err != nil {
		return ProposeResult{}, fmt.Errorf("invalid payload: %w", err)
	}
	priority := req.Priority
	if priority == "" {
		priority = actions.PriorityMedium
	}
	if !actions.ValidPriority(priority) {
		return ProposeResult{}, fmt.Errorf("invalid priority: %s", priority)
	}
	origin := req.Origin
	if origin == "" {
		if g.allow.IsAgent(req.CreatedBy) {
			origin = actions.OriginAgent
		} else {
			origin = actions.OriginHuman
		}
	}

	status := actions.StatusPending
	if req.ConversationID != "" {
		flags, err := g.store.GetConversationFlags(ctx, req.ConversationID)
		if err != nil {
			return ProposeResult{}, err
		}
		if flags.AIPaused && origin == actions.OriginAgent {
			return ProposeResult{}, fmt.Errorf("conversation %s is paused for AI actions", req.ConversationID)
		}
		if !flags.ApprovalRequired && flags.AutopilotAllowed {
			status = actions.StatusApproved
		}
	}

	actionID, err := g.store.InsertAction(ctx, actions.Action{
		ConversationID: req.ConversationID,
		OrganizationID: req.OrganizationID,
		Type:           req.Type,
		Status:         status,
		Payload:        req.Payload,
		Priority:       priority,
		Preview:        payload.Summary(),
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return ProposeResult{}, err
	}
	metrics.ActionsTotal.WithLabelValues(string(req.Type), string(status)).Inc()
	g.auditEvent(ctx, req.CreatedBy, "action.propose", "allow", map[string]string{
		"action_id":       actionID,
		"action_type":     string(req.Type),
		"status":          string(status),
		"conversation_id": req.ConversationID,
	})
	return ProposeResult{ActionID: actionID, Status: status, Preview: payload.Summary()}, nil
}

// Resolve applies a human approval decision to a pending action. Exactly
// one decision wins; a stale click returns ErrConflict.
func (g *Gateway) Resolve(ctx context.Context, actionID, decidedBy string, approve bool) (*actions.Action, error) {
	if !g.allow.Allowed(decidedBy) {
		return nil, fmt.Errorf("Unauthorized requester: %s", decidedBy)
	}
	event := actions.EventReject
	outcome := "rejected"
	if approve {
		event = actions.EventApprove
		outcome = "approved"
	}
	next, err := actions.Transition(actions.StatusPending, event)
	if err != nil {
		return nil, err
	}
	moved, err := g.store.TransitionAction(ctx, actionID, actions.StatusPending, next)
	if err != nil {
		return nil, err
	}
	if !moved {
		metrics.ApprovalsTotal.WithLabelValues("conflict").Inc()
		return nil, ErrConflict
	}
	metrics.ApprovalsTotal.WithLabelValues(outcome).Inc()
	g.auditEvent(ctx, decidedBy, "action."+outcome, "allow", map[string]string{"action_id": actionID})
	return g.store.GetAction(ctx, actionID)
}

func (g *Gateway) auditRoute(ctx context.Context, req RouteRequest, result RouteResult) {
	detail := map[string]string{"target": req.Target}
	if result.TaskID != "" {
		detail["task_id"] = result.TaskID
	}
	if result.RecordID != "" {
		detail["record_id"] = result.RecordID
	}
	g.auditEvent(ctx, req.RequestedBy, "gateway."+string(req.Action), "allow", detail)
}

func (g *Gateway) auditEvent(ctx context.Context, actor, action, decision string, detail map[string]string) {
	err := g.audit.Append(ctx, audit.Event{
		Actor:    map[string]string{"id": actor},
		Action:   action,
		Decision: decision,
		Context:  detail,
	})
	if err != nil {
		g.log.Warn("audit write failed", "action", action, "error", err)
	}
}

func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due_date: %s", raw)
}
