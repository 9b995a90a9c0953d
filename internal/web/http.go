// Package web is the HTTP surface of the gateway: action proposals,
// human approvals, alert dispatch, conversation flags, and the SSE
// change feed the console subscribes to.
package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"wrapops/internal/actions"
	"wrapops/internal/db"
	"wrapops/internal/dispatch"
	"wrapops/internal/gateway"
	"wrapops/internal/metrics"
)

const maxRequestBody = 1 << 20 // 1 MB

var marshalJSON = json.Marshal

// Store is the read side of the database the handlers need.
type Store interface {
	ListActions(ctx context.Context, conversationID, status string, limit, offset int) ([]byte, error)
	GetAction(ctx context.Context, actionID string) (*actions.Action, error)
	ListReceipts(ctx context.Context, conversationID string, limit, offset int) ([]byte, error)
	ListAgentAlerts(ctx context.Context, alertType string, limit, offset int) ([]byte, error)
	ListTasks(ctx context.Context, status string, limit, offset int) ([]byte, error)
	ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]byte, error)
	GetConversation(ctx context.Context, conversationID string) (*db.Conversation, error)
	GetConversationByQuote(ctx context.Context, quoteID string) (*db.Conversation, error)
	GetConversationFlags(ctx context.Context, conversationID string) (db.ConversationFlags, error)
	UpdateConversationFlags(ctx context.Context, conversationID string, flags db.ConversationFlags) error
}

// ActionGateway is the single entry point for anything that writes
// actions, tasks, corrections, or escalations.
type ActionGateway interface {
	Route(ctx context.Context, req gateway.RouteRequest) gateway.RouteResult
	ProposeAction(ctx context.Context, req gateway.ProposeRequest) (gateway.ProposeResult, error)
	Resolve(ctx context.Context, actionID, decidedBy string, approve bool) (*actions.Action, error)
}

type AlertDispatcher interface {
	SendAlert(ctx context.Context, alertType string, alertCtx dispatch.AlertContext, organizationID string) (dispatch.Result, error)
}

// ExecutionStarter hands an approved action to the execution runtime.
// Nil when the in-process poller picks approvals up instead.
type ExecutionStarter interface {
	StartExecution(ctx context.Context, action actions.Action) (string, error)
}

type AuditWriter interface {
	InsertAuditEvent(ctx context.Context, payload []byte) (string, error)
}

type Server struct {
	Mux          *http.ServeMux
	Store        Store
	Gateway      ActionGateway
	Dispatcher   AlertDispatcher
	Starter      ExecutionStarter
	Audit        AuditWriter
	Events       *EventHub
	RateLimiter  *RateLimiter
	AuthToken    string
	DBConn       *sql.DB
	DefaultOrgID string
	eventsOnce   sync.Once
}

func NewServer(store Store, gw ActionGateway, dispatcher AlertDispatcher) *Server {
	s := &Server{
		Mux:        http.NewServeMux(),
		Store:      store,
		Gateway:    gw,
		Dispatcher: dispatcher,
		Events:     NewEventHub(),
	}
	if c, ok := store.(interface{ Conn() *sql.DB }); ok {
		// store may be a typed-nil in tests: interface value set, underlying pointer nil.
		if conn := c.Conn(); conn != nil {
			s.DBConn = conn
		}
	}
	if auditWriter, ok := store.(AuditWriter); ok {
		s.Audit = auditWriter
	}
	s.registerRoutes()
	return s
}

// withRateLimit checks the limiter per request so it can be installed
// after route registration.
func (s *Server) withRateLimit(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimiter != nil && !s.RateLimiter.Allow(clientIP(r)) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	s.Mux.HandleFunc("/healthz", s.handleHealthz)
	s.Mux.HandleFunc("/readyz", s.handleReadyz)
	s.Mux.Handle("/metrics", metrics.Handler())

	// Write endpoints get rate limiting.
	s.Mux.Handle("/v1/gateway/route", s.withRateLimit(s.auth(http.HandlerFunc(s.handleGatewayRoute))))
	s.Mux.Handle("/v1/alerts", s.withRateLimit(s.auth(http.HandlerFunc(s.handleAlerts))))
	s.Mux.Handle("/v1/actions", s.withRateLimit(s.auth(http.HandlerFunc(s.handleActions))))
	s.Mux.Handle("/v1/actions/", s.withRateLimit(s.auth(http.HandlerFunc(s.handleActionByID))))
	s.Mux.Handle("/v1/conversations/", s.withRateLimit(s.auth(http.HandlerFunc(s.handleConversation))))

	// Read-only endpoints.
	s.Mux.Handle("/v1/receipts", s.auth(http.HandlerFunc(s.handleReceipts)))
	s.Mux.Handle("/v1/tasks", s.auth(http.HandlerFunc(s.handleTasks)))
	s.Mux.Handle("/v1/audit/events", s.auth(http.HandlerFunc(s.handleAuditEvents)))
	s.Mux.Handle("/v1/events", s.auth(http.HandlerFunc(s.handleEventsSSE)))
}

type PaginationMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// parsePagination extracts limit and offset from query parameters.
// Defaults: limit=50, max limit=200, offset>=0.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 200 {
		limit = 200
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func paginatedResponse(w http.ResponseWriter, data json.RawMessage, limit, offset int) {
	resp := map[string]any{
		"data":       data,
		"pagination": PaginationMeta{Limit: limit, Offset: offset},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) eventHub() *EventHub {
	s.eventsOnce.Do(func() {
		if s.Events == nil {
			s.Events = NewEventHub()
		}
	})
	return s.Events
}

func (s *Server) emit(event string, data any, conversationID string) {
	hub := s.eventHub()
	hub.Publish(Event{Event: event, Data: data, TS: time.Now().UTC(), ConversationID: conversationID}, conversationID)
}

func (s *Server) auditEvent(ctx context.Context, action, decision string, detail any, note string) {
	if s.Audit == nil {
		return
	}
	actor, _ := ActorFromContext(ctx)
	payload := map[string]any{
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
		"actor":       actor,
		"action":      action,
		"decision":    decision,
		"context":     detail,
	}
	if note != "" {
		payload["note"] = note
	}
	data, err := marshalJSON(payload)
	if err != nil {
		return
	}
	_, _ = s.Audit.InsertAuditEvent(ctx, data)
}
