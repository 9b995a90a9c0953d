package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wrapops/internal/actions"
	"wrapops/internal/gateway"
)

func TestProposeAction(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.proposeResult = gateway.ProposeResult{ActionID: "act_1", Status: actions.StatusPending, Preview: "DM to U123AB"}

	events, cancel := s.eventHub().Subscribe("conv_1")
	defer cancel()

	body := `{"conversation_id":"conv_1","action_type":"dm_send","payload":{"recipient":"U123AB","body":"hello"},"created_by":"wrapops_agent"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body.String())
	}
	var resp gateway.ProposeResult
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActionID != "act_1" || resp.Status != actions.StatusPending {
		t.Fatalf("resp: %+v", resp)
	}
	if gw.proposeReq.CreatedBy != "wrapops_agent" {
		t.Fatalf("created_by: %q", gw.proposeReq.CreatedBy)
	}
	select {
	case ev := <-events:
		if ev.Event != "action.proposed" || ev.ConversationID != "conv_1" {
			t.Fatalf("event: %+v", ev)
		}
	default:
		t.Fatalf("no event emitted")
	}
}

func TestProposeActionActorFallback(t *testing.T) {
	s, _, gw, _ := newTestServer()
	body := `{"action_type":"dm_send","payload":{"recipient":"U123AB","body":"hi"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "jordan_lee")
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if gw.proposeReq.CreatedBy != "jordan_lee" {
		t.Fatalf("created_by: %q", gw.proposeReq.CreatedBy)
	}
}

func TestProposeActionUnauthorized(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.proposeErr = errors.New("Unauthorized requester: random_bot")
	body := `{"action_type":"dm_send","payload":{},"created_by":"random_bot"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Unauthorized requester: random_bot") {
		t.Fatalf("body: %q", rec.Body.String())
	}
}

func TestProposeActionBadPayload(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.proposeErr = errors.New("invalid payload: recipient is required")
	body := `{"action_type":"dm_send","payload":{},"created_by":"wrapops_agent"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestListActionsFilters(t *testing.T) {
	s, store, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/actions?conversation_id=conv_1&status=pending", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if store.listActionsConv != "conv_1" || store.listActionsStatus != "pending" {
		t.Fatalf("filters: %q %q", store.listActionsConv, store.listActionsStatus)
	}
}

func TestGetActionByID(t *testing.T) {
	s, store, _, _ := newTestServer()
	store.action = &actions.Action{ID: "act_1", Type: actions.TypeDMSend, Status: actions.StatusPending}
	req := httptest.NewRequest(http.MethodGet, "/v1/actions/act_1", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var got actions.Action
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "act_1" {
		t.Fatalf("action: %+v", got)
	}
}

func TestGetActionNotFound(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/actions/act_missing", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestApproveAction(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.resolved = &actions.Action{ID: "act_1", ConversationID: "conv_1", Status: actions.StatusApproved}
	starter := &fakeStarter{}
	s.Starter = starter

	body := `{"decided_by":"jordan_lee"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/act_1/approve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body.String())
	}
	if gw.decidedBy != "jordan_lee" || !gw.approved {
		t.Fatalf("resolve: %q approved=%v", gw.decidedBy, gw.approved)
	}
	if len(starter.started) != 1 || starter.started[0].ID != "act_1" {
		t.Fatalf("starter: %+v", starter.started)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["workflow_id"] != "action-act_1" {
		t.Fatalf("resp: %v", resp)
	}
}

func TestRejectActionNoStarter(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.resolved = &actions.Action{ID: "act_1", Status: actions.StatusRejected}
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/act_1/reject", nil)
	req.Header.Set("X-Actor-Id", "sam_ortiz")
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body: %s", rec.Code, rec.Body.String())
	}
	if gw.decidedBy != "sam_ortiz" || gw.approved {
		t.Fatalf("resolve: %q approved=%v", gw.decidedBy, gw.approved)
	}
}

func TestApproveConflict(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.resolveErr = gateway.ErrConflict
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/act_1/approve", strings.NewReader(`{"decided_by":"jordan_lee"}`))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestApproveStarterFailureKeepsApproval(t *testing.T) {
	s, _, gw, _ := newTestServer()
	gw.resolved = &actions.Action{ID: "act_1", Status: actions.StatusApproved}
	s.Starter = &fakeStarter{err: errors.New("temporal unavailable")}

	req := httptest.NewRequest(http.MethodPost, "/v1/actions/act_1/approve", strings.NewReader(`{"decided_by":"jordan_lee"}`))
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["execution_error"] != "temporal unavailable" {
		t.Fatalf("resp: %v", resp)
	}
}

func TestDecisionRequiresIdentity(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/v1/actions/act_1/approve", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestDecisionRejectsGet(t *testing.T) {
	s, _, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/v1/actions/act_1/approve", nil)
	rec := httptest.NewRecorder()
	s.Mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", rec.Code)
	}
}
