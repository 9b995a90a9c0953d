// Package dispatch fans a detected anomaly out to the humans who need
// to hear about it: a direct email, a tracked task through the gateway,
// and a durable alert-log row. Each step tolerates failure in the
// others; the alert log is always attempted.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wrapops/internal/audit"
	"wrapops/internal/db"
	"wrapops/internal/detect"
	"wrapops/internal/gateway"
	"wrapops/internal/metrics"
	"wrapops/internal/notify"
)

const (
	StepEmail    = "email"
	StepSlack    = "slack_dm"
	StepTask     = "task"
	StepAlertLog = "alert_log"
)

type StepResult struct {
	Step string `json:"step"`
	OK   bool   `json:"ok"`
	Err  string `json:"error,omitempty"`
}

type Result struct {
	Success     bool         `json:"success"`
	EmailSent   bool         `json:"email_sent"`
	TaskCreated bool         `json:"task_created"`
	AlertID     string       `json:"alert_id,omitempty"`
	TaskID      string       `json:"task_id,omitempty"`
	Steps       []StepResult `json:"steps"`
}

// AlertContext carries the order and customer details attached to an
// anomaly when it is dispatched.
type AlertContext struct {
	Customer       string         `json:"customer,omitempty"`
	OrderRef       string         `json:"order_ref,omitempty"`
	QuoteID        string         `json:"quote_id,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	Summary        string         `json:"summary,omitempty"`
	CustomerEmail  string         `json:"customer_email,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// route is the fixed per-alert-type delivery plan.
type route struct {
	owner      string
	recipients []string
	priority   string
	subject    string
}

type alertStore interface {
	InsertAgentAlert(ctx context.Context, alert db.AgentAlert) (string, error)
}

type taskRouter interface {
	Route(ctx context.Context, req gateway.RouteRequest) gateway.RouteResult
}

type Dispatcher struct {
	mailer notify.Mailer
	router taskRouter
	store  alertStore
	audit  *audit.Store
	log    *slog.Logger
	routes map[string]route
	sender string

	// Messenger, when set, sends the alert owner a Slack DM as an extra
	// best-effort channel. It never counts toward Success.
	Messenger notify.Messenger

	// Now is swappable in tests.
	Now func() time.Time
}

// Config names the humans on the receiving end of each alert type.
type Config struct {
	OpsLead      string
	OpsLeadEmail string
	Founder      string
	FounderEmail string
	SenderID     string
}

func New(mailer notify.Mailer, router taskRouter, store alertStore, auditStore *audit.Store, cfg Config, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	sender := cfg.SenderID
	if sender == "" {
		sender = "wrapops_agent"
	}
	routes := map[string]route{
		detect.AlertMissingTracking: {
			owner:      cfg.OpsLead,
			recipients: []string{cfg.OpsLeadEmail},
			priority:   "high",
			subject:    "Customer waiting on tracking",
		},
		detect.AlertUnhappyCustomer: {
			owner:      cfg.OpsLead,
			recipients: []string{cfg.OpsLeadEmail, cfg.FounderEmail},
			priority:   "high",
			subject:    "Unhappy customer needs attention",
		},
		detect.AlertBulkInquiry: {
			owner:      cfg.Founder,
			recipients: []string{cfg.FounderEmail},
			priority:   "high",
			subject:    "Bulk / fleet inquiry",
		},
		detect.AlertBulkInquiryWithEmail: {
			owner:      cfg.Founder,
			recipients: []string{cfg.FounderEmail, cfg.OpsLeadEmail},
			priority:   "high",
			subject:    "Bulk / fleet inquiry with contact email",
		},
		detect.AlertQualityIssue: {
			owner:      cfg.OpsLead,
			recipients: []string{cfg.OpsLeadEmail},
			priority:   "high",
			subject:    "Quality issue reported",
		},
		detect.AlertDesignFile: {
			owner:      cfg.OpsLead,
			recipients: []string{cfg.OpsLeadEmail},
			priority:   "medium",
			subject:    "Design file received",
		},
	}
	return &Dispatcher{
		mailer: mailer,
		router: router,
		store:  store,
		audit:  auditStore,
		log:    log,
		routes: routes,
		sender: sender,
		Now:    time.Now,
	}
}

// SendAlert runs the three dispatch steps in order. A failed step is
// recorded and the pipeline continues; only an unknown alert type stops
// it before any side effect.
func (d *Dispatcher) SendAlert(ctx context.Context, alertType string, alertCtx AlertContext, organizationID string) (Result, error) {
	plan, ok := d.routes[alertType]
	if !ok {
		return Result{}, fmt.Errorf("unknown alert type: %s", alertType)
	}

	var result Result
	var emailSentAt *time.Time

	emailErr := d.sendEmail(ctx, plan, alertType, alertCtx)
	if emailErr == nil {
		result.EmailSent = true
		now := d.Now().UTC()
		emailSentAt = &now
	} else {
		d.log.Warn("alert email failed", "alert_type", alertType, "error", emailErr)
	}
	result.Steps = append(result.Steps, stepResult(StepEmail, emailErr))
	metrics.DispatchStepsTotal.WithLabelValues(StepEmail, stepOutcome(emailErr)).Inc()

	if d.Messenger != nil {
		_, dmErr := d.Messenger.SendDM(ctx, plan.owner, alertText(alertType, alertCtx))
		if dmErr != nil {
			d.log.Warn("alert slack dm failed", "alert_type", alertType, "error", dmErr)
		}
		result.Steps = append(result.Steps, stepResult(StepSlack, dmErr))
		metrics.DispatchStepsTotal.WithLabelValues(StepSlack, stepOutcome(dmErr)).Inc()
	}

	taskID, taskErr := d.createTask(ctx, plan, alertType, alertCtx)
	if taskErr == nil {
		result.TaskCreated = true
		result.TaskID = taskID
	} else {
		d.log.Warn("alert task creation failed", "alert_type", alertType, "error", taskErr)
	}
	result.Steps = append(result.Steps, stepResult(StepTask, taskErr))
	metrics.DispatchStepsTotal.WithLabelValues(StepTask, stepOutcome(taskErr)).Inc()

	alertID, logErr := d.logAlert(ctx, plan, alertType, alertCtx, organizationID, emailSentAt, taskID)
	if logErr == nil {
		result.AlertID = alertID
	} else {
		d.log.Error("alert log write failed", "alert_type", alertType, "error", logErr)
	}
	result.Steps = append(result.Steps, stepResult(StepAlertLog, logErr))
	metrics.DispatchStepsTotal.WithLabelValues(StepAlertLog, stepOutcome(logErr)).Inc()

	result.Success = result.EmailSent || result.TaskCreated
	metrics.AlertsTotal.WithLabelValues(alertType).Inc()

	if err := d.audit.Append(ctx, audit.Event{
		Actor:    map[string]string{"id": d.sender},
		Action:   "dispatch." + alertType,
		Decision: "allow",
		Context: map[string]any{
			"alert_id":     result.AlertID,
			"email_sent":   result.EmailSent,
			"task_created": result.TaskCreated,
		},
	}); err != nil {
		d.log.Warn("audit write failed", "alert_type", alertType, "error", err)
	}
	return result, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, plan route, alertType string, alertCtx AlertContext) error {
	if d.mailer == nil {
		return fmt.Errorf("no mailer configured")
	}
	recipients := make([]string, 0, len(plan.recipients))
	for _, r := range plan.recipients {
		if r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients for alert type %s", alertType)
	}
	_, err := d.mailer.Send(ctx, notify.Message{
		To:      recipients,
		Subject: plan.subject,
		HTML:    alertHTML(alertType, alertCtx),
	})
	return err
}

func (d *Dispatcher) createTask(ctx context.Context, plan route, alertType string, alertCtx AlertContext) (string, error) {
	if d.router == nil {
		return "", fmt.Errorf("no task router configured")
	}
	description := plan.subject
	if alertCtx.Customer != "" {
		description += " (" + alertCtx.Customer + ")"
	}
	routed := d.router.Route(ctx, gateway.RouteRequest{
		Action:      gateway.ActionCreateTask,
		RequestedBy: d.sender,
		Target:      plan.owner,
		Context: gateway.RouteContext{
			Description:    description,
			RevenueImpact:  plan.priority,
			Customer:       alertCtx.Customer,
			Notes:          alertCtx.Summary,
			ConversationID: alertCtx.ConversationID,
			QuoteID:        alertCtx.QuoteID,
		},
	})
	if !routed.Success {
		return "", fmt.Errorf("%s", routed.Error)
	}
	return routed.TaskID, nil
}

func (d *Dispatcher) logAlert(ctx context.Context, plan route, alertType string, alertCtx AlertContext, organizationID string, emailSentAt *time.Time, taskID string) (string, error) {
	alert := db.AgentAlert{
		AlertType:      alertType,
		OrganizationID: organizationID,
		OrderRef:       alertCtx.OrderRef,
		Customer:       alertCtx.Customer,
		Priority:       plan.priority,
		TaskID:         taskID,
	}
	if emailSentAt != nil {
		alert.EmailSentAt = emailSentAt
		alert.EmailSentTo = strings.Join(plan.recipients, ",")
	}
	if taskID != "" {
		alert.TaskStatus = "pending"
	}
	metadata := map[string]any{}
	for k, v := range alertCtx.Metadata {
		metadata[k] = v
	}
	if alertCtx.Summary != "" {
		metadata["summary"] = alertCtx.Summary
	}
	if alertCtx.CustomerEmail != "" {
		metadata["customer_email"] = alertCtx.CustomerEmail
	}
	if len(metadata) > 0 {
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return "", err
		}
		alert.Metadata = encoded
	}
	return d.store.InsertAgentAlert(ctx, alert)
}

func alertHTML(alertType string, alertCtx AlertContext) string {
	var b strings.Builder
	b.WriteString("<h3>" + strings.ReplaceAll(alertType, "_", " ") + "</h3>")
	if alertCtx.Customer != "" {
		b.WriteString("<p>Customer: " + alertCtx.Customer + "</p>")
	}
	if alertCtx.OrderRef != "" {
		b.WriteString("<p>Order: " + alertCtx.OrderRef + "</p>")
	}
	if alertCtx.CustomerEmail != "" {
		b.WriteString("<p>Contact: " + alertCtx.CustomerEmail + "</p>")
	}
	if alertCtx.Summary != "" {
		b.WriteString("<p>" + alertCtx.Summary + "</p>")
	}
	return b.String()
}

func alertText(alertType string, alertCtx AlertContext) string {
	parts := []string{strings.ReplaceAll(alertType, "_", " ")}
	if alertCtx.Customer != "" {
		parts = append(parts, "customer "+alertCtx.Customer)
	}
	if alertCtx.OrderRef != "" {
		parts = append(parts, "order "+alertCtx.OrderRef)
	}
	if alertCtx.Summary != "" {
		parts = append(parts, alertCtx.Summary)
	}
	return strings.Join(parts, " | ")
}

func stepResult(step string, err error) StepResult {
	if err != nil {
		return StepResult{Step: step, Err: err.Error()}
	}
	return StepResult{Step: step, OK: true}
}

func stepOutcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
