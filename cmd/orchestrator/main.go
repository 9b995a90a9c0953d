package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	_ "github.com/lib/pq"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"wrapops/internal/audit"
	"wrapops/internal/config"
	"wrapops/internal/db"
	"wrapops/internal/executor"
	"wrapops/internal/gateway"
	"wrapops/internal/logging"
	"wrapops/internal/notify"
	"wrapops/internal/workflows"
)

func main() {
	logging.Init("orchestrator", nil)
	if err := run(os.Args[1:]); err != nil {
		fatalf("orchestrator: %v", err)
	}
}

var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}
var loadConfig = config.LoadConfig
var newDB = db.NewDB
var newTemporalClient = func(cfg config.OrchestratorConfig) (client.Client, error) {
	opts := client.Options{HostPort: cfg.TemporalAddr, Namespace: cfg.Namespace}
	return client.Dial(opts)
}

type closeFunc func() error

func (c closeFunc) Close() error { return c() }

var newWorker = func(cfg config.OrchestratorConfig) (worker.Worker, io.Closer, error) {
	c, err := newTemporalClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	w := worker.New(c, cfg.TaskQueue, worker.Options{})
	return w, closeFunc(func() error { c.Close(); return nil }), nil
}
var runWorker = func(w worker.Worker) error { return w.Run(worker.InterruptCh()) }
var serveHealth = func(srv *http.Server) error { return srv.ListenAndServe() }

func run(args []string) error {
	fs := flag.NewFlagSet("orchestrator", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("-config required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Orchestrator.TemporalAddr == "" {
		return errors.New("orchestrator.temporal_addr required")
	}

	database, err := newDB(cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	exec, err := buildExecutor(cfg, database)
	if err != nil {
		return err
	}

	if cfg.Orchestrator.HealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		healthSrv := &http.Server{Addr: cfg.Orchestrator.HealthAddr, Handler: mux}
		go func() {
			if err := serveHealth(healthSrv); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("health server stopped", "error", err)
			}
		}()
	}

	w, closer, err := newWorker(cfg.Orchestrator)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	workflows.Register(w, &workflows.Activities{Exec: exec})
	slog.Info("orchestrator ready", "temporal_addr", cfg.Orchestrator.TemporalAddr, "task_queue", cfg.Orchestrator.TaskQueue)
	return runWorker(w)
}

// buildExecutor assembles the side-effect runtime the activities call
// into. It shares the gateway and notification clients with the HTTP
// process so both execution paths behave identically.
func buildExecutor(cfg config.Config, database *db.DB) (*executor.Executor, error) {
	allow := gateway.NewAllowlist(cfg.Allowlist.Humans, cfg.Allowlist.Agents)
	authority := gateway.EscalationAuthority{
		OpsLead: cfg.Escalation.OpsLead,
		Founder: cfg.Escalation.Founder,
	}
	gw := gateway.New(database, allow, authority, audit.NewWithDB(database), slog.Default())

	var mailer notify.Mailer
	if cfg.Email.APIKey != "" {
		client := notify.NewEmailClient(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.From)
		if cfg.Email.TimeoutMS > 0 {
			client.Client = &http.Client{Timeout: time.Duration(cfg.Email.TimeoutMS) * time.Millisecond}
		}
		mailer = client
	}

	var messenger notify.Messenger
	if cfg.Slack.BotToken != "" {
		m, err := notify.NewSlackMessenger(notify.SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		messenger = m
	}

	var replier notify.ThreadReplier
	if cfg.Website.BaseURL != "" {
		replier = notify.NewWebsiteClient(cfg.Website.BaseURL, cfg.Website.APIKey)
	}

	requester := cfg.Executor.RequesterID
	if requester == "" && len(cfg.Allowlist.Agents) > 0 {
		requester = cfg.Allowlist.Agents[0]
	}
	return &executor.Executor{
		Store:        database,
		Mailer:       mailer,
		Messenger:    messenger,
		Replier:      replier,
		Router:       gw,
		RequesterID:  requester,
		ContentOwner: cfg.Executor.ContentOwner,
	}, nil
}
