package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.temporal.io/sdk/client"

	"wrapops/internal/audit"
	"wrapops/internal/config"
	"wrapops/internal/db"
	"wrapops/internal/dispatch"
	"wrapops/internal/executor"
	"wrapops/internal/gateway"
	"wrapops/internal/logging"
	"wrapops/internal/metrics"
	"wrapops/internal/notify"
	"wrapops/internal/web"
	"wrapops/internal/workflows"
)

func main() {
	logging.Init("gateway", nil)
	if err := run(os.Args[1:], serveHTTP); err != nil {
		fatalf("gateway: %v", err)
	}
}

var serveHTTP = func(srv *http.Server) error { return srv.ListenAndServe() }
var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}
var newDB = db.NewDB
var newServer = web.NewServer
var newTemporalClient = func(cfg config.OrchestratorConfig) (client.Client, error) {
	opts := client.Options{HostPort: cfg.TemporalAddr, Namespace: cfg.Namespace}
	return client.Dial(opts)
}
var newSlackMessenger = func(cfg config.SlackConfig) (notify.Messenger, error) {
	return notify.NewSlackMessenger(notify.SlackOpts{BotToken: cfg.BotToken, ChannelID: cfg.ChannelID})
}

func buildMailer(cfg config.EmailConfig) notify.Mailer {
	if cfg.APIKey == "" {
		return nil
	}
	mailer := notify.NewEmailClient(cfg.BaseURL, cfg.APIKey, cfg.From)
	if cfg.TimeoutMS > 0 {
		mailer.Client = &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
	}
	return mailer
}

func run(args []string, serve func(*http.Server) error) error {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("-config required")
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	database, err := newDB(cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	auditStore := audit.NewWithDB(database)
	allow := gateway.NewAllowlist(cfg.Allowlist.Humans, cfg.Allowlist.Agents)
	authority := gateway.EscalationAuthority{
		OpsLead: cfg.Escalation.OpsLead,
		Founder: cfg.Escalation.Founder,
	}
	gw := gateway.New(database, allow, authority, auditStore, slog.Default())

	mailer := buildMailer(cfg.Email)

	var messenger notify.Messenger
	if cfg.Slack.BotToken != "" {
		m, err := newSlackMessenger(cfg.Slack)
		if err != nil {
			return err
		}
		messenger = m
	}

	var replier notify.ThreadReplier
	if cfg.Website.BaseURL != "" {
		replier = notify.NewWebsiteClient(cfg.Website.BaseURL, cfg.Website.APIKey)
	}

	dispatcher := dispatch.New(mailer, gw, database, auditStore, dispatch.Config{
		OpsLead:      cfg.Escalation.OpsLead,
		OpsLeadEmail: cfg.Escalation.OpsLeadEmail,
		Founder:      cfg.Escalation.Founder,
		FounderEmail: cfg.Escalation.FounderEmail,
	}, slog.Default())
	dispatcher.Messenger = messenger

	srv := newServer(database, gw, dispatcher)
	srv.AuthToken = cfg.Gateway.AuthToken
	srv.DefaultOrgID = cfg.Gateway.DefaultOrgID
	if cfg.Gateway.RateLimitPerSec > 0 {
		burst := cfg.Gateway.RateLimitBurst
		if burst <= 0 {
			burst = int(cfg.Gateway.RateLimitPerSec) * 2
		}
		srv.RateLimiter = web.NewRateLimiter(cfg.Gateway.RateLimitPerSec, burst)
	}

	var temporalClient client.Client
	if cfg.Orchestrator.TemporalAddr != "" {
		tc, err := newTemporalClient(cfg.Orchestrator)
		if err != nil {
			slog.Warn("temporal client connection failed, falling back to poller", "error", err)
		} else if tc != nil {
			temporalClient = tc
			defer temporalClient.Close()
			srv.Starter = &workflows.TemporalStarter{
				Client:    temporalClient,
				TaskQueue: cfg.Orchestrator.TaskQueue,
			}
		}
	}

	var wg sync.WaitGroup
	if cfg.Executor.Enabled {
		requester := cfg.Executor.RequesterID
		if requester == "" && len(cfg.Allowlist.Agents) > 0 {
			requester = cfg.Allowlist.Agents[0]
		}
		exec := &executor.Executor{
			Store:        database,
			Mailer:       mailer,
			Messenger:    messenger,
			Replier:      replier,
			Router:       gw,
			RequesterID:  requester,
			ContentOwner: cfg.Executor.ContentOwner,
			MaxBatch:     cfg.Executor.MaxBatch,
		}
		if cfg.Executor.PollIntervalSecs > 0 {
			exec.PollInterval = time.Duration(cfg.Executor.PollIntervalSecs) * time.Second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := exec.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("executor stopped", "error", err)
			}
		}()
	}

	if cfg.Reminders.Enabled {
		pendingAge := time.Duration(cfg.Reminders.PendingAgeMins) * time.Minute
		reminder, err := dispatch.NewReminder(database, mailer, cfg.Reminders.Cron, cfg.Escalation.OpsLeadEmail, pendingAge)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			reminder.Run(ctx)
		}()
	}

	mainSrv := &http.Server{Addr: cfg.Gateway.HTTPAddr, Handler: metrics.Middleware(srv.Mux)}
	errCh := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- serve(mainSrv)
	}()

	slog.Info("gateway listening", "addr", cfg.Gateway.HTTPAddr)
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = mainSrv.Shutdown(shutdownCtx)
	wg.Wait()
	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	default:
		return nil
	}
}
