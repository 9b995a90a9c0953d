package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Storage      StorageConfig      `json:"storage"`
	Allowlist    AllowlistConfig    `json:"allowlist"`
	Email        EmailConfig        `json:"email"`
	Slack        SlackConfig        `json:"slack"`
	Website      WebsiteConfig      `json:"website"`
	Escalation   EscalationConfig   `json:"escalation"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Executor     ExecutorConfig     `json:"executor"`
	Reminders    RemindersConfig    `json:"reminders"`
}

type GatewayConfig struct {
	HTTPAddr         string  `json:"http_addr"`
	AuthToken        string  `json:"auth_token"`
	RateLimitPerSec  float64 `json:"rate_limit_per_sec"`
	RateLimitBurst   int     `json:"rate_limit_burst"`
	DefaultOrgID     string  `json:"default_org_id"`
}

type StorageConfig struct {
	PostgresDSN string `json:"postgres_dsn"`
}

// AllowlistConfig is the injected set of identities permitted to call the
// authorization gateway. Agents and humans are listed separately because a
// paused conversation only blocks agent-originated proposals.
type AllowlistConfig struct {
	Humans []string `json:"humans"`
	Agents []string `json:"agents"`
}

type EmailConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	From      string `json:"from"`
	TimeoutMS int    `json:"timeout_ms"`
}

type SlackConfig struct {
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// WebsiteConfig points at the customer-facing chat widget API used for
// website_reply actions.
type WebsiteConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// EscalationConfig names the fixed operational+founder authority pair that
// every escalation record is addressed to.
type EscalationConfig struct {
	OpsLead      string `json:"ops_lead"`
	OpsLeadEmail string `json:"ops_lead_email"`
	Founder      string `json:"founder"`
	FounderEmail string `json:"founder_email"`
}

type OrchestratorConfig struct {
	TemporalAddr string `json:"temporal_addr"`
	Namespace    string `json:"namespace"`
	TaskQueue    string `json:"task_queue"`
	HealthAddr   string `json:"health_addr"`
}

type ExecutorConfig struct {
	Enabled          bool   `json:"enabled"`
	PollIntervalSecs int    `json:"poll_interval_secs"`
	MaxBatch         int    `json:"max_batch"`
	RequesterID      string `json:"requester_id"`
	ContentOwner     string `json:"content_owner"`
}

type RemindersConfig struct {
	Enabled        bool   `json:"enabled"`
	Cron           string `json:"cron"`
	PendingAgeMins int    `json:"pending_age_mins"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Gateway.HTTPAddr) == "" {
		return errors.New("gateway.http_addr required")
	}
	if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
		return errors.New("storage.postgres_dsn required")
	}
	if len(c.Allowlist.Humans) == 0 && len(c.Allowlist.Agents) == 0 {
		return errors.New("allowlist requires at least one requester")
	}
	if !c.Executor.Enabled && strings.TrimSpace(c.Orchestrator.TemporalAddr) == "" {
		return errors.New("either executor.enabled or orchestrator.temporal_addr required")
	}
	if strings.TrimSpace(c.Email.APIKey) != "" && strings.TrimSpace(c.Email.BaseURL) == "" {
		return errors.New("email.base_url required when email.api_key is set")
	}
	if strings.TrimSpace(c.Slack.BotToken) != "" && strings.TrimSpace(c.Slack.ChannelID) == "" {
		return errors.New("slack.channel_id required when slack.bot_token is set")
	}
	if strings.TrimSpace(c.Escalation.OpsLead) == "" || strings.TrimSpace(c.Escalation.Founder) == "" {
		return errors.New("escalation.ops_lead and escalation.founder required")
	}
	if c.Reminders.Enabled && strings.TrimSpace(c.Reminders.Cron) == "" {
		return errors.New("reminders.cron required when reminders.enabled is true")
	}
	return nil
}
