// Package config holds the root runtime configuration for the bot.
//
// Config is constructed once at process start (Load) and passed explicitly
// into every component constructor — there is no package-level mutable
// state here. Secret fields (the bot token) are never
// read from the config file; they are sourced from environment variables
// only and tagged json:"-" so they can never round-trip into a persisted
// config document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FlexibleStringSlice accepts both ["a","b"] and [1,2] in JSON, coercing
// numeric elements to their string form. Model-preset lists in a
// hand-edited config file are prone to this kind of sloppiness.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Default constants mirrored from the agent CLI's own defaults (§6).
const (
	DefaultModel           = "gpt-5.2"
	DefaultReasoningEffort = "high"
	DefaultSandboxMode     = "workspace-write"
	DefaultApprovalPolicy  = "never"

	StateVersion              = 4
	MaxTelegramChars          = 4096
	EditThrottleSeconds        = 2.0
	StderrTailLines            = 80
	UITailMaxBytes             = 65536
	MediaGroupDebounceSeconds  = 0.8
	MaxDownloadedFilenameLen   = 180
	CallbackDataPrefix         = "v3"
)

// DefaultModelPresets is the fallback preset list offered on the
// model-selection screen when the config file does not override it.
var DefaultModelPresets = FlexibleStringSlice{
	"gpt-5.2-codex",
	"gpt-5.1-codex-max",
	"gpt-5.1-codex-mini",
	"gpt-5.2",
}

// RuntimePaths externalizes the directories the core writes into, so
// multiple Config instances (e.g. in tests) never collide on disk and so
// no component reaches for a package-level path global.
type RuntimePaths struct {
	StateFilePath string // e.g. .vibes/state.json
	LogDir        string // e.g. .vibes/logs
	BotLogPath    string // e.g. .vibes/bot.log

	// overridden tracks whether the caller explicitly set any of the three
	// paths above, gating the one-time legacy-layout migration (§11.1):
	// migration only runs when nothing was overridden from the defaults.
	overridden bool
}

// DefaultRuntimePaths returns the conventional .vibes/-rooted layout.
func DefaultRuntimePaths(root string) RuntimePaths {
	if root == "" {
		root = "."
	}
	return RuntimePaths{
		StateFilePath: root + "/.vibes/state.json",
		LogDir:        root + "/.vibes/logs",
		BotLogPath:    root + "/.vibes/bot.log",
	}
}

// WithOverride marks the paths as caller-overridden, disabling legacy
// migration.
func (p RuntimePaths) WithOverride() RuntimePaths {
	p.overridden = true
	return p
}

// Overridden reports whether the caller customized any runtime path.
func (p RuntimePaths) Overridden() bool { return p.overridden }

// AgentCLIConfig controls how the agent child process is invoked (§6).
type AgentCLIConfig struct {
	Binary           string              `json:"binary,omitempty"` // default "codex"
	SandboxMode      string              `json:"sandbox_mode,omitempty"`
	ApprovalPolicy   string              `json:"approval_policy,omitempty"`
	DefaultModel     string              `json:"default_model,omitempty"`
	ReasoningEffort  string              `json:"default_reasoning_effort,omitempty"`
	ModelPresets     FlexibleStringSlice `json:"model_presets,omitempty"`
}

// TelegramConfig configures the bot's own chat transport. Token is a
// secret: sourced only from CODEXPANEL_BOT_TOKEN, never persisted.
type TelegramConfig struct {
	Token          string `json:"-"`
	AdminUserID    int64  `json:"admin_user_id,omitempty"`
	DeleteUserMsgs bool   `json:"delete_user_messages_in_groups,omitempty"`
}

// AttachmentsConfig bounds inbound file handling (§11.3).
type AttachmentsConfig struct {
	MaxTotalBytes int64 `json:"max_attachment_bytes,omitempty"` // 0 = unlimited
}

// TelemetryConfig configures the optional OpenTelemetry exporter (§9.5).
type TelemetryConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
	UseHTTP      bool   `json:"otlp_use_http,omitempty"` // false = gRPC exporter
}

// Config is the root configuration struct, threaded explicitly into every
// constructor. The embedded mutex guards PathPresets, which can be
// hot-reloaded by the fsnotify watcher (§10) without a process restart.
type Config struct {
	Agent       AgentCLIConfig    `json:"agent"`
	Telegram    TelegramConfig    `json:"telegram"`
	Attachments AttachmentsConfig `json:"attachments,omitempty"`
	Telemetry   TelemetryConfig   `json:"telemetry,omitempty"`
	Paths       RuntimePaths      `json:"-"`
	JSONLogs    bool              `json:"json_logs,omitempty"`

	mu           sync.RWMutex
	pathPresets  FlexibleStringSlice
}

// Load reads a config document from path (if it exists; a missing file is
// not an error — defaults apply) and layers environment-variable
// overrides for secret fields on top.
func Load(path string, paths RuntimePaths) (*Config, error) {
	cfg := &Config{
		Agent: AgentCLIConfig{
			Binary:          "codex",
			SandboxMode:     DefaultSandboxMode,
			ApprovalPolicy:  DefaultApprovalPolicy,
			DefaultModel:    DefaultModel,
			ReasoningEffort: DefaultReasoningEffort,
			ModelPresets:    append(FlexibleStringSlice{}, DefaultModelPresets...),
		},
		Paths: paths,
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.Telegram.Token = os.Getenv("CODEXPANEL_BOT_TOKEN")
	if v := os.Getenv("CODEXPANEL_ADMIN_USER_ID"); v != "" {
		var id int64
		if _, scanErr := fmt.Sscanf(v, "%d", &id); scanErr == nil {
			cfg.Telegram.AdminUserID = id
		}
	}

	return cfg, nil
}

// PathPresets returns a snapshot of the configured working-directory
// presets, safe for concurrent use alongside SetPathPresets.
func (c *Config) PathPresets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.pathPresets))
	copy(out, c.pathPresets)
	return out
}

// SetPathPresets replaces the preset list. It is called once at startup
// with the registry's persisted presets and after a fsnotify-triggered
// config reload; the "paths_add"/"path_del" UI actions update the
// registry's own list, not this one.
func (c *Config) SetPathPresets(presets []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pathPresets = append(FlexibleStringSlice{}, presets...)
}
