package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for redcell.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Terminal TerminalConfig `yaml:"terminal"`
	Memory   MemoryConfig   `yaml:"memory"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Chat     ChatConfig     `yaml:"chat"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`

	// Temperature applies to every agent call. Kept at zero so tool
	// invocations stay reproducible.
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// TerminalConfig controls the tmux session pool that agents run
// commands in.
type TerminalConfig struct {
	// Mode selects how the orchestrator reaches the pool: "local"
	// drives tmux in-process, "mcp" connects to a remote tool server.
	Mode string `yaml:"mode"`

	// Container is the Docker container hosting tmux. Empty means the
	// local host.
	Container string `yaml:"container"`

	// URL is the tool server endpoint for mcp mode.
	URL string `yaml:"url"`

	// Addr is the listen address when running the tool server.
	Addr string `yaml:"addr"`

	// ExecTimeout bounds a single command execution.
	ExecTimeout time.Duration `yaml:"exec_timeout"`
}

type MemoryConfig struct {
	// Path is the sqlite database file. Empty keeps memory in-process.
	Path string `yaml:"path"`

	Semantic SemanticConfig `yaml:"semantic"`
}

type SemanticConfig struct {
	Enabled        bool   `yaml:"enabled"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type WorkflowConfig struct {
	// StepLimit caps LLM calls per turn across all agents.
	StepLimit int `yaml:"step_limit"`
}

type SessionsConfig struct {
	// LogDir is the root of the session event log tree.
	LogDir string `yaml:"log_dir"`

	// CheckpointPath is the sqlite file for thread state. Empty keeps
	// checkpoints in-process.
	CheckpointPath string `yaml:"checkpoint_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

type ChatConfig struct {
	// Height is the viewport hint for interactive chat rendering.
	Height int `yaml:"height"`

	// BroadcastAddr, when set, serves live events over websocket.
	BroadcastAddr string `yaml:"broadcast_addr"`

	// MCPConfigPath points at the per-agent MCP server bindings.
	MCPConfigPath string `yaml:"mcp_config_path"`
}

// Load reads and parses the configuration file. A missing file is not
// an error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// applyEnvOverrides maps the handful of plain environment knobs onto
// the config. Explicit yaml values win over env for everything except
// DEBUG_MODE, which always forces debug logging.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEBUG_MODE"); isTruthy(v) {
		cfg.Logging.Level = "debug"
	}
	if v := os.Getenv("DOCKER_CONTAINER"); v != "" && cfg.Terminal.Container == "" {
		cfg.Terminal.Container = v
	}
	if v := os.Getenv("CHAT_HEIGHT"); v != "" && cfg.Chat.Height == 0 {
		if h, err := strconv.Atoi(v); err == nil {
			cfg.Chat.Height = h
		}
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]LLMProviderConfig)
	}
	fillProviderKey(cfg, "anthropic", "ANTHROPIC_API_KEY")
	fillProviderKey(cfg, "openai", "OPENAI_API_KEY")
	fillProviderKey(cfg, "google", "GOOGLE_API_KEY")
}

func fillProviderKey(cfg *Config, provider, envVar string) {
	pc := cfg.LLM.Providers[provider]
	if pc.APIKey == "" {
		pc.APIKey = os.Getenv(envVar)
	}
	cfg.LLM.Providers[provider] = pc
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.Terminal.Mode == "" {
		cfg.Terminal.Mode = "local"
	}
	if cfg.Terminal.Addr == "" {
		cfg.Terminal.Addr = ":3000"
	}
	if cfg.Terminal.URL == "" {
		cfg.Terminal.URL = "http://localhost:3000/mcp"
	}
	if cfg.Terminal.ExecTimeout == 0 {
		cfg.Terminal.ExecTimeout = 5 * time.Minute
	}
	if cfg.Workflow.StepLimit == 0 {
		cfg.Workflow.StepLimit = 40
	}
	if cfg.Sessions.LogDir == "" {
		cfg.Sessions.LogDir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
	if cfg.Chat.Height == 0 {
		cfg.Chat.Height = 20
	}
	if cfg.Chat.MCPConfigPath == "" {
		cfg.Chat.MCPConfigPath = "mcp_config.json"
	}
}

// Validate checks that the configuration can actually start a chat
// session: the selected provider must exist and carry credentials
// (ollama excepted, it is keyless).
func (c *Config) Validate() error {
	provider := strings.ToLower(c.LLM.DefaultProvider)
	pc, ok := c.LLM.Providers[provider]
	if !ok && provider != "ollama" {
		return fmt.Errorf("llm: provider %q is not configured", provider)
	}
	if provider != "ollama" && pc.APIKey == "" {
		return fmt.Errorf("llm: provider %q has no api key (set %s_API_KEY or llm.providers.%s.api_key)",
			provider, strings.ToUpper(provider), provider)
	}
	switch c.Terminal.Mode {
	case "local", "mcp":
	default:
		return fmt.Errorf("terminal: mode must be \"local\" or \"mcp\", got %q", c.Terminal.Mode)
	}
	return nil
}
