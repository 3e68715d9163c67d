package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/redcellhq/redcell/internal/agent"
	"github.com/redcellhq/redcell/internal/agent/providers"
	"github.com/redcellhq/redcell/internal/bridge"
	"github.com/redcellhq/redcell/internal/catalog"
	"github.com/redcellhq/redcell/internal/config"
	"github.com/redcellhq/redcell/internal/mcptools"
	"github.com/redcellhq/redcell/internal/memory"
	"github.com/redcellhq/redcell/internal/observability"
	"github.com/redcellhq/redcell/internal/sessionlog"
	"github.com/redcellhq/redcell/internal/swarm"
	"github.com/redcellhq/redcell/internal/terminal"
	"github.com/redcellhq/redcell/internal/thread"
	"github.com/redcellhq/redcell/internal/tools/shell"
	"github.com/redcellhq/redcell/internal/workflow"
	"github.com/redcellhq/redcell/pkg/models"
)

// chatSession holds everything one interactive session needs: the wired
// executor, the team definitions for /agents, and the identity that keys
// thread state and memory.
type chatSession struct {
	cfg      *config.Config
	logger   *observability.Logger
	executor *workflow.Executor
	team     []swarm.Definition
	writer   *sessionlog.Writer
	bridge   *bridge.Broadcaster
	model    string

	userID string
	convID string
	fresh  bool

	closers []func() error
}

// runChat implements the chat command.
func runChat(cmd *cobra.Command, configPath, modelFlag, broadcastAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if modelFlag != "" {
		if err := applyModelSelection(cfg, modelFlag); err != nil {
			return err
		}
	}
	if broadcastAddr != "" {
		cfg.Chat.BroadcastAddr = broadcastAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger.Slog())

	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "redcell",
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		EnableInsecure: cfg.Tracing.Insecure,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := buildChatSession(ctx, cfg, logger, tracer)
	if err != nil {
		return err
	}
	defer session.close()

	return session.run(ctx, cmd)
}

// applyModelSelection resolves a --model flag against the catalogue and
// rewrites the provider selection accordingly.
func applyModelSelection(cfg *config.Config, selection string) error {
	cat, err := catalog.Load()
	if err != nil {
		return err
	}
	m, ok := cat.Find(selection)
	if !ok {
		return fmt.Errorf("unknown model %q (see `redcell models`)", selection)
	}
	cfg.LLM.DefaultProvider = m.Provider
	pc := cfg.LLM.Providers[m.Provider]
	pc.DefaultModel = m.ID
	cfg.LLM.Providers[m.Provider] = pc
	return nil
}

// buildChatSession wires provider, terminal, memory, MCP bindings, swarm,
// session log, and executor into one ready session.
func buildChatSession(ctx context.Context, cfg *config.Config, logger *observability.Logger, tracer *observability.Tracer) (*chatSession, error) {
	metrics := observability.NewMetrics()

	provider, model, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	session := &chatSession{
		cfg:    cfg,
		logger: logger,
		model:  model,
		userID: thread.UserID(),
		convID: thread.DefaultConversation,
	}

	terminalAPI, commandRunner, terminalClose, err := buildTerminal(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}
	if terminalClose != nil {
		session.closers = append(session.closers, terminalClose)
	}

	store, storeClose, err := buildMemoryStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if storeClose != nil {
		session.closers = append(session.closers, storeClose)
	}

	mcpCfg, err := config.LoadMCP(cfg.Chat.MCPConfigPath)
	if err != nil {
		logger.Warn(ctx, "mcp config unusable, continuing without extra tools",
			"path", cfg.Chat.MCPConfigPath,
			"error", err)
		mcpCfg = &config.MCPConfig{}
	}
	binder := mcptools.NewBinder(mcpCfg, logger)
	session.closers = append(session.closers, binder.Close)
	go func() {
		if err := mcptools.Watch(ctx, cfg.Chat.MCPConfigPath, logger); err != nil {
			logger.Warn(context.Background(), "mcp config watch stopped", "error", err)
		}
	}()

	session.team = buildTeam(ctx, terminalAPI, commandRunner, store, binder, session.userID, logger)

	team, err := swarm.New(swarm.Config{
		Provider:     provider,
		Agents:       session.team,
		DefaultAgent: swarm.AgentPlanner,
		Model:        model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  float32(cfg.LLM.Temperature),
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble agent team: %w", err)
	}

	var checkpointer thread.Checkpointer
	if cfg.Sessions.CheckpointPath != "" {
		sqlite, err := thread.NewSQLiteCheckpointer(cfg.Sessions.CheckpointPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
		}
		session.closers = append(session.closers, sqlite.Close)
		checkpointer = sqlite
	}

	session.writer = sessionlog.NewWriter(cfg.Sessions.LogDir, model, logger, metrics)

	session.executor, err = workflow.NewExecutor(workflow.Config{
		Swarm:        team,
		Checkpointer: checkpointer,
		SessionLog:   session.writer,
		StepLimit:    cfg.Workflow.StepLimit,
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Chat.BroadcastAddr != "" {
		session.bridge = bridge.NewBroadcaster(logger)
		addr := cfg.Chat.BroadcastAddr
		go func() {
			if err := session.bridge.Serve(ctx, addr); err != nil {
				logger.Error(context.Background(), "event bridge failed", "addr", addr, "error", err)
			}
		}()
	}

	return session, nil
}

// buildProvider constructs the configured LLM provider and resolves the
// model id recorded on session logs.
func buildProvider(cfg *config.Config) (agent.LLMProvider, string, error) {
	name := strings.ToLower(cfg.LLM.DefaultProvider)
	pc := cfg.LLM.Providers[name]

	var (
		provider agent.LLMProvider
		err      error
	)
	switch name {
	case "anthropic":
		provider, err = providers.NewAnthropicProvider(providers.AnthropicConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "openai":
		provider, err = providers.NewOpenAIProvider(providers.OpenAIConfig{
			APIKey:       pc.APIKey,
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	case "google":
		provider, err = providers.NewGoogleProvider(providers.GoogleConfig{
			APIKey:       pc.APIKey,
			DefaultModel: pc.DefaultModel,
		})
	case "ollama":
		provider = providers.NewOllamaProvider(providers.OllamaConfig{
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		})
	default:
		return nil, "", fmt.Errorf("llm: unsupported provider %q", name)
	}
	if err != nil {
		return nil, "", err
	}

	model := pc.DefaultModel
	if model == "" {
		if ms := provider.Models(); len(ms) > 0 {
			model = ms[0].ID
		}
	}
	return provider, model, nil
}

// buildTerminal wires the terminal surface: an in-process tmux pool in
// local mode, a tool server client in mcp mode.
func buildTerminal(cfg *config.Config, logger *observability.Logger, metrics *observability.Metrics) (terminal.SessionAPI, shell.CommandRunner, func() error, error) {
	if cfg.Terminal.Mode == "mcp" {
		client := terminal.NewClient(cfg.Terminal.URL, cfg.Terminal.ExecTimeout, logger)
		return client, client, nil, nil
	}

	var (
		runner    terminal.Runner
		closeFunc func() error
	)
	if cfg.Terminal.Container != "" {
		docker, err := terminal.NewDockerRunner(cfg.Terminal.Container)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to reach container %q: %w", cfg.Terminal.Container, err)
		}
		runner = docker
		closeFunc = docker.Close
	} else {
		runner = terminal.NewLocalRunner()
	}

	pool := terminal.NewPool(runner, logger, metrics, cfg.Terminal.ExecTimeout)
	return pool, pool, closeFunc, nil
}

// buildMemoryStore opens the long-term store, layering the semantic index
// on top when configured. Semantic setup failures degrade to the plain
// store with a warning; memory quality is not worth failing startup over.
func buildMemoryStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (memory.Store, func() error, error) {
	var (
		store     memory.Store
		closeFunc func() error
	)
	if cfg.Memory.Path != "" {
		sqlite, err := memory.NewSQLiteStore(cfg.Memory.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		store = sqlite
		closeFunc = sqlite.Close
	} else {
		store = memory.NewInMemoryStore()
	}

	if cfg.Memory.Semantic.Enabled {
		embed, err := memory.NewOpenAIEmbedder(memory.EmbedderConfig{
			APIKey: cfg.LLM.Providers["openai"].APIKey,
			Model:  cfg.Memory.Semantic.EmbeddingModel,
		})
		if err != nil {
			logger.Warn(ctx, "semantic memory disabled", "error", err)
			return store, closeFunc, nil
		}
		semantic, err := memory.NewSemanticStore(memory.SemanticConfig{
			Store: store,
			Embed: embed,
		}, logger)
		if err != nil {
			logger.Warn(ctx, "semantic memory disabled", "error", err)
			return store, closeFunc, nil
		}
		store = semantic
	}

	return store, closeFunc, nil
}

// buildTeam assembles the agent definitions. Tool assignment mirrors the
// engagement flow: reconnaissance and initial access drive the terminal,
// initial access keeps durable findings, summary reads them back.
func buildTeam(ctx context.Context, api terminal.SessionAPI, runner shell.CommandRunner, store memory.Store, binder *mcptools.Binder, userID string, logger *observability.Logger) []swarm.Definition {
	ns := memory.Namespace(userID)

	reconTools := shell.ReconTools(runner, logger)
	reconTools = append(reconTools, terminal.SessionTools(api)...)
	reconTools = append(reconTools, binder.ToolsFor(ctx, swarm.AgentReconnaissance)...)

	accessTools := shell.AccessTools(runner, logger)
	accessTools = append(accessTools, terminal.SessionTools(api)...)
	accessTools = append(accessTools,
		memory.NewManageTool(store, ns),
		memory.NewSearchTool(store, ns),
	)
	accessTools = append(accessTools, binder.ToolsFor(ctx, swarm.AgentInitialAccess)...)

	summaryTools := []agent.Tool{memory.NewSearchTool(store, ns)}
	summaryTools = append(summaryTools, binder.ToolsFor(ctx, swarm.AgentSummary)...)

	return []swarm.Definition{
		{
			Name:  swarm.AgentPlanner,
			Role:  "plans the engagement and routes work to specialists",
			Tools: binder.ToolsFor(ctx, swarm.AgentPlanner),
		},
		{
			Name:  swarm.AgentReconnaissance,
			Role:  "maps the attack surface with scanning and enumeration tooling",
			Tools: reconTools,
		},
		{
			Name:  swarm.AgentInitialAccess,
			Role:  "attempts authorized access against discovered services",
			Tools: accessTools,
		},
		{
			Name:  swarm.AgentSummary,
			Role:  "consolidates findings into an engagement report",
			Tools: summaryTools,
		},
	}
}

func (s *chatSession) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn(context.Background(), "cleanup failed", "error", err)
		}
	}
	if s.bridge != nil {
		s.bridge.Close()
	}
}

// run drives the session: a REPL on a terminal, one piped turn otherwise.
func (s *chatSession) run(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return s.runPiped(ctx, cmd)
	}

	s.printBanner(out)

	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "\nredcell> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case input == "/exit" || input == "exit" || input == "quit":
			fmt.Fprintf(out, "session log: %s\n", s.writer.Path())
			return nil
		case input == "/new":
			s.convID = thread.NewConversationID()
			s.fresh = true
			fmt.Fprintln(out, "started a new conversation")
		case input == "/agents":
			s.printAgents(out)
		case input == "/help":
			s.printHelp(out)
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(out, "unknown command %s (try /help)\n", input)
		default:
			if err := s.turn(ctx, out, input); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	}

	fmt.Fprintf(out, "session log: %s\n", s.writer.Path())
	return nil
}

// runPiped reads all of stdin as one prompt and executes a single turn.
func (s *chatSession) runPiped(ctx context.Context, cmd *cobra.Command) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return errors.New("empty input on stdin")
	}
	return s.turn(ctx, cmd.OutOrStdout(), input)
}

// turn executes one workflow turn and renders its event stream. Ctrl-C
// cancels the running turn without killing the session.
func (s *chatSession) turn(ctx context.Context, out io.Writer, input string) error {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	events, err := s.executor.Execute(turnCtx, input, workflow.TurnConfig{
		UserID:         s.userID,
		ConversationID: s.convID,
		FreshThread:    s.fresh,
	})
	if err != nil {
		return err
	}
	s.fresh = false

	render := newRenderer(out, false, s.cfg.Chat.Height)
	finished := false
	for ev := range events {
		if s.bridge != nil {
			s.bridge.Publish(ev)
		}
		render.event(ev)
		if ev.Kind == models.EventWorkflowComplete || ev.Kind == models.EventError {
			finished = true
		}
	}
	if !finished && turnCtx.Err() != nil {
		fmt.Fprintln(out, "\nturn cancelled")
	}
	return nil
}

func (s *chatSession) printBanner(out io.Writer) {
	fmt.Fprintf(out, "redcell %s — authorized use only\n", version)
	fmt.Fprintf(out, "model: %s (%s)\n", s.model, s.cfg.LLM.DefaultProvider)
	fmt.Fprintf(out, "terminal: %s", s.cfg.Terminal.Mode)
	if s.cfg.Terminal.Container != "" {
		fmt.Fprintf(out, " (container %s)", s.cfg.Terminal.Container)
	}
	fmt.Fprintln(out)
	if addr := s.cfg.Chat.BroadcastAddr; addr != "" {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		fmt.Fprintf(out, "broadcast: ws://%s/ws\n", addr)
	}
	fmt.Fprintln(out, "type a request, or /help for commands")
}

func (s *chatSession) printAgents(out io.Writer) {
	for _, def := range s.team {
		marker := " "
		if def.Name == swarm.AgentPlanner {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-16s %s (%d tools)\n", marker, def.Name, def.Role, len(def.Tools))
	}
	fmt.Fprintln(out, "* default entry agent")
}

func (s *chatSession) printHelp(out io.Writer) {
	fmt.Fprintln(out, "/new     start a fresh conversation")
	fmt.Fprintln(out, "/agents  show the agent team")
	fmt.Fprintln(out, "/help    show this help")
	fmt.Fprintln(out, "/exit    leave the session")
	fmt.Fprintln(out, "anything else is sent to the planner")
}
