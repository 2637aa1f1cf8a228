// Package main is the entry point for the SceneCraft CLI. The CLI drives
// the agent core against a simulated host, which is useful for prompt and
// pipeline work without a running 3D application; embedders wire the same
// orchestrator against their real host executor.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/scenecraft/scenecraft/internal/agents"
	"github.com/scenecraft/scenecraft/internal/bridge"
	"github.com/scenecraft/scenecraft/internal/config"
	"github.com/scenecraft/scenecraft/internal/llm"
	"github.com/scenecraft/scenecraft/internal/logging"
	"github.com/scenecraft/scenecraft/internal/server"
	"github.com/scenecraft/scenecraft/internal/session"
	"github.com/scenecraft/scenecraft/internal/tools"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scenecraft",
		Short: "SceneCraft - LLM agent core for 3D scene work",
		Long: `SceneCraft turns natural-language requests into tool calls against a
3D host application: routing, planning, bounded execution, and validation.

Interactive chat:   scenecraft
One-shot request:   scenecraft ask "create a red cube"
Tool catalog:       scenecraft tools
Session history:    scenecraft sessions list`,
		PersistentPreRunE: initLogging,
		RunE:              runChat,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.scenecraft/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("SceneCraft v%s\n", version)
		},
	})

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	logDir := filepath.Join(home, ".scenecraft", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile := filepath.Join(logDir, fmt.Sprintf("scenecraft_%s.log", timestamp))

	var cfg *logging.Config
	if verbose {
		cfg = logging.VerboseConfig()
	} else {
		cfg = logging.DefaultConfig()
	}
	cfg.FilePath = logFile

	log = logging.New(cfg)
	logging.SetGlobal(log)
	log.Debug("logging to %s", logFile)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════
// CORE WIRING
// ═══════════════════════════════════════════════════════════════════════

// core bundles everything a command needs for a turn.
type core struct {
	cfg     *config.Config
	bridge  *bridge.Bridge
	orch    *agents.Orchestrator
	store   *session.Store
	metrics *session.MetricsWriter
	hub     *server.Hub
}

func buildCore() (*core, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !verbose {
		logging.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	br := bridge.New(newSimulatedHost(), time.Duration(cfg.Agent.BridgeTimeoutSec)*time.Second)
	br.Start()

	registry := tools.NewBuiltinRegistry(br)

	store, err := session.OpenStore(cfg.Session.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	metrics, err := session.NewMetricsWriter(cfg.Session.MetricsPath)
	if err != nil {
		return nil, fmt.Errorf("open metrics stream: %w", err)
	}

	c := &core{
		cfg:     cfg,
		bridge:  br,
		store:   store,
		metrics: metrics,
		orch:    agents.NewOrchestrator(cfg, provider, registry, br, store, metrics),
	}

	if cfg.Events.Enabled {
		c.hub = server.NewHub(cfg.Events.Bind)
		if err := c.hub.Start(); err != nil {
			return nil, err
		}
		br.AddListener(c.hub.Listener())
	}
	return c, nil
}

func (c *core) shutdown() {
	if c.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = c.hub.Stop(ctx)
	}
	c.bridge.Stop()
	c.metrics.Close()
	c.store.Close()
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

// ═══════════════════════════════════════════════════════════════════════
// CHAT AND ASK
// ═══════════════════════════════════════════════════════════════════════

func runChat(cmd *cobra.Command, args []string) error {
	c, err := buildCore()
	if err != nil {
		return err
	}
	defer c.shutdown()

	// Ctrl-C cancels the turn in flight rather than killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		for range sigCh {
			fmt.Println("\n(cancelling...)")
			c.orch.Cancel()
		}
	}()
	defer signal.Stop(sigCh)

	fmt.Printf("SceneCraft v%s (%s, simulated host). Type a request, or /quit.\n", version, c.cfg.LLM.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit", line == "/exit":
			return nil
		}
		printOutcome(c.orch.HandleRequest(context.Background(), line))
	}
	return scanner.Err()
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <request>",
		Short: "Run a single request and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}
			defer c.shutdown()

			outcome := c.orch.HandleRequest(context.Background(), strings.Join(args, " "))
			printOutcome(outcome)
			if outcome.Kind == agents.OutcomeFailed {
				return fmt.Errorf("request failed")
			}
			return nil
		},
	}
}

func printOutcome(outcome agents.Outcome) {
	switch outcome.Kind {
	case agents.OutcomeNeedsConfirmation:
		fmt.Printf("? %s\n", outcome.Question)
	case agents.OutcomeFailed:
		fmt.Printf("✗ %s\n", outcome.Message)
	default:
		fmt.Print(renderMarkdown(outcome.Message))
		if outcome.Kind == agents.OutcomeNeedsSecondaryAnalysis && len(outcome.Issues) > 0 {
			fmt.Printf("(validator: %s)\n", strings.Join(outcome.Issues, "; "))
		}
	}
}

// renderMarkdown pretty-prints assistant output, falling back to plain
// text when the terminal renderer cannot initialize.
func renderMarkdown(content string) string {
	if strings.TrimSpace(content) == "" {
		return "(no output)\n"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content + "\n"
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}

// ═══════════════════════════════════════════════════════════════════════
// TOOLS, SESSIONS, SERVE
// ═══════════════════════════════════════════════════════════════════════

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := tools.NewBuiltinRegistry(nil)
			fmt.Print(renderMarkdown(tools.CatalogText(registry.All())))
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := session.OpenStore(cfg.Session.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sums, err := store.List(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(sums) == 0 {
				fmt.Println("no sessions recorded")
				return nil
			}
			for _, s := range sums {
				fmt.Printf("%s  %-24s  %-12s  %2d tool(s)  %6dms  %s\n",
					s.ID[:8], s.StartedAt.Format("2006-01-02 15:04:05"),
					s.Outcome, s.ToolCalls, s.DurationMS, clip(s.UserRequest, 48))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "number of sessions to show")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Dump one session as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := session.OpenStore(cfg.Session.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(sess.Snapshot(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	sessions.AddCommand(list, show)
	return sessions
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket event hub until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hub := server.NewHub(cfg.Events.Bind)
			if err := hub.Start(); err != nil {
				return err
			}
			fmt.Printf("event hub on ws://%s%s (Ctrl-C to stop)\n", cfg.Events.Bind, server.EventsEndpoint)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return hub.Stop(ctx)
		},
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
