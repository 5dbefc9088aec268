package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zen-systems/chatgate/pkg/adapter"
	"github.com/zen-systems/chatgate/pkg/artifact"
	"github.com/zen-systems/chatgate/pkg/config"
	"github.com/zen-systems/chatgate/pkg/intent"
	"github.com/zen-systems/chatgate/pkg/mediator"
	"github.com/zen-systems/chatgate/pkg/router"
	"github.com/zen-systems/chatgate/pkg/security"
	"github.com/zen-systems/chatgate/pkg/server"
)

var modelFlag string
var modeFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatgate",
		Short: "Query mediation gateway between chat clients and LLM backends",
		Long: `Chatgate sits between a chat front-end and interchangeable LLM backends.
	It classifies each query's intent, routes it to an appropriate model,
	validates the answer against security heuristics and an optional LLM
	judge, and redacts personal data before anything reaches the caller.
	Privacy-constrained queries never leave the host.`,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(modesCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var listenFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			reg, err := buildRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			store := config.OpenRoutingStore(cfg.RoutingPath(), logger)
			med := buildMediator(cfg, reg, store, logger)

			addr := cfg.ListenAddr
			if listenFlag != "" {
				addr = listenFlag
			}
			srv := server.New(addr, med, reg, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listenFlag, "listen", "", "listen address (overrides config)")
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Mediate a single query from the command line",
		Long: `Runs one query through the full pipeline: intent classification,
	routing, generation, security validation, and PII redaction. The answer
	prints to stdout; routing details print to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			reg, err := buildRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			store := config.OpenRoutingStore(cfg.RoutingPath(), logger)
			med := buildMediator(cfg, reg, store, logger)

			out, err := med.Mediate(cmd.Context(), mediator.Request{
				Text:    args[0],
				ModelID: modelFlag,
				ModeID:  modeFlag,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "intent=%s model=%s adapter=%s private=%v\n",
				out.Routing.Intent, out.Routing.Generation.ModelID,
				out.Routing.Generation.Adapter, out.Routing.RequiresPrivacy)

			if out.Status == mediator.StatusBlocked {
				return fmt.Errorf("answer blocked: %s", out.Security.Reason)
			}
			fmt.Println(out.Answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "pin the generation model (\"auto\" defers to routing)")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "pin the chat mode (see modes)")
	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			reg, err := buildRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tPROVIDER\tKIND\tLOCAL\tSTATUS")
			for _, d := range reg.Descriptors() {
				status := "offline"
				if d.Online {
					status = "online"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", d.ID, d.Provider, d.Kind, d.Local, status)
			}
			return w.Flush()
		},
	}
}

func modesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List chat modes and the intent each one pins",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODE\tNAME\tINTENT\tDESCRIPTION")
			for _, m := range intent.Modes() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Intent, m.Description)
			}
			return w.Flush()
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the persisted meta-task routing overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			store := config.OpenRoutingStore(cfg.RoutingPath(), logger)
			snap := store.Snapshot()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tMODEL")
			for _, task := range config.MetaTasks {
				fmt.Fprintf(w, "%s\t%s\n", task, snap.Choice(task))
			}
			return w.Flush()
		},
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildRegistry registers every adapter with a configured key plus the
// local runtime, then the model catalog. Commercial models are online when
// their provider key is present; local models come from the runtime's tag
// list and are online only when the runtime answers.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*adapter.Registry, error) {
	reg := adapter.NewRegistry()

	if cfg.AnthropicAPIKey != "" {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		reg.RegisterAdapter(a)
	}
	if cfg.OpenAIAPIKey != "" {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		reg.RegisterAdapter(a)
	}
	if cfg.GoogleAPIKey != "" {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		reg.RegisterAdapter(a)
	}
	if cfg.MoonshotAPIKey != "" {
		a, err := adapter.NewMoonshotAdapter(cfg.MoonshotAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create moonshot adapter: %w", err)
		}
		reg.RegisterAdapter(a)
	}

	ollama := adapter.NewOllamaAdapter(cfg.OllamaBaseURL)
	reg.RegisterAdapter(ollama)

	for _, d := range config.CommercialModels() {
		if !cfg.HasAdapter(d.Provider) {
			continue
		}
		d.Online = true
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}

	runtimeUp := ollama.Ping(ctx)
	tags, err := ollama.ListModels(ctx)
	if err != nil {
		logger.Warn("local runtime not reachable, local models offline", "error", err)
		tags = nil
	}
	seen := map[string]bool{}
	for _, tag := range tags {
		seen[tag] = true
		if err := reg.Register(config.LocalModelDescriptor(tag, runtimeUp)); err != nil {
			return nil, err
		}
	}
	// The configured default must resolve even before it is pulled.
	if !seen[cfg.OllamaDefaultModel] {
		if err := reg.Register(config.LocalModelDescriptor(cfg.OllamaDefaultModel, runtimeUp)); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

func buildMediator(cfg *config.Config, reg *adapter.Registry, store *config.RoutingStore, logger *slog.Logger) *mediator.Mediator {
	classifier := intent.NewClassifier(reg, logger)
	rt := router.New(reg, classifier, cfg.OllamaDefaultModel, logger)
	validator := security.NewValidator(reg, cfg.OllamaJudgeModel, logger)
	redactor := security.NewRedactor(reg, logger)
	med := mediator.New(reg, rt, validator, redactor, store, logger)

	if artifacts, err := artifact.NewStore(filepath.Join(cfg.ConfigDir, "artifacts")); err != nil {
		logger.Warn("artifact store disabled", "error", err)
	} else {
		med.WithArtifactStore(artifacts)
	}
	return med
}
