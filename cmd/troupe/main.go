// Package main is the entry point for the troupe CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/troupelabs/troupe/internal/character"
	"github.com/troupelabs/troupe/internal/config"
	"github.com/troupelabs/troupe/internal/conversation"
	"github.com/troupelabs/troupe/internal/core"
	"github.com/troupelabs/troupe/internal/cron"
	"github.com/troupelabs/troupe/internal/history"
	"github.com/troupelabs/troupe/internal/provider"
	"github.com/troupelabs/troupe/internal/session"
	"github.com/troupelabs/troupe/internal/speech"
	"github.com/troupelabs/troupe/internal/tracer"

	_ "github.com/troupelabs/troupe/internal/gateway"
	_ "github.com/troupelabs/troupe/modules/history/sqlite"
	_ "github.com/troupelabs/troupe/modules/provider/gemini"
	_ "github.com/troupelabs/troupe/modules/speech/azure"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "troupe",
		Short:         "Scripted multi-agent conversations over LLM chat sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), runCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("troupe %s (commit: %s, built: %s)\n", version, commit, date)
			mods := core.GetModules()
			if len(mods) == 0 {
				fmt.Println("\nNo compiled modules.")
				return
			}
			fmt.Println("\nCompiled modules:")
			for _, mod := range mods {
				fmt.Printf("  %s\n", mod.ID)
			}
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured conversation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := resolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}

			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func run(cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	appCtx := core.NewAppContext(logger, defaultDataDir())
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	app := core.NewApp(appCtx)
	if err := app.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}
	defer app.Stop()

	manager, err := buildManager(appCtx, cfg)
	if err != nil {
		return err
	}
	appCtx.RegisterService("session.manager", manager)

	sheets, err := character.LoadDir(cfg.Characters.Dir)
	if err != nil {
		return err
	}

	runnerOpts := []conversation.RunnerOption{conversation.WithLogger(logger)}

	recorder := resolveRecorder(appCtx)
	if recorder != nil {
		runnerOpts = append(runnerOpts, conversation.WithRecorder(recorder))
	}

	if cfg.Conversation.Narrate {
		synth, ok := resolveSynthesizer(appCtx)
		if !ok {
			return fmt.Errorf("narration enabled but no speech module is configured")
		}
		runnerOpts = append(runnerOpts, conversation.WithSynthesizer(synth))
	}

	if err := app.Start(); err != nil {
		return err
	}

	if cfg.Conversation.Flush.Schedule != "" {
		if recorder == nil {
			return fmt.Errorf("flush schedule set but no history module is configured")
		}
		scheduler := cron.NewScheduler(logger)
		job := &cron.HistoryFlushJob{
			Manager:      manager,
			Recorder:     recorder,
			Destination:  cfg.Conversation.Flush.Destination,
			Logger:       logger,
			ScheduleExpr: cfg.Conversation.Flush.Schedule,
		}
		if err := scheduler.RegisterJob(job); err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer func() {
			if err := scheduler.Stop(context.Background()); err != nil {
				logger.Error("scheduler stop error", "error", err)
			}
		}()
	}

	runner := conversation.NewRunner(manager, sheets, runnerOpts...)
	script := conversation.Script{
		Cast:             cfg.Conversation.Cast,
		Opening:          cfg.Conversation.Opening,
		Turns:            cfg.Conversation.Turns,
		Narrate:          cfg.Conversation.Narrate,
		FlushDestination: cfg.Conversation.Flush.Destination,
	}
	return runner.Run(ctx, script)
}

// buildManager resolves the provider client registered by the provider
// module and wraps it in a session manager, wiring in the gateway's
// metrics collector when one is present.
func buildManager(appCtx *core.AppContext, cfg *config.Config) (*session.Manager, error) {
	svc, ok := appCtx.Service("provider.client")
	if !ok {
		return nil, fmt.Errorf("no provider module registered a client")
	}
	client, ok := svc.(provider.Client)
	if !ok {
		return nil, fmt.Errorf("service provider.client has unexpected type %T", svc)
	}
	if setter, ok := svc.(interface{ SetModels([]string) }); ok {
		setter.SetModels(cfg.AllowedModels())
	}

	opts := []session.ManagerOption{session.WithManagerLogger(appCtx.Logger)}
	if svc, ok := appCtx.Service("gateway.metrics"); ok {
		if obs, ok := svc.(session.Observer); ok {
			opts = append(opts, session.WithSessionOptions(session.WithObserver(obs)))
		}
	}
	return session.NewManager(client, cfg.PriceTable(), opts...), nil
}

func resolveRecorder(appCtx *core.AppContext) history.Recorder {
	svc, ok := appCtx.Service("history.recorder")
	if !ok {
		return nil
	}
	rec, ok := svc.(history.Recorder)
	if !ok {
		return nil
	}
	return rec
}

func resolveSynthesizer(appCtx *core.AppContext) (speech.Synthesizer, bool) {
	svc, ok := appCtx.Service("speech.synthesizer")
	if !ok {
		return nil, false
	}
	synth, ok := svc.(speech.Synthesizer)
	return synth, ok
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))
			appCtx := core.NewAppContext(logger, defaultDataDir())
			appCtx = appCtx.WithModuleConfigs(cfg.Modules)

			app := core.NewApp(appCtx)
			ids := config.Resolve(cfg)
			if err := app.LoadModules(ids); err != nil {
				return err
			}
			defer app.Stop()

			if _, err := character.LoadDir(cfg.Characters.Dir); err != nil {
				return err
			}

			fmt.Printf("Configuration OK (%d modules)\n", len(ids))
			for _, id := range ids {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}

// resolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/troupe/troupe.yaml → ./troupe.yaml
func resolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "troupe", "troupe.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "troupe", "troupe.yaml"))
	}

	candidates = append(candidates, "troupe.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

func defaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "troupe")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "troupe", "data")
}
