package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/codexpanel/internal/botshell"
	"github.com/nextlevelbuilder/codexpanel/internal/config"
	"github.com/nextlevelbuilder/codexpanel/internal/panel"
	"github.com/nextlevelbuilder/codexpanel/internal/registry"
	"github.com/nextlevelbuilder/codexpanel/internal/state"
	"github.com/nextlevelbuilder/codexpanel/internal/telegram"
	"github.com/nextlevelbuilder/codexpanel/internal/telemetry"
	"github.com/nextlevelbuilder/codexpanel/internal/ui"
)

// Version is set at build time via -ldflags "-X github.com/nextlevelbuilder/codexpanel/cmd.Version=v1.0.0"
var Version = "dev"

const shutdownGrace = 30 * time.Second

var (
	cfgFile string
	rootDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "codexpanel",
	Short: "Telegram control plane for Codex CLI sessions",
	Long:  "codexpanel runs a single-user Telegram bot that creates, attaches to, and drives Codex CLI subprocess sessions from a chat panel.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CODEXPANEL_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "root directory for the .vibes runtime layout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("codexpanel %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CODEXPANEL_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runServe loads configuration, wires every component, and blocks
// serving updates until ctx is cancelled (SIGINT/SIGTERM), then drains
// active runs and persists final state before returning (§4.9).
func runServe(ctx context.Context) error {
	log := newLogger()

	paths := config.DefaultRuntimePaths(rootDir)
	cfg, err := config.Load(resolveConfigPath(), paths)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("CODEXPANEL_BOT_TOKEN is not set")
	}

	legacy := state.LegacyPaths{
		StateFilePath: "state.json",
		LogDir:        "logs",
		BotLogPath:    "bot.log",
	}
	state.MigrateLegacyLayout(legacy, paths.StateFilePath, paths.LogDir, paths.BotLogPath, paths.Overridden(), log)

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	store := state.New(paths.StateFilePath, legacy, log)

	transport, err := telegram.New(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("create telegram transport: %w", err)
	}
	notice := telegram.NewNotice(transport, log)

	panelRenderer := panel.New(transport, nil, log)

	reg := registry.New(store, transport, panelRenderer, notice, registry.Config{
		DefaultModel:           cfg.Agent.DefaultModel,
		DefaultReasoningEffort: cfg.Agent.ReasoningEffort,
		SandboxMode:            cfg.Agent.SandboxMode,
		ApprovalPolicy:         cfg.Agent.ApprovalPolicy,
		LogDir:                 paths.LogDir,
		CodexBinary:            cfg.Agent.Binary,
	}, log)
	panelRenderer.SetBindings(reg)

	snap := store.Load()
	reg.LoadFromSnapshot(snap)
	cfg.SetPathPresets(reg.PathPresets())
	if snap.OwnerID != nil {
		notice.SetOwnerChatID(*snap.OwnerID)
	}

	controller := ui.New(reg, panelRenderer, transport, cfg, log)
	reg.SetFinishListener(controller.RefreshSession)

	if cfgPath := resolveConfigPath(); cfgPath != "" {
		stopWatch, err := config.Watch(ctx, cfgPath, cfg, log)
		if err != nil {
			log.Warn("config hot-reload disabled", "err", err)
		} else {
			defer stopWatch()
		}
	}

	shell := botshell.New(transport, notice, reg, controller, cfg, log)
	if err := shell.Start(ctx); err != nil {
		return fmt.Errorf("start bot shell: %w", err)
	}

	log.Info("codexpanel running")
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	reg.Shutdown(shutdownCtx)
	shell.Stop()

	ownerID := notice.OwnerChatID()
	var ownerIDPtr *int64
	if ownerID != 0 {
		ownerIDPtr = &ownerID
	}
	if err := store.Save(reg.Snapshot(ownerIDPtr)); err != nil {
		log.Error("final state save failed", "err", err)
	}
	return nil
}
