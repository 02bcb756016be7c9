// Package main is the entry point for the Echoes of Aether engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aether-games/echoes-engine/internal/archive"
	"github.com/aether-games/echoes-engine/internal/config"
	"github.com/aether-games/echoes-engine/internal/gateway/ws"
	"github.com/aether-games/echoes-engine/internal/grant"
	"github.com/aether-games/echoes-engine/internal/guard"
	"github.com/aether-games/echoes-engine/internal/httpapi"
	"github.com/aether-games/echoes-engine/internal/registry"
	"github.com/aether-games/echoes-engine/internal/roles"
	"github.com/aether-games/echoes-engine/internal/schedule"
	"github.com/aether-games/echoes-engine/internal/store"
	"github.com/aether-games/echoes-engine/internal/telemetry"
	"github.com/aether-games/echoes-engine/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration YAML file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("echoes %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > ECHOES_CONFIG env > next to exe.
	// With none found the environment alone must configure the engine.
	path := *configPath
	if path == "" {
		path = os.Getenv("ECHOES_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, "echoes-engine", cfg.OTelEndpoint)
	if err != nil {
		log.Printf("WARN: tracing disabled: %v", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	journal := store.NewJournal(db)

	policy := ""
	if cfg.PolicyFile != "" {
		b, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			fatal(fmt.Sprintf("read policy: %v", err))
		}
		policy = string(b)
	}
	g, err := guard.NewGuard(ctx, guard.GuardConfig{
		OwnerID:            cfg.OwnerID,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Policy:             policy,
	}, journal, journal)
	if err != nil {
		fatal(fmt.Sprintf("prepare policy: %v", err))
	}

	signer, err := grant.NewSigner(cfg.GrantSecret, cfg.GrantTTL, nil)
	if err != nil {
		fatal(fmt.Sprintf("grant signer: %v", err))
	}

	hub, err := ws.NewHub(signer, log.Default())
	if err != nil {
		log.Fatalf("websocket hub: %v", err)
	}

	timers := schedule.NewTimers()
	coord := workflow.NewCoordinator(registry.NewMemory(), hub, timers, workflowConfig(cfg),
		workflow.WithJournal(journal),
		workflow.WithRateLimits(g),
		workflow.WithArchive(archive.NewWriter(cfg.ArchiveDir)),
		workflow.WithTracer(telemetry.Tracer()),
	)
	hub.Attach(coord)

	handler := httpapi.NewHandler(coord, g, journal, signer)
	e := httpapi.NewServer(handler, hub.Handler())

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Println("shutting down...")

		timers.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(ctx); err != nil {
			log.Printf("server shutdown: %v", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	log.Printf("echoes engine listening on %s", cfg.ListenAddr)
	if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatal(fmt.Sprintf("server error: %v", err))
	}
}

// workflowConfig maps the runtime configuration onto the coordinator knobs.
func workflowConfig(cfg *config.Config) workflow.Config {
	wc := workflow.DefaultConfig()
	wc.MinPlayers = cfg.MinPlayers
	wc.LobbyCountdown = cfg.LobbyCountdown
	wc.LobbyExtend = cfg.LobbyExtend
	wc.NightWindow = cfg.NightWindow
	wc.DayWindow = cfg.DayWindow
	wc.EchoWindow = cfg.EchoWindow
	wc.FinalEchoRound = cfg.FinalEchoRound
	wc.TwistEvery = cfg.TwistEvery
	wc.Roles = roles.DefaultConfig()
	wc.Roles.ShadeEvery = cfg.ShadeEvery
	return wc
}

// discoverConfig looks for config.yaml next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
