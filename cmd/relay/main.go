// Command relay serves the websocket hub that session processes sync through.
// It owns the authoritative phase clock and broadcasts it to every peer.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/duskfall/components"
	"github.com/pthm-cable/duskfall/config"
	"github.com/pthm-cable/duskfall/game"
	"github.com/pthm-cable/duskfall/netsync"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	addr := flag.String("addr", "", "Listen address (empty = use config)")
	startPhase := flag.String("phase", "MORNING", "Phase the clock starts in")
	relayOnly := flag.Bool("relay-only", false, "Relay frames without owning the phase clock")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	listen := cfg.Relay.Addr
	if *addr != "" {
		listen = *addr
	}

	var clock *game.PhaseClock
	if !*relayOnly {
		phase, err := components.ParsePhase(*startPhase)
		if err != nil {
			slog.Error("invalid start phase", "error", err)
			os.Exit(1)
		}
		clock = game.NewPhaseClock(cfg.Derived.PhaseDurations, phase)
	}

	hub := netsync.NewHub(cfg.Relay, clock)
	mux := http.NewServeMux()
	mux.Handle("/sync", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("relay listening", "addr", listen, "clock", clock != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
	slog.Info("relay stopped", "peers", hub.Peers())
}
