package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	_ "github.com/sctg-development/photoacoustic-go/internal/actions"
	"github.com/sctg-development/photoacoustic-go/internal/audiobus"
	_ "github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/hotreload"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/modbusmap"
	"github.com/sctg-development/photoacoustic-go/internal/observability/metrics"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
	"github.com/sctg-development/photoacoustic-go/internal/webapi"
)

// Command creates a new cobra.Command that wires the full processing
// pipeline (frame bus, graph, hot-reload controller, Modbus bridge, web
// API) and runs it until interrupted. It does not itself produce audio
// frames, and the Bus it creates stays local to run: nothing outside this
// package is handed the Bus to publish onto.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the photoacoustic processing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	return cmd
}

func run(settings *conf.Settings) error {
	logging.Init()
	logger := logging.ForService("serve")

	cfg, err := procgraph.LoadConfigFile(settings.Graph.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading graph config %q: %w", settings.Graph.ConfigPath, err)
	}

	state := pastate.New()

	g, err := procgraph.FromConfig(cfg, state)
	if err != nil {
		return fmt.Errorf("building graph %q: %w", settings.Graph.ConfigPath, err)
	}

	controller := hotreload.NewController(g, cfg, state)

	bus := audiobus.New(settings.AudioBus.RingCapacity)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
		cancel()
	}()

	registry := prometheus.NewRegistry()
	graphMetrics, err := metrics.NewGraphMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering graph metrics: %w", err)
	}

	hub := webapi.NewHub()
	server := webapi.New(controller, state, hub, registry)

	if settings.WebServer.Enabled {
		go func() {
			if err := server.Start(settings.WebServer.Listen); err != nil {
				logger.Error("web server stopped", "error", err)
			}
		}()
		logger.Info("web API listening", "addr", settings.WebServer.Listen)
	}

	if settings.Modbus.Enabled {
		go runModbusBridge(ctx, settings, state, logger)
	}

	runExecutionLoop(ctx, bus, controller, hub, graphMetrics, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if settings.WebServer.Enabled {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down web server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// runExecutionLoop subscribes to bus and runs every published frame
// through the controller's live graph until ctx is cancelled or the bus
// is closed. Results are published to hub for the live stream endpoint.
func runExecutionLoop(ctx context.Context, bus *audiobus.Bus, controller *hotreload.Controller, hub *webapi.Hub, graphMetrics *metrics.GraphMetrics, logger *slog.Logger) {
	consumer := bus.Subscribe()
	defer consumer.Close()

	for {
		frame, lagged, err := consumer.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			logger.Error("bus consumer stopped", "error", err)
			return
		}
		if lagged > 0 {
			logger.Warn("execution loop lagged behind the frame bus", "frames_skipped", lagged)
		}

		start := time.Now()
		out, err := controller.Execute(frame)
		graphMetrics.RecordDuration("execute", time.Since(start).Seconds())
		if err != nil {
			graphMetrics.RecordOperation("execute", "error")
			graphMetrics.RecordError("execute", fmt.Sprintf("%T", err))
			logger.Error("graph execution failed", "error", err, "frame", frame.FrameNumber)
			continue
		}
		graphMetrics.RecordOperation("execute", "ok")

		if result, ok := out.Result(); ok {
			hub.Publish(result)
		}
	}
}

func runModbusBridge(ctx context.Context, settings *conf.Settings, state *pastate.State, logger *slog.Logger) {
	bank := modbusmap.NewBank()
	interval := time.Duration(settings.Modbus.RefreshIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("modbus register bank refresh started", "interval_ms", settings.Modbus.RefreshIntervalMs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			modbusmap.SyncFromState(bank, state, "concentration", "peak", 0.05)
		}
	}
}
