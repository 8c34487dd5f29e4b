// threadcatch attaches to a live JVM over JDWP and reports where a
// thread with a configured name is constructed, as a call-stack
// snapshot of the constructing thread.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"threadcatch/internal/attributes"
	"threadcatch/internal/config"
	"threadcatch/internal/eventstream"
	"threadcatch/internal/jdwp"
	"threadcatch/internal/otel"
	"threadcatch/internal/output"
	"threadcatch/internal/stackcap"
	"threadcatch/internal/symbols"
	"threadcatch/internal/watcher"

	"go.opentelemetry.io/otel/trace"
)

// Version information injected by GoReleaser at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider and returns a tracer and cleanup function.
func setupOTEL() (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}

	tp, err := otel.InitProvider(otelCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(tp, shutdownCtx); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}

	return tp.Tracer("threadcatch"), cleanup, nil
}

// setupHost dials the VM, negotiates capabilities and logs its version.
func setupHost(cfg *config.Config) (*jdwp.Client, error) {
	client, err := jdwp.Dial(cfg.Addr)
	if err != nil {
		return nil, err
	}

	if err := client.Negotiate(); err != nil {
		_ = client.Close() //nolint:errcheck // Best-effort cleanup in error path
		return nil, err
	}

	if v, err := client.Version(); err != nil {
		log.Printf("VM version query failed: %v", err)
	} else {
		log.Printf("Attached to %s (%s), JDWP %d.%d", v.VMName, v.VMVersion, v.JDWPMajor, v.JDWPMinor)
	}

	return client, nil
}

// setupHandlers builds the catch handlers: the plain diagnostic
// formatter, plus span export when enabled.
func setupHandlers(cfg *config.Config) ([]watcher.CatchHandler, func(), error) {
	handlers := []watcher.CatchHandler{output.NewTextFormatter(os.Stderr)}
	cleanup := func() {}

	if !cfg.EnableOTEL {
		return handlers, cleanup, nil
	}

	tracer, cleanupOTEL, err := setupOTEL()
	if err != nil {
		return nil, nil, err
	}

	evaluator, err := attributes.NewEvaluator(cfg.CustomAttributes)
	if err != nil {
		cleanupOTEL()
		return nil, nil, err
	}

	handlers = append(handlers, output.NewOTELFormatter(tracer, evaluator))
	return handlers, cleanupOTEL, nil
}

func run() error {
	cfg, err := config.ParseArgs(os.Args)
	if err != nil {
		return err
	}

	log.Printf("Starting threadcatch %s (commit: %s, built: %s)", version, commit, date)

	handlers, cleanupHandlers, err := setupHandlers(cfg)
	if err != nil {
		return err
	}
	defer cleanupHandlers()

	client, err := setupHost(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing connection: %v", err)
		}
	}()

	resolver := symbols.NewResolver(client)
	capturer := stackcap.NewCapturer(client, resolver, cfg.SkipFrames, cfg.MaxFrames)
	w := watcher.New(client, resolver, capturer, cfg.ThreadName, handlers...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The dispatch loop runs before any event category is enabled, so
	// no event can arrive without a registered handler.
	stream := eventstream.New(client.Events(), w, client)
	if err := stream.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			log.Printf("Error stopping stream: %v", err)
		}
	}()

	if err := client.RequestClassPrepare(); err != nil {
		return err
	}

	log.Printf("Watching for thread %q on %s...", cfg.ThreadName, cfg.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("Received signal, terminating...")
	case <-client.Done():
		log.Println("VM connection closed.")
	}

	return nil
}
