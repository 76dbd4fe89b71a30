package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nylon-dev/nylon/pkg/background"
	"github.com/nylon-dev/nylon/pkg/cli"
	"github.com/nylon-dev/nylon/pkg/config"
	"github.com/nylon-dev/nylon/pkg/proxy"
	"github.com/nylon-dev/nylon/pkg/store"
	"github.com/nylon-dev/nylon/pkg/telemetry/health"
	"github.com/nylon-dev/nylon/pkg/telemetry/metrics"
	nylontls "github.com/nylon-dev/nylon/pkg/tls"
	"github.com/nylon-dev/nylon/pkg/websocket"
	"github.com/nylon-dev/nylon/pkg/websocket/adapter"
)

var runFlags struct {
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Nylon gateway",
	Long: `Start the Nylon gateway with the specified configuration.

The gateway binds every configured listener and dispatches matched
requests through the route table, the middleware pipeline, and the
selected backend service.

Examples:
  # Start with default config
  nylon run

  # Start with custom config
  nylon run --config /etc/nylon/config.yaml

  # Validate config without starting the gateway
  nylon run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the gateway")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	if runFlags.logLevel != "" {
		if err := logLevel.UnmarshalText([]byte(runFlags.logLevel)); err != nil {
			logLevel = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	printBanner(cfg)

	st := store.New()
	if err := st.Commit(&store.Snapshot{Config: cfg}); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("commit initial snapshot: %w", err))
	}

	tlsProvider, acmeProvider, err := buildTLSProvider(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	rooms := websocket.NewRooms(adapter.NewMemory(), hostnameOrDefault())

	checker := health.New(2 * time.Second)
	srv := proxy.NewServer(st, checker, rooms, tlsProvider, Version, GitCommit, BuildDate)
	srv.SetMetrics(collector)

	var bgOpts []background.Option
	if acmeProvider != nil {
		bgOpts = append(bgOpts, background.WithRenewalChecker(acmeProvider))
	}
	bg := background.New(st, bgOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bg.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("start background service: %w", err))
	}

	if err := srv.Start(ctx); err != nil {
		bg.Stop(ctx)
		return cli.NewCommandError("run", fmt.Errorf("start gateway: %w", err))
	}

	fmt.Println("gateway started")
	sigChan := cli.WaitForShutdown()
	sig := <-sigChan
	fmt.Printf("received signal %s, shutting down gracefully...\n", sig)
	cancel()

	shutdownTimeout := time.Duration(cfg.Runtime.GracefulShutdownTimeoutSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway shutdown failed", "error", err)
	}
	if errs := bg.Stop(shutdownCtx); len(errs) > 0 {
		for _, err := range errs {
			slog.Error("plugin drain failed", "error", err)
		}
	}

	fmt.Println("stopped")
	return nil
}

// buildTLSProvider constructs the composite TLS provider only when at
// least one listener actually requires it; a config with no https
// listener should not require an acme_storage_dir to be set. It also
// returns the bare *tls.ACMEProvider, if one was built, so the caller can
// wire it into the Background Service's renewal sweep directly — the
// composite wrapper that serves handshakes doesn't itself expose
// CheckRenewals/TriggerRenewal.
func buildTLSProvider(cfg *config.Config) (nylontls.Provider, *nylontls.ACMEProvider, error) {
	needsTLS := false
	hasACME := false
	for _, l := range cfg.Listeners {
		if l.Protocol == "https" {
			needsTLS = true
		}
	}
	for _, entry := range cfg.TLS {
		if entry.Mode == "acme" {
			hasACME = true
		}
	}
	if !needsTLS {
		return nil, nil, nil
	}

	var acmeProvider *nylontls.ACMEProvider
	if hasACME {
		var err error
		acmeProvider, err = nylontls.NewACMEProvider(cfg.ACMEStorageDir, cfg.TLS)
		if err != nil {
			return nil, nil, err
		}
	}

	provider, err := nylontls.NewCompositeProvider(cfg.ACMEStorageDir, cfg.TLS)
	if err != nil {
		return nil, nil, err
	}
	return provider, acmeProvider, nil
}

func hostnameOrDefault() string {
	host, err := os.Hostname()
	if err != nil {
		return "nylon"
	}
	return host
}

func printBanner(cfg *config.Config) {
	fmt.Printf("Nylon v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("configuration loaded")
	slog.Debug("gateway config summary",
		"listeners", len(cfg.Listeners),
		"services", len(cfg.Services),
		"routes", len(cfg.Routes),
		"plugins", len(cfg.Plugins),
	)
}
