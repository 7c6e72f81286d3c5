package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/platform/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/platform/internal/platform"
	"github.com/GriffinCanCode/AgentOS/platform/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override environment
	home := flag.String("home", cfg.Platform.Home, "Platform home directory")
	plugins := flag.String("plugins", strings.Join(cfg.Platform.PluginDirs, ","), "Extra plugin directories, comma separated")
	cache := flag.String("cache", cfg.Platform.CacheDir, "Code cache directory (default <home>/cache)")
	clean := flag.Bool("clean", cfg.Platform.CleanStart, "Clear the code cache before starting")
	copyLibs := flag.Bool("copy-libraries", cfg.Platform.CopyLibraries, "Copy libraries of directory bundles into the code cache")
	logLevel := flag.String("log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development mode (colored logs, debug level)")
	serve := flag.Bool("server", cfg.Server.Enabled, "Run the introspection server")
	host := flag.String("host", cfg.Server.Host, "Introspection server host")
	port := flag.String("port", cfg.Server.Port, "Introspection server port")
	list := flag.Bool("list", false, "Print the bundle table and exit")
	flag.Parse()

	cfg.Platform.Home = *home
	cfg.Platform.PluginDirs = splitList(*plugins)
	cfg.Platform.CacheDir = *cache
	cfg.Platform.CleanStart = *clean
	cfg.Platform.CopyLibraries = *copyLibs
	cfg.Logging.Level = *logLevel
	cfg.Logging.Development = *dev
	cfg.Server.Enabled = *serve
	cfg.Server.Host = *host
	cfg.Server.Port = *port

	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	p, err := platform.New(cfg,
		platform.WithLogger(logger.Logger),
		platform.WithLibraryLoader(framework.NewCatalog()),
	)
	if err != nil {
		logger.Fatal("Failed to create platform", zap.Error(err))
	}
	if err := p.Init(); err != nil {
		logger.Fatal("Failed to initialize platform", zap.Error(err))
	}

	if *list {
		printBundles(p.Loader())
		if err := p.Shutdown(); err != nil {
			logger.Error("Shutdown finished with errors", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	var srv *server.Server
	errChan := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = server.New(p)
		go func() {
			if err := srv.Run(); err != nil {
				errChan <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("Server error", zap.Error(err))
		exitCode = 1
	}

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if err := p.Shutdown(); err != nil {
		logger.Error("Shutdown finished with errors", zap.Error(err))
		exitCode = 1
	}
	if exitCode != 0 {
		logger.Sync()
		os.Exit(exitCode)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printBundles(loader *framework.Loader) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tBUNDLE\tLOCATION")
	for _, b := range loader.Bundles() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID(), b.State(), b.SymbolicName(), b.Location())
	}
	w.Flush()
}
