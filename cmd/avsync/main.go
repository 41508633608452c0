package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/avsync/internal/action"
	"github.com/dgnsrekt/avsync/internal/api"
	"github.com/dgnsrekt/avsync/internal/browser"
	"github.com/dgnsrekt/avsync/internal/cdp"
	"github.com/dgnsrekt/avsync/internal/config"
	"github.com/dgnsrekt/avsync/internal/coordinator"
	"github.com/dgnsrekt/avsync/internal/detector"
	"github.com/dgnsrekt/avsync/internal/netutil"
	"github.com/dgnsrekt/avsync/internal/notify"
	"github.com/dgnsrekt/avsync/internal/relay"
	"github.com/dgnsrekt/avsync/internal/resume"
	"github.com/dgnsrekt/avsync/internal/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("avsync config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"store_path", cfg.StorePath,
		"journal_dir", cfg.JournalDir,
		"platform_profile", cfg.PlatformProfile,
		"resume_timeout_ms", cfg.ResumeTimeoutMS,
		"launch_browser", cfg.LaunchBrowser,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	platform, err := config.LoadPlatform(cfg.PlatformProfile)
	if err != nil {
		slog.Error("failed to load platform profile", "path", cfg.PlatformProfile, "error", err)
		os.Exit(1)
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg.StorePath)
	if err != nil {
		slog.Error("failed to open settings store", "path", cfg.StorePath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Debug("store close failed", "error", err)
		}
	}()

	broker := relay.NewBroker()
	feed := relay.JournalFeed{Broker: broker}
	if cfg.JournalDir != "" {
		journal := storage.NewJournal(cfg.JournalDir, cfg.JournalBufferSize, cfg.JournalMaxSizeMB)
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Debug("journal close failed", "error", err)
			}
		}()
		feed.Next = journal
	}

	var launcher *browser.Launcher
	if cfg.LaunchBrowser {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	cache, err := resume.NewCache(cfg.ResumeCapacity)
	if err != nil {
		slog.Error("failed to create resume cache", "capacity", cfg.ResumeCapacity, "error", err)
		os.Exit(1)
	}

	toolbar := action.NewToolbar(broker)
	registry := cdp.NewTabRegistry()
	host := cdp.NewBrowser(cfg.CDPURL(), registry)

	c, err := coordinator.New(coordinator.Deps{
		Tabs:        host,
		Interceptor: host,
		Toolbar:     toolbar,
		Notifier:    notify.NewNotifier(&http.Client{Timeout: 10 * time.Second}, cfg.NtfyEndpoint, broker),
		Store:       store,
		Detector: detector.New(detector.Rules{
			AudioMarker: platform.AudioMarker,
			LiveMarker:  platform.LiveMarker,
			StripParams: platform.StripParams,
		}),
		Resume:  cache,
		Journal: feed,
	}, coordinator.Options{
		TabPattern:    platform.TabPattern,
		ResumeTimeout: time.Duration(cfg.ResumeTimeoutMS) * time.Millisecond,
		OptionsURL:    cfg.OptionsURL,
		Links:         platform.Links,
		Version:       cfg.Version,
	})
	if err != nil {
		slog.Error("failed to create coordinator", "error", err)
		os.Exit(1)
	}

	host.SetHandlers(cdp.Handlers{
		OnMessage:      c.Dispatch,
		OnTabRemoved:   c.OnTabRemoved,
		MessagePattern: platform.TabPattern,
	})
	if err := host.Connect(ctx); err != nil {
		slog.Error("failed to connect to browser", "cdp_url", cfg.CDPURL(), "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := host.Close(); err != nil {
			slog.Debug("browser close failed", "error", err)
		}
	}()

	reason, err := c.Boot(ctx)
	if err != nil {
		slog.Error("coordinator boot failed", "error", err)
		os.Exit(1)
	}
	slog.Info("coordinator booted", "reason", reason, "mode", c.Mode().String(), "tabs", registry.Count())

	h := api.NewServer(api.Deps{
		Service: c,
		Tabs:    registry,
		Toolbar: toolbar,
		Broker:  broker,
		Version: cfg.Version,
	})
	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("avsync listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("avsync server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case <-host.Done():
		slog.Warn("browser connection lost, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("avsync shutdown failed", "error", err)
	}
	c.Wait()
}

func openStore(ctx context.Context, path string) (storage.Store, error) {
	if path == "" {
		slog.Warn("no store path set, settings will not survive a restart")
		return storage.NewMemoryStore(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return storage.OpenSQLite(ctx, path)
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
