// Package daemonrun assembles and runs the service process: logger, stores,
// pipeline, application core, transport, and daemon, then blocks until a
// shutdown signal arrives.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"log/slog"

	"thumbpress/internal/app"
	"thumbpress/internal/backup"
	"thumbpress/internal/config"
	"thumbpress/internal/daemon"
	"thumbpress/internal/entitlement"
	"thumbpress/internal/history"
	"thumbpress/internal/logging"
	"thumbpress/internal/preflight"
	"thumbpress/internal/processing"
	"thumbpress/internal/session"
	"thumbpress/internal/staging"
	"thumbpress/internal/transport"
)

// Options configures service process runtime behavior.
type Options struct {
	LogLevel string

	// Listener and Responder connect the daemon to a messaging platform.
	// Both default to in-process stand-ins so the service can run without a
	// platform adapter (useful for health checks and manual testing).
	Listener  transport.Listener
	Responder transport.Responder
}

// Run starts the service runtime loop and blocks until ctx is cancelled or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, "thumbpress.log")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	checks := preflight.RunAll(signalCtx, cfg)
	binaries := preflight.CheckSystemDeps(cfg)
	for _, check := range checks {
		if !check.Passed {
			logger.Error("preflight check failed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail))
		}
	}
	for _, status := range binaries {
		if !status.Available && !status.Optional {
			logger.Error("required binary missing",
				logging.String("binary", status.Name),
				logging.String("detail", status.Detail))
		}
	}
	if !preflight.Passed(checks, binaries) {
		return fmt.Errorf("preflight failed; refusing to serve")
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "thumbpress.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := entitlement.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		logger.Error("open entitlement store", logging.Error(err))
		return err
	}

	ledger, err := history.Open(cfg.Paths.HistoryDBPath)
	if err != nil {
		logger.Error("open history ledger", logging.Error(err))
		return err
	}
	defer ledger.Close()

	uploader, err := backup.New(signalCtx, cfg.Backup, logger)
	if err != nil {
		logger.Error("init backup uploader", logging.Error(err))
		return err
	}

	workspace := staging.NewWorkspace(cfg.DownloadsDir(), cfg.OutputsDir())
	pipeline := processing.NewPipeline(cfg.Processing, workspace, logger)

	core, err := app.New(app.Options{
		Logger:     logger,
		Store:      store,
		Sessions:   session.NewManager(logger),
		Workspace:  workspace,
		Pipeline:   pipeline,
		History:    ledger,
		Backup:     uploader,
		OwnerID:    cfg.Owner.UserID,
		MaxWorkers: cfg.Processing.MaxConcurrentTranscodes,
	})
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}
	defer core.Close()

	listener := opts.Listener
	if listener == nil {
		listener = transport.NewChannelListener(64)
	}
	responder := opts.Responder
	if responder == nil {
		responder = loggingResponder{logger: logger}
	}

	d, err := daemon.New(cfg, core, listener, responder, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	return nil
}

// loggingResponder is the stand-in used when no platform adapter is wired.
// Replies land in the log instead of a chat.
type loggingResponder struct {
	logger *slog.Logger
}

func (r loggingResponder) SendMessage(_ context.Context, userID int64, text string) error {
	r.logger.Info("reply (no transport adapter)",
		logging.Int64(logging.FieldUserID, userID),
		logging.String("text", text))
	return nil
}

func (r loggingResponder) SendVideo(_ context.Context, userID int64, videoPath, caption string) error {
	r.logger.Info("video reply (no transport adapter)",
		logging.Int64(logging.FieldUserID, userID),
		logging.String("path", videoPath),
		logging.String("caption", caption))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Processing.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Processing.FFmpegBinary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Processing.FFprobeBinary)),
		logging.String("ffprobe_binary", cfg.Processing.FFprobeBinary),
		logging.Bool("backup_enabled", cfg.Backup.Enabled),
	)
}

func binaryAvailable(binary string) bool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return false
	}
	_, err := exec.LookPath(binary)
	return err == nil
}
