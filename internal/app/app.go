// Package app wires the entitlement store, session manager, and processing
// pipeline into the operations the transport layer invokes. All user-facing
// policy lives here: who may generate keys, what an inactive subscription may
// do, and what gets counted when a video completes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/panjf2000/ants/v2"

	"thumbpress/internal/backup"
	"thumbpress/internal/duration"
	"thumbpress/internal/entitlement"
	"thumbpress/internal/history"
	"thumbpress/internal/logging"
	"thumbpress/internal/processing"
	"thumbpress/internal/services"
	"thumbpress/internal/session"
	"thumbpress/internal/staging"
)

// ErrNotOwner marks a key-generation attempt by anyone but the configured
// owner.
var ErrNotOwner = errors.New("owner only")

// Embedder runs the thumbnail-embedding transcode. Satisfied by
// *processing.Pipeline; faked in tests.
type Embedder interface {
	Embed(ctx context.Context, videoPath, imagePath string) (processing.EmbedResult, error)
}

// Options collects the collaborators the core needs. Store, Sessions,
// Workspace, and Pipeline are required; History and Backup degrade to no-ops
// when absent.
type Options struct {
	Logger     *slog.Logger
	Store      *entitlement.Store
	Sessions   *session.Manager
	Workspace  *staging.Workspace
	Pipeline   Embedder
	History    *history.Ledger
	Backup     backup.Uploader
	OwnerID    int64
	MaxWorkers int
}

// Core implements the user-facing operations.
type Core struct {
	logger    *slog.Logger
	store     *entitlement.Store
	sessions  *session.Manager
	workspace *staging.Workspace
	pipeline  Embedder
	history   *history.Ledger
	backup    backup.Uploader
	ownerID   int64
	pool      *ants.Pool
}

// New builds the core and its bounded transcode pool.
func New(opts Options) (*Core, error) {
	if opts.Store == nil || opts.Sessions == nil || opts.Workspace == nil || opts.Pipeline == nil {
		return nil, errors.New("app: store, sessions, workspace, and pipeline are required")
	}
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create transcode pool: %w", err)
	}
	uploader := opts.Backup
	if uploader == nil {
		uploader = backup.Noop{}
	}
	return &Core{
		logger:    logging.NewComponentLogger(opts.Logger, "app"),
		store:     opts.Store,
		sessions:  opts.Sessions,
		workspace: opts.Workspace,
		pipeline:  opts.Pipeline,
		history:   opts.History,
		backup:    uploader,
		ownerID:   opts.OwnerID,
		pool:      pool,
	}, nil
}

// Close releases the transcode pool. In-flight jobs finish first.
func (c *Core) Close() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// RedeemKey consumes an access key and extends the user's subscription by the
// key's duration. The returned string describes the granted window.
func (c *Core) RedeemKey(ctx context.Context, userID int64, key string) (string, error) {
	if !entitlement.LooksLikeKey(key) {
		return "", services.Wrap(services.ErrKeyInvalid, "app", "redeem", "", nil)
	}
	durationSeconds, err := c.store.VerifyAndConsumeAuthKey(key, userID)
	if err != nil {
		return "", err
	}
	if err := c.store.ActivateSubscription(userID, durationSeconds); err != nil {
		return "", err
	}
	return fmt.Sprintf("Subscription activated for %s.", duration.Format(durationSeconds)), nil
}

// StageThumbnail accepts a downloaded image as the user's pending thumbnail.
// The image stays staged across videos until replaced or cancelled. Without
// an active subscription the artifact is discarded.
func (c *Core) StageThumbnail(ctx context.Context, userID int64, imagePath string) error {
	if !c.store.HasActiveSubscription(userID) {
		removeQuiet(imagePath)
		return services.Wrap(services.ErrSubscriptionInactive, "app", "stage_thumbnail", "", nil)
	}
	return c.sessions.StageThumbnail(userID, imagePath)
}

// ProcessResult describes one completed video.
type ProcessResult struct {
	OutputPath string
	BackupURL  string
	Reencoded  bool
	Elapsed    time.Duration
}

// ProcessVideo embeds the user's staged thumbnail into the downloaded video.
// The call blocks until a pool worker is free and the transcode completes.
// The inbound video artifact is always removed; the output artifact belongs
// to the caller until the cleanup sweep reclaims it.
func (c *Core) ProcessVideo(ctx context.Context, userID int64, videoPath, originalName string) (ProcessResult, error) {
	defer removeQuiet(videoPath)

	if !c.store.HasActiveSubscription(userID) {
		return ProcessResult{}, services.Wrap(services.ErrSubscriptionInactive, "app", "process_video", "", nil)
	}
	thumbPath, err := c.sessions.TakeThumbnailForProcessing(userID)
	if err != nil {
		return ProcessResult{}, err
	}

	started := time.Now()
	outcome, err := c.runEmbed(ctx, videoPath, thumbPath)
	if err != nil {
		return ProcessResult{}, err
	}
	elapsed := time.Since(started)

	if err := c.store.IncrementVideosProcessed(userID); err != nil {
		c.logger.Warn("processed counter not persisted",
			logging.Int64(logging.FieldUserID, userID),
			logging.Error(err))
	}

	backupURL := c.mirrorOutput(ctx, userID, outcome.OutputPath)
	c.recordHistory(ctx, history.Entry{
		UserID:     userID,
		VideoName:  originalName,
		OutputName: filepath.Base(outcome.OutputPath),
		Reencoded:  outcome.Reencoded,
		BackupURL:  backupURL,
		DurationMS: elapsed.Milliseconds(),
	})

	c.logger.Info("video processed",
		logging.Int64(logging.FieldUserID, userID),
		logging.String("video", originalName),
		logging.Bool("reencoded", outcome.Reencoded),
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "video_processed"))

	return ProcessResult{
		OutputPath: outcome.OutputPath,
		BackupURL:  backupURL,
		Reencoded:  outcome.Reencoded,
		Elapsed:    elapsed,
	}, nil
}

// runEmbed executes the pipeline on a pool worker, bounding concurrent
// transcodes. Submit blocks while every worker is busy.
func (c *Core) runEmbed(ctx context.Context, videoPath, thumbPath string) (processing.EmbedResult, error) {
	type embedReply struct {
		outcome processing.EmbedResult
		err     error
	}
	replyCh := make(chan embedReply, 1)
	submitErr := c.pool.Submit(func() {
		outcome, err := c.pipeline.Embed(ctx, videoPath, thumbPath)
		replyCh <- embedReply{outcome: outcome, err: err}
	})
	if submitErr != nil {
		return processing.EmbedResult{}, services.Wrap(services.ErrTranscodeFailed, "app", "submit", "", submitErr)
	}
	select {
	case reply := <-replyCh:
		return reply.outcome, reply.err
	case <-ctx.Done():
		// The worker keeps running until the pipeline observes cancellation
		// through the same ctx.
		return processing.EmbedResult{}, ctx.Err()
	}
}

// CancelOperation discards the user's staged thumbnail.
func (c *Core) CancelOperation(ctx context.Context, userID int64) error {
	return c.sessions.Cancel(userID)
}

// StatusReport summarizes a user's entitlement window.
type StatusReport struct {
	Active          bool
	ExpiresAt       time.Time
	Remaining       string
	VideosProcessed int64
	HasThumbnail    bool
}

// SubscriptionStatus reports the user's current window. Users with no
// subscription row get a zero, inactive report.
func (c *Core) SubscriptionStatus(userID int64) StatusReport {
	sub, ok := c.store.GetSubscription(userID)
	if !ok {
		return StatusReport{}
	}
	report := StatusReport{
		ExpiresAt:       sub.ExpiresAt,
		VideosProcessed: sub.VideosProcessed,
		HasThumbnail:    c.sessions.HasStaged(userID),
	}
	if remaining := time.Until(sub.ExpiresAt); remaining > 0 {
		report.Active = true
		report.Remaining = duration.Format(int64(remaining / time.Second))
	}
	return report
}

// FormatStatus renders the report as the reply text sent to the user.
func FormatStatus(report StatusReport) string {
	if !report.Active {
		return "No active subscription. Redeem an auth key first."
	}
	text := fmt.Sprintf("Subscription active.\nExpires: %s\nTime remaining: %s\nVideos processed: %d",
		report.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC"),
		report.Remaining,
		report.VideosProcessed)
	if report.HasThumbnail {
		text += "\nThumbnail staged: yes"
	} else {
		text += "\nThumbnail staged: no"
	}
	return text
}

// GenerateKey mints a single-use access key. Only the configured owner may
// call it; durationText uses the "12h" / "30d" form.
func (c *Core) GenerateKey(ctx context.Context, requesterID int64, durationText string) (string, error) {
	if requesterID != c.ownerID {
		c.logger.Warn("key generation refused",
			logging.Int64(logging.FieldUserID, requesterID),
			logging.String(logging.FieldEventType, "genkey_refused"))
		return "", ErrNotOwner
	}
	seconds, err := duration.Parse(durationText)
	if err != nil {
		return "", err
	}
	return c.store.CreateAuthKey(seconds)
}

// GenerateKeyAsOwner mints a key on behalf of the owner. Reserved for
// surfaces that already carry owner authority, such as the local admin API.
func (c *Core) GenerateKeyAsOwner(ctx context.Context, durationText string) (string, error) {
	return c.GenerateKey(ctx, c.ownerID, durationText)
}

// Stats returns the global counters.
func (c *Core) Stats() entitlement.Stats {
	return c.store.GetStats()
}

// ListKeys returns summaries of every minted key, newest first.
func (c *Core) ListKeys() []entitlement.KeySummary {
	return c.store.ListKeys()
}

func (c *Core) mirrorOutput(ctx context.Context, userID int64, outputPath string) string {
	if !c.backup.Enabled() {
		return ""
	}
	link, err := c.backup.Upload(ctx, outputPath, fmt.Sprintf("user_%d_%s", userID, filepath.Base(outputPath)))
	if err != nil {
		c.logger.Warn("backup mirror failed",
			logging.Int64(logging.FieldUserID, userID),
			logging.Error(err))
		return ""
	}
	return link
}

func (c *Core) recordHistory(ctx context.Context, entry history.Entry) {
	if c.history == nil {
		return
	}
	if _, err := c.history.Record(ctx, entry); err != nil {
		c.logger.Warn("history entry not recorded",
			logging.Int64(logging.FieldUserID, entry.UserID),
			logging.Error(err))
	}
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Left for the cleanup sweep.
		_ = err
	}
}

