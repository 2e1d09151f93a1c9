// Package processing embeds a staged thumbnail image into video containers as
// an attached-picture stream.
//
// The pipeline first attempts a stream-copy multiplex, which is cheap but
// rejected by some container/codec combinations, and silently falls back to a
// full re-encode of the video stream. The normalized thumbnail temp file is
// removed on every termination path.
package processing

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"thumbpress/internal/config"
	"thumbpress/internal/logging"
	"thumbpress/internal/media/ffprobe"
	"thumbpress/internal/services"
	"thumbpress/internal/staging"
)

// Prober inspects a finished output container. Injected so tests can run
// without an ffprobe binary.
type Prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Pipeline runs the normalize / mux / fallback sequence for one video at a
// time. It is safe for concurrent use; bounding the number of in-flight
// transcodes is the caller's responsibility.
type Pipeline struct {
	ffmpegBinary  string
	ffprobeBinary string
	preset        string
	crf           int
	maxWidth      int
	maxHeight     int
	jpegQuality   int
	timeout       time.Duration

	workspace *staging.Workspace
	runner    Runner
	probe     Prober
	logger    *slog.Logger
}

// Option configures optional Pipeline behavior.
type Option func(*Pipeline)

// WithRunner injects a custom transcoder runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithProber injects a custom output prober (primarily for tests).
func WithProber(probe Prober) Option {
	return func(p *Pipeline) {
		if probe != nil {
			p.probe = probe
		}
	}
}

// NewPipeline constructs a pipeline from processing configuration.
func NewPipeline(cfg config.Processing, workspace *staging.Workspace, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		ffmpegBinary:  cfg.FFmpegBinary,
		ffprobeBinary: cfg.FFprobeBinary,
		preset:        cfg.ReencodePreset,
		crf:           cfg.ReencodeCRF,
		maxWidth:      cfg.ThumbnailMaxWidth,
		maxHeight:     cfg.ThumbnailMaxHeight,
		jpegQuality:   cfg.ThumbnailJPEGQuality,
		timeout:       time.Duration(cfg.TranscodeTimeout) * time.Second,
		workspace:     workspace,
		runner:        commandRunner{},
		probe:         ffprobe.Inspect,
		logger:        logging.NewComponentLogger(logger, "processing"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbedResult describes a successful embed.
type EmbedResult struct {
	OutputPath string
	Reencoded  bool
}

// Embed produces a new video at a fresh output path with imagePath attached
// as the container thumbnail, preserving all original streams. On success the
// caller owns the returned output artifact; on failure no output artifact
// remains on disk.
func (p *Pipeline) Embed(ctx context.Context, videoPath, imagePath string) (EmbedResult, error) {
	normalized := p.workspace.NormalizedImagePath()
	if err := p.normalizeImage(imagePath, normalized); err != nil {
		return EmbedResult{}, err
	}
	// The normalized temp image never outlives the call, whichever path wins.
	defer func() {
		if err := os.Remove(normalized); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("failed to remove normalized thumbnail",
				logging.String("path", normalized),
				logging.Error(err))
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	outputPath := p.workspace.OutputPath()

	copyOutput, copyErr := p.runner.Run(ctx, p.ffmpegBinary, p.streamCopyArgs(videoPath, normalized, outputPath))
	if copyErr == nil {
		return p.finish(ctx, outputPath, false)
	}

	// Stream copy is rejected by some container/codec combinations; the
	// fallback re-encode is the expected recovery, not a user-visible error.
	p.logger.Debug("stream copy failed, re-encoding",
		logging.Error(copyErr),
		logging.String("ffmpeg_output", string(copyOutput)))
	removeIfPresent(outputPath)

	reencodeOutput, reencodeErr := p.runner.Run(ctx, p.ffmpegBinary, p.reencodeArgs(videoPath, normalized, outputPath))
	if reencodeErr != nil {
		removeIfPresent(outputPath)
		p.logger.Error("both transcode paths failed",
			logging.String(logging.FieldEventType, "transcode_failed"),
			logging.Error(reencodeErr),
			logging.String("stream_copy_output", string(copyOutput)),
			logging.String("reencode_output", string(reencodeOutput)))
		return EmbedResult{}, services.Wrap(services.ErrTranscodeFailed, "processing", "embed",
			string(reencodeOutput), reencodeErr)
	}

	return p.finish(ctx, outputPath, true)
}

// finish verifies the output container before reporting success. A container
// that did not gain the attached-picture stream is treated as a failed
// transcode; a probe that itself errors is logged and tolerated since the
// transcoder already reported success.
func (p *Pipeline) finish(ctx context.Context, outputPath string, reencoded bool) (EmbedResult, error) {
	result, err := p.probe(ctx, p.ffprobeBinary, outputPath)
	if err != nil {
		p.logger.Warn("output verification skipped",
			logging.String("path", outputPath),
			logging.Error(err))
		return EmbedResult{OutputPath: outputPath, Reencoded: reencoded}, nil
	}
	if !result.HasAttachedPicture() {
		removeIfPresent(outputPath)
		return EmbedResult{}, services.Wrap(services.ErrTranscodeFailed, "processing", "verify",
			"output missing attached-picture stream", nil)
	}
	return EmbedResult{OutputPath: outputPath, Reencoded: reencoded}, nil
}

func (p *Pipeline) streamCopyArgs(videoPath, imagePath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-i", videoPath,
		"-i", imagePath,
		"-map", "0",
		"-map", "1",
		"-c", "copy",
		"-c:v:1", "mjpeg",
		"-disposition:v:1", "attached_pic",
		"-y",
		outputPath,
	}
}

func (p *Pipeline) reencodeArgs(videoPath, imagePath, outputPath string) []string {
	// "0:a?" keeps the operation valid for videos without an audio stream.
	return []string{
		"-hide_banner",
		"-i", videoPath,
		"-i", imagePath,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-map", "1",
		"-c:v", "libx264",
		"-preset", p.preset,
		"-crf", strconv.Itoa(p.crf),
		"-c:a", "copy",
		"-c:v:1", "mjpeg",
		"-disposition:v:1", "attached_pic",
		"-y",
		outputPath,
	}
}

func removeIfPresent(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Swept later by the staging cleanup timer.
		_ = err
	}
}
