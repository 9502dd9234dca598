package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"vidscribe/errors"
)

// AudioAsset is a handle to a locally acquired audio file. The orchestrator
// owns its lifetime and removes it at the end of every pipeline run.
type AudioAsset struct {
	VideoID         string
	Path            string
	DurationSeconds float64
	Format          string
}

// Remove deletes the underlying scratch file. Safe to call when the file is
// already gone.
func (a *AudioAsset) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type Config struct {
	ScratchDir    string
	YTDLPPath     string
	FFmpegPath    string
	FFprobePath   string
	AudioBitrate  string
	MaxFileSizeMB int

	// RetryInterval spaces the bounded transient-failure retries.
	RetryInterval time.Duration
}

type Acquirer struct {
	config Config
	runner CommandRunner
	logger zerolog.Logger
}

func NewAcquirer(cfg Config, runner CommandRunner, logger zerolog.Logger) (*Acquirer, error) {
	if cfg.ScratchDir == "" {
		return nil, fmt.Errorf("scratch directory is required")
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	if cfg.YTDLPPath == "" {
		cfg.YTDLPPath = "yt-dlp"
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.AudioBitrate == "" {
		cfg.AudioBitrate = "128k"
	}
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 50
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Acquirer{
		config: cfg,
		runner: runner,
		logger: logger.With().Str("component", "media").Logger(),
	}, nil
}

// Acquire resolves a video id to a normalized local audio asset. An asset
// already present in the scratch area is reused without re-downloading, so
// concurrent requests for the same video converge on one file.
func (a *Acquirer) Acquire(ctx context.Context, videoID string) (*AudioAsset, error) {
	const op = "Acquirer.Acquire"
	logger := a.logger.With().Str("operation", op).Str("video_id", videoID).Logger()

	outPath := a.assetPath(videoID)
	if _, err := os.Stat(outPath); err == nil {
		logger.Debug().Str("path", outPath).Msg("Reusing existing scratch audio")
		duration := a.probe(ctx, outPath)
		return &AudioAsset{VideoID: videoID, Path: outPath, DurationSeconds: duration, Format: "m4a"}, nil
	}

	rawPath := filepath.Join(a.config.ScratchDir, videoID+".src.m4a")
	if err := a.download(ctx, videoID, rawPath); err != nil {
		return nil, errors.Acquisition(op, err, "Failed to download audio")
	}
	defer os.Remove(rawPath)

	if err := a.normalize(ctx, rawPath, outPath); err != nil {
		os.Remove(outPath)
		return nil, errors.Acquisition(op, err, "Failed to normalize audio")
	}

	duration := a.probe(ctx, outPath)
	logger.Info().
		Str("path", outPath).
		Float64("duration_seconds", duration).
		Msg("Audio acquired")

	return &AudioAsset{VideoID: videoID, Path: outPath, DurationSeconds: duration, Format: "m4a"}, nil
}

func (a *Acquirer) assetPath(videoID string) string {
	return filepath.Join(a.config.ScratchDir, videoID+".m4a")
}

// download fetches the best audio stream with bitrate and size ceilings,
// retrying transient failures a bounded number of times.
func (a *Acquirer) download(ctx context.Context, videoID, destPath string) error {
	url := "https://www.youtube.com/watch?v=" + videoID
	args := []string{
		"-f", "bestaudio",
		"--extract-audio",
		"--audio-format", "m4a",
		"--audio-quality", a.config.AudioBitrate,
		"--max-filesize", fmt.Sprintf("%dm", a.config.MaxFileSizeMB),
		"--no-playlist",
		"-o", destPath,
		url,
	}

	operation := func() error {
		_, err := a.runner.Run(ctx, a.config.YTDLPPath, args...)
		if err != nil {
			a.logger.Warn().Err(err).Str("video_id", videoID).Msg("Audio download attempt failed")
		}
		return err
	}

	// 3 total attempts
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(a.config.RetryInterval), 2),
		ctx,
	)
	return backoff.Retry(operation, policy)
}

// normalize converts the download to the mono 16 kHz form the speech
// provider expects.
func (a *Acquirer) normalize(ctx context.Context, srcPath, destPath string) error {
	_, err := a.runner.Run(ctx, a.config.FFmpegPath,
		"-y",
		"-i", srcPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-b:a", a.config.AudioBitrate,
		destPath,
	)
	return err
}
