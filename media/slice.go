package media

import (
	"context"
	"fmt"
	"path/filepath"

	"vidscribe/errors"
)

// Slice cuts one contiguous segment out of an asset by exact start time and
// duration. Segment files are content-addressed by video id and index so
// concurrent requests never collide.
func (a *Acquirer) Slice(ctx context.Context, asset *AudioAsset, index int, startSec, durationSec float64) (string, error) {
	const op = "Acquirer.Slice"

	segPath := filepath.Join(a.config.ScratchDir, fmt.Sprintf("%s.seg%d.m4a", asset.VideoID, index))
	_, err := a.runner.Run(ctx, a.config.FFmpegPath,
		"-y",
		"-i", asset.Path,
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", durationSec),
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "aac",
		segPath,
	)
	if err != nil {
		return "", errors.Acquisition(op, err, fmt.Sprintf("Failed to slice segment %d", index))
	}

	a.logger.Debug().
		Str("video_id", asset.VideoID).
		Int("segment", index).
		Float64("start", startSec).
		Float64("duration", durationSec).
		Msg("Segment sliced")

	return segPath, nil
}
