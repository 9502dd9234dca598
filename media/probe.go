package media

import (
	"context"
	"strconv"
	"strings"
)

// probe returns the duration of an audio file in seconds, or 0 when the
// duration cannot be determined. Callers treat 0 as unknown and take the
// short-form path.
func (a *Acquirer) probe(ctx context.Context, path string) float64 {
	out, err := a.runner.Run(ctx, a.config.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("Duration probe failed")
		return 0
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("Unparseable probe output")
		return 0
	}
	return duration
}

// Probe exposes the duration probe for callers outside the acquisition
// flow.
func (a *Acquirer) Probe(ctx context.Context, path string) float64 {
	return a.probe(ctx, path)
}
