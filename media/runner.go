package media

import (
	"bytes"
	"context"
	"os/exec"

	pkgerrors "github.com/pkg/errors"
)

// CommandRunner executes an external tool and returns its stdout. Injected
// so tests can stub yt-dlp/ffmpeg/ffprobe invocations.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec, capturing stderr for
// diagnostics.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, pkgerrors.Wrapf(err, "%s failed (stderr: %s)", name, stderr.String())
	}
	return stdout.Bytes(), nil
}
