package sampler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds each helper command invocation.
const DefaultCommandTimeout = 2 * time.Second

// XdotoolTitleSource queries the focused X11 window through xdotool.
type XdotoolTitleSource struct {
	Timeout time.Duration
}

// Title returns the focused window's name. An empty string means no
// window has focus.
func (x XdotoolTitleSource) Title(ctx context.Context) (string, error) {
	timeout := x.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	id, err := output(ctx, "xdotool", "getactivewindow")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", nil
	}
	return output(ctx, "xdotool", "getwindowname", id)
}

// output runs a command and returns its trimmed stdout.
func output(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
