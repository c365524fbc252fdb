package sampler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var (
	keyboardLine = regexp.MustCompile(`keyboard.*slave.*keyboard`)
	deviceID     = regexp.MustCompile(`id=(\d+)`)
)

// XinputKeyboard detects and listens to an X11 keyboard through xinput.
type XinputKeyboard struct {
	Timeout time.Duration
}

// Detect returns the id of the last physical slave keyboard in the xinput
// device list.
func (x XinputKeyboard) Detect(ctx context.Context) (string, error) {
	timeout := x.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	listing, err := output(ctx, "xinput", "list")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoKeyboard, err)
	}
	id, ok := ParseKeyboardID(listing)
	if !ok {
		return "", ErrNoKeyboard
	}
	return id, nil
}

// ParseKeyboardID scans an xinput device listing for slave keyboards,
// skipping virtual ones. The last match wins.
func ParseKeyboardID(listing string) (string, bool) {
	var id string
	for _, line := range strings.Split(listing, "\n") {
		if !keyboardLine.MatchString(line) || strings.Contains(line, "Virtual") {
			continue
		}
		if m := deviceID.FindStringSubmatch(line); m != nil {
			id = m[1]
		}
	}
	return id, id != ""
}

// Listen streams `xinput test <device>` and counts key releases until ctx
// is cancelled.
func (x XinputKeyboard) Listen(ctx context.Context, device string) (int, error) {
	cmd := exec.CommandContext(ctx, "xinput", "test", device)
	cmd.WaitDelay = time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("xinput test pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start xinput test: %w", err)
	}

	n, scanErr := CountReleases(stdout)
	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return n, nil
	}
	if waitErr != nil {
		return n, fmt.Errorf("xinput test %s: %w", device, waitErr)
	}
	return n, scanErr
}

// CountReleases counts lines mentioning a key release.
func CountReleases(r io.Reader) (int, error) {
	n := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.Contains(sc.Text(), "release") {
			n++
		}
	}
	return n, sc.Err()
}
