// Package executil runs external programs such as the web browser.
package executil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// Start launches a command without waiting for it to exit.
	Start(cmd string, args ...string) error
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// Start launches a command detached from the caller. The process is reaped in
// the background.
func (e *RealExecutor) Start(cmd string, args ...string) error {
	c := exec.Command(cmd, args...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd, err)
	}
	go func() { _ = c.Wait() }()
	return nil
}

// ErrNoBrowser is returned when no browser command is known for the platform.
var ErrNoBrowser = errors.New("no browser command configured")

// BrowserCommand splits a configured browser command line, falling back to
// the platform opener when it is empty.
func BrowserCommand(configured, goos string) ([]string, error) {
	if fields := strings.Fields(configured); len(fields) > 0 {
		return fields, nil
	}

	switch goos {
	case "darwin":
		return []string{"open"}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open"}, nil
	default:
		return nil, ErrNoBrowser
	}
}

// OpenURL opens url with the configured browser command.
func OpenURL(e Executor, browser, url string) error {
	argv, err := BrowserCommand(browser, runtime.GOOS)
	if err != nil {
		return err
	}
	return e.Start(argv[0], append(argv[1:], url)...)
}
