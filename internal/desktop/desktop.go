// Package desktop hands files and directories to the host's default
// application.
package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens paths with the platform's launcher.
type Opener struct {
	goos string
	run  func(ctx context.Context, name string, args ...string) error
}

// New returns an Opener for the running platform.
func New() *Opener {
	return &Opener{goos: runtime.GOOS, run: runCommand}
}

// Command returns the launcher invocation for path on goos.
func Command(goos, path string) (string, []string) {
	switch goos {
	case "windows":
		return "explorer", []string{path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

// Open launches the default application for path.
func (o *Opener) Open(ctx context.Context, path string) error {
	name, args := Command(o.goos, path)
	if err := o.run(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	return nil
}

// OpenURL opens a web page, used for the OAuth consent screen.
func (o *Opener) OpenURL(url string) error {
	name, args := Command(o.goos, url)
	if o.goos == "windows" {
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", url}
	}
	if err := o.run(context.Background(), name, args...); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// Launchers hand off to another process; reap without waiting on it.
	go cmd.Wait()
	return nil
}
