package desktop

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"windows", "explorer"},
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
	}
	for _, tt := range tests {
		name, args := Command(tt.goos, "/cfg")
		if name != tt.want || len(args) != 1 || args[0] != "/cfg" {
			t.Errorf("Command(%q) = %s %v, want %s [/cfg]", tt.goos, name, args, tt.want)
		}
	}
}

func TestOpener_Open(t *testing.T) {
	var got []string
	o := &Opener{goos: "linux", run: func(_ context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}}

	if err := o.Open(context.Background(), "/home/u/.config/yt_title_updater"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if strings.Join(got, " ") != "xdg-open /home/u/.config/yt_title_updater" {
		t.Errorf("ran %v", got)
	}
}

func TestOpener_OpenError(t *testing.T) {
	o := &Opener{goos: "darwin", run: func(context.Context, string, ...string) error {
		return errors.New("not found")
	}}
	if err := o.Open(context.Background(), "/x"); err == nil || !strings.Contains(err.Error(), "/x") {
		t.Errorf("Open() error = %v, want wrapped failure naming the path", err)
	}
}

func TestOpener_OpenURLWindows(t *testing.T) {
	var name string
	o := &Opener{goos: "windows", run: func(_ context.Context, n string, _ ...string) error {
		name = n
		return nil
	}}
	if err := o.OpenURL("https://accounts.example"); err != nil {
		t.Fatal(err)
	}
	if name != "rundll32" {
		t.Errorf("launcher = %q, want rundll32", name)
	}
}
