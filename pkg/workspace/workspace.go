// Package workspace resolves and prepares the on-disk directory webprint uses
// for synced catalogs, reports and telemetry.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Subdirectory names under the workspace root.
const (
	CacheDir     = "cache"
	ReportsDir   = "reports"
	TelemetryDir = "telemetry"
)

var defaultSubdirs = []string{CacheDir, ReportsDir, TelemetryDir}

var (
	userHomeDir = os.UserHomeDir
	getGOOS     = func() string { return runtime.GOOS }
)

// Prepare ensures the workspace root and required subdirectories exist.
// It returns the absolute path to the workspace root that was prepared.
func Prepare(root string) (string, error) {
	if root == "" {
		var err error
		root, err = defaultRoot()
		if err != nil {
			return "", err
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}

	if err := os.MkdirAll(absRoot, 0o750); err != nil {
		return "", fmt.Errorf("create workspace root: %w", err)
	}

	for _, sub := range defaultSubdirs {
		if err := os.MkdirAll(filepath.Join(absRoot, sub), 0o750); err != nil {
			return "", fmt.Errorf("create workspace subdir %q: %w", sub, err)
		}
	}

	return absRoot, nil
}

type ctxKey string

const workspaceRootKey ctxKey = "workspace.root"

// WithContext stores the prepared workspace root on the provided context.
func WithContext(ctx context.Context, root string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, workspaceRootKey, root)
}

// FromContext extracts the workspace root from context.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if root, ok := ctx.Value(workspaceRootKey).(string); ok && root != "" {
		return root, true
	}
	return "", false
}

// Path joins elem onto the workspace root held by ctx.
func Path(ctx context.Context, elem ...string) (string, bool) {
	root, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return filepath.Join(append([]string{root}, elem...)...), true
}

func defaultRoot() (string, error) {
	if dir := os.Getenv("WEBPRINT_WORKSPACE"); dir != "" {
		return dir, nil
	}

	home := func() (string, error) {
		h, err := userHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if h == "" {
			return "", errors.New("cannot determine workspace directory")
		}
		return h, nil
	}

	switch getGOOS() {
	case "darwin":
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, "Library", "Application Support", "Webprint"), nil
	case "windows":
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Webprint"), nil
		}
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, "AppData", "Roaming", "Webprint"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "webprint"), nil
		}
		h, err := home()
		if err != nil {
			return "", err
		}
		return filepath.Join(h, ".local", "share", "webprint"), nil
	}
}

// Subdirectories returns the list of default workspace subdirectories.
func Subdirectories() []string {
	subs := make([]string, len(defaultSubdirs))
	copy(subs, defaultSubdirs)
	return subs
}
