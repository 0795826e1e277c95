// Package config resolves and validates the daemon's startup configuration:
// project root, port, watcher enablement, and shutdown timeout.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/superinstance/prism/internal/prismerr"
)

// Config is the fully resolved, validated daemon configuration.
type Config struct {
	// ProjectRoot is the canonical, symlink-resolved absolute path to the
	// project being indexed. It is the sole trust anchor for path safety
	// checks once startup completes (spec.md invariant 6).
	ProjectRoot string

	// Port is the loopback TCP port the HTTP surface binds to.
	Port int

	// EnableWatcher controls whether the filesystem watcher starts.
	EnableWatcher bool

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight requests to drain before forcing socket closure.
	ShutdownTimeout time.Duration

	// LogLevel is advisory only; nothing in the daemon gates behavior on it.
	LogLevel string

	// IndexDir is <ProjectRoot>/.prism, created if absent.
	IndexDir string
}

const indexDirName = ".prism"

// Load reads PROJECT_ROOT, PORT, ENABLE_WATCHER, SHUTDOWN_TIMEOUT, and
// LOG_LEVEL from the environment (bare names, or PRISM_-prefixed ones via
// AutomaticEnv; viper consults the prefixed form first, so it wins when
// both are set), applies defaults, validates, and resolves the project
// root to its canonical form. It returns a ConfigInvalid error for the
// first violation it finds.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRISM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("project_root", ".")
	v.SetDefault("port", 8080)
	v.SetDefault("enable_watcher", true)
	v.SetDefault("shutdown_timeout_ms", 5000)
	v.SetDefault("log_level", "info")

	_ = v.BindEnv("project_root", "PROJECT_ROOT")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("enable_watcher", "ENABLE_WATCHER")
	_ = v.BindEnv("shutdown_timeout_ms", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	rawRoot := v.GetString("project_root")
	port := v.GetInt("port")
	watcherEnabled := v.GetBool("enable_watcher")
	shutdownMS := v.GetInt("shutdown_timeout_ms")
	logLevel := v.GetString("log_level")

	if port < 1024 || port > 65535 {
		return nil, prismerr.Newf(prismerr.ConfigInvalid,
			"port must be in [1024, 65535], got %d", port)
	}

	root, err := canonicalize(rawRoot)
	if err != nil {
		return nil, prismerr.Newf(prismerr.ConfigInvalid,
			"cannot resolve project root %q: %v", rawRoot, err)
	}

	indexDir := filepath.Join(root, indexDirName)
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, prismerr.Newf(prismerr.ConfigInvalid,
			"cannot create index directory %q: %v", indexDir, err)
	}

	return &Config{
		ProjectRoot:     root,
		Port:            port,
		EnableWatcher:   watcherEnabled,
		ShutdownTimeout: time.Duration(shutdownMS) * time.Millisecond,
		LogLevel:        logLevel,
		IndexDir:        indexDir,
	}, nil
}

// canonicalize resolves root to an absolute, symlink-followed path. It is
// called exactly once, at startup; the result is the fixed trust anchor.
func canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", resolved)
	}
	return resolved, nil
}
