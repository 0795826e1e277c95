package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superinstance/prism/internal/config"
	"github.com/superinstance/prism/internal/prismerr"
)

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	indexDir := filepath.Join(root, ".prism")
	require.NoError(t, os.MkdirAll(indexDir, 0o755))

	return &config.Config{
		ProjectRoot:     root,
		Port:            port,
		EnableWatcher:   false,
		ShutdownTimeout: 2 * time.Second,
		LogLevel:        "info",
		IndexDir:        indexDir,
	}
}

func TestRun_ServesAndShutsDownGracefully(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, 18080)
	d := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://127.0.0.1:18080/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not shut down in time")
	}
}

func TestRun_SecondInstanceFailsSingleton(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, 18081)
	first := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- first.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18081/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	second := New(cfg)
	err := second.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, prismerr.AlreadyRunning, prismerr.KindOf(err))
}
