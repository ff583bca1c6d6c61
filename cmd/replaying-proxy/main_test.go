package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/cache"
	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/spf13/cobra"
)

// runCmd executes the root command with args and returns its output.
func runCmd(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

// seedCache writes one entry per body, created at created.
func seedCache(t *testing.T, dir string, created time.Time, bodies ...string) {
	t.Helper()

	store, err := cache.Open(cache.Config{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	for _, body := range bodies {
		req := fingerprint.Request{Method: "POST", Path: "/seed", Body: body}
		entry := &cache.CachedEntry{
			StatusCode:           200,
			Request:              cache.NewRecordedRequest(req),
			Content:              body,
			TimeCreatedUtcMillis: created.UnixMilli(),
		}
		if _, err := store.Put(req.RequestPath(), entry); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCacheStatsCommand(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir, time.Now(), "a", "b")

	out, err := runCmd(t, context.Background(), "cache", "stats", "--cache-dir", dir)
	if err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(out, "Entries:      2") {
		t.Errorf("Expected 2 entries, got %q", out)
	}
	if !strings.Contains(out, "Fingerprints: 2") {
		t.Errorf("Expected 2 fingerprints, got %q", out)
	}
}

func TestCacheResetCommand(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir, time.Now(), "a", "b", "c")

	out, err := runCmd(t, context.Background(), "cache", "reset", "--cache-dir", dir)
	if err != nil {
		t.Fatalf("cache reset failed: %v", err)
	}
	if !strings.Contains(out, "Removed 3 cache files") {
		t.Errorf("unexpected output %q", out)
	}

	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Errorf("Expected empty cache dir, got %d files", len(files))
	}
}

func TestCacheCompactCommand(t *testing.T) {
	dir := t.TempDir()
	seedCache(t, dir, time.Now().Add(-time.Hour), "old")
	seedCache(t, dir, time.Now(), "new")

	out, err := runCmd(t, context.Background(), "cache", "compact", "--cache-dir", dir, "--ttl", "60")
	if err != nil {
		t.Fatalf("cache compact failed: %v", err)
	}
	if !strings.Contains(out, "Removed 1 expired cache files") {
		t.Errorf("unexpected output %q", out)
	}

	files, _ := os.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("Expected 1 remaining file, got %d", len(files))
	}
}

func TestCacheCommandInvalidPolicy(t *testing.T) {
	_, err := runCmd(t, context.Background(), "cache", "stats", "--cache-dir", t.TempDir(), "--match-headers", "sometimes")
	if err == nil {
		t.Error("Expected error for unknown header policy")
	}
}

func TestServeCommandRequiresBackend(t *testing.T) {
	t.Setenv("PROXY_BACKEND_URL", "")

	_, err := runCmd(t, context.Background(), "serve", "--cache-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "backend url is required") {
		t.Errorf("Expected backend url error, got %v", err)
	}
}

func TestServeCommandShutdown(t *testing.T) {
	t.Setenv("PROXY_METRICS_LISTEN", "127.0.0.1:0")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := runCmd(t, ctx,
			"serve",
			"--backend", "http://localhost:1",
			"--port", "0",
			"--cache-dir", filepath.Join(t.TempDir(), "cache"),
		)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	t.Setenv("PROXY_CACHE_DIR", "/from/env")
	t.Setenv("PROXY_CACHE_TTL_SECONDS", "30")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "backend:\n  url: http://from-file:8080\ncache:\n  dir: /from/file\n  ttl_seconds: 10\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var f flagValues
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd, &f)
	if err := cmd.Flags().Parse([]string{"--config", path, "--ttl", "5", "--port", "8585", "--reset"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(cmd, &f)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Backend.URL != "http://from-file:8080" {
		t.Errorf("backend = %s, want value from file", cfg.Backend.URL)
	}
	if cfg.Cache.Dir != "/from/env" {
		t.Errorf("cache dir = %s, want env override", cfg.Cache.Dir)
	}
	if cfg.Cache.TTLSeconds != 5 {
		t.Errorf("ttl = %d, want flag override 5", cfg.Cache.TTLSeconds)
	}
	if cfg.Listen != ":8585" {
		t.Errorf("listen = %s, want :8585", cfg.Listen)
	}
	if !cfg.Cache.ResetAtStartup {
		t.Error("expected reset enabled by flag")
	}
}
