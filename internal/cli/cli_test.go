package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"quizplay/internal/config"
	"quizplay/internal/domain"
	"quizplay/internal/infra/memory"
	"quizplay/internal/platform"
	transport "quizplay/internal/transport/http"
)

func TestApplyOverridesFromEnv(t *testing.T) {
	t.Setenv("QUIZPLAY_CLIENT_SERVER_URL", "https://quiz.example.com")
	t.Setenv("QUIZPLAY_SESSION_BACKEND", "memory")
	t.Setenv("QUIZPLAY_SERVER_POINTS_PER_CORRECT", "25")
	t.Setenv("QUIZPLAY_CLIENT_LIVE_FEED", "true")
	t.Setenv("PORT", "9090")

	cfg := config.Default()
	applyOverrides(newViper(), &cfg)

	if cfg.Client.ServerURL != "https://quiz.example.com" || cfg.Session.Backend != "memory" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.Server.PointsPerCorrect != 25 || !cfg.Client.LiveFeed {
		t.Fatalf("typed overrides not applied: %+v", cfg)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected PORT fallback, got %q", cfg.Server.Port)
	}
	if cfg.Session.Profile != "default" {
		t.Fatalf("unset keys must keep defaults, got %q", cfg.Session.Profile)
	}
}

func TestSnapshotBackendSelection(t *testing.T) {
	g := &globals{cfg: config.Default()}
	g.cfg.Session.Backend = "redis"
	if _, _, err := g.snapshotStore(); err == nil {
		t.Fatalf("expected redis backend without addr to fail")
	}

	g.cfg.Session.Backend = "file"
	g.cfg.Session.Path = filepath.Join(t.TempDir(), "s.yaml")
	store, closeFn, err := g.snapshotStore()
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	defer closeFn()
	if _, ok, err := store.Read(context.Background()); err != nil || ok {
		t.Fatalf("expected empty file store, got ok=%v err=%v", ok, err)
	}
}

func TestCommandsAgainstPlatform(t *testing.T) {
	gin.SetMode(gin.TestMode)
	catalog := memory.NewCatalogCache(memory.NewStaticCatalogLoader(platform.SampleQuizzes()), time.Minute)
	service := platform.NewService(memory.NewPlatformRepository(), catalog,
		platform.NewTokens("test-secret", time.Hour), platform.NewHub(), platform.Options{})
	server := httptest.NewServer(transport.NewRouter(service, transport.RouterOptions{}))
	defer server.Close()

	dir := t.TempDir()
	t.Setenv("QUIZPLAY_SESSION_PATH", filepath.Join(dir, "session.yaml"))
	run := func(args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		base := []string{"--config", filepath.Join(dir, "absent.yaml"), "--server", server.URL, "--log-level", "error"}
		cmd.SetArgs(append(base, args...))
		err := cmd.Execute()
		return out.String(), err
	}

	out, err := run("signup", "--username", "alice", "--email", "alice@example.com",
		"--password", "Str0ng!pass", "--first-name", "Alice", "--last-name", "A")
	if err != nil || !strings.Contains(out, "welcome, alice") {
		t.Fatalf("signup: out=%q err=%v", out, err)
	}

	out, err = run("play", "seed-1", "true")
	if err != nil || !strings.Contains(out, "correct!") || !strings.Contains(out, "score: 10") {
		t.Fatalf("play: out=%q err=%v", out, err)
	}
	if _, err := run("play", "seed-1", "true"); !errors.Is(err, domain.ErrAlreadyPlayed) {
		t.Fatalf("expected ErrAlreadyPlayed on replay, got %v", err)
	}

	out, err = run("whoami")
	if err != nil || !strings.Contains(out, "score:      10") || !strings.Contains(out, "played:     1/4") {
		t.Fatalf("whoami: out=%q err=%v", out, err)
	}

	out, err = run("quizzes", "--category", "geography")
	if err != nil || !strings.Contains(out, "seed-3") || strings.Contains(out, "seed-1") {
		t.Fatalf("quizzes: out=%q err=%v", out, err)
	}

	if _, err := run("logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := run("whoami"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not logged in after logout, got %v", err)
	}
}
