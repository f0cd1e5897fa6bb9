package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"quizplay/internal/domain"
	"quizplay/internal/infra/memory"
	"quizplay/internal/platform"
)

func newTestServer(t *testing.T) (*httptest.Server, *platform.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog := memory.NewCatalogCache(memory.NewStaticCatalogLoader(platform.SampleQuizzes()), time.Minute)
	service := platform.NewService(
		memory.NewPlatformRepository(),
		catalog,
		platform.NewTokens("test-secret", time.Hour),
		platform.NewHub(),
		platform.Options{},
	)
	server := httptest.NewServer(NewRouter(service, RouterOptions{}))
	t.Cleanup(server.Close)
	return server, service
}

func TestWebSocketPlayedFlow(t *testing.T) {
	server, service := newTestServer(t)
	identity, err := service.Signup(context.Background(), domain.Registration{
		Username: "alice", Email: "alice@example.com", Password: "Str0ng!pass", FirstName: "A", LastName: "L",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	u := "ws" + server.URL[len("http"):] + "/ws?token=" + identity.Token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := service.Play(context.Background(), identity.ID, "seed-1", "true"); err != nil {
		t.Fatalf("play: %v", err)
	}

	msgType, payload := readNext(conn, t, "played")
	if msgType != "played" {
		t.Fatalf("expected played, got %s", msgType)
	}
	if payload["quizId"] != "seed-1" || payload["score"] != float64(10) {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestWebSocketRejectsMissingOrBadToken(t *testing.T) {
	server, _ := newTestServer(t)
	base := "ws" + server.URL[len("http"):] + "/ws"

	for _, u := range []string{base, base + "?token=nope"} {
		_, resp, err := websocket.DefaultDialer.Dial(u, nil)
		if err == nil {
			t.Fatalf("expected handshake failure for %s", u)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %v", u, resp)
		}
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
