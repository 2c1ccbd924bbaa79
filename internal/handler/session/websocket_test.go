package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/Vaibhav-59/CodeVerse/internal/config"
	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/middleware"
	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

const testSecret = "test-secret"

type fixture struct {
	server *httptest.Server
	store  store.Store
	proj   *project.Project
	alice  user.User
	bob    user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	alice := user.User{ID: "u-alice", Email: "alice@example.com", DisplayName: "Alice"}
	bob := user.User{ID: "u-bob", Email: "bob@example.com", DisplayName: "Bob"}

	st := store.NewMemory()
	ctx := context.Background()
	if err := st.SeedUsers(ctx, []user.User{alice, bob}); err != nil {
		t.Fatalf("seed users: %v", err)
	}
	proj, err := st.CreateProject(ctx, "demo", alice)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := st.AddUsers(ctx, proj.ID, []string{bob.ID}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	cfg := config.Config{
		Auth:    config.AuthConfig{JWTSecret: testSecret},
		Sandbox: config.SandboxConfig{Enabled: false},
	}

	r := chi.NewRouter()
	New(st, hub.New(), nil, cfg).RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &fixture{server: server, store: st, proj: proj, alice: alice, bob: bob}
}

func mintToken(t *testing.T, u user.User) string {
	t.Helper()
	claims := middleware.Claims{
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{Subject: u.ID},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (f *fixture) dial(t *testing.T, u user.User) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + f.proj.ID + "?token=" + mintToken(t, u)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads frames until one of the wanted type arrives.
func readFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		var frame map[string]any
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame (waiting for %q): %v", wantType, err)
		}
		if frame["type"] == wantType {
			return frame
		}
		if time.Now().After(deadline) {
			t.Fatalf("no %q frame before deadline", wantType)
		}
	}
}

func TestConnectSendsProjectState(t *testing.T) {
	f := setup(t)
	conn := f.dial(t, f.alice)

	frame := readFrame(t, conn, "connected")
	data, ok := frame["data"].(map[string]any)
	if !ok {
		t.Fatalf("connected frame missing data: %v", frame)
	}
	u, ok := data["user"].(map[string]any)
	if !ok || u["id"] != f.alice.ID {
		t.Fatalf("expected identity in connected frame, got %v", data["user"])
	}
}

func TestMessageReachesOtherParticipant(t *testing.T) {
	f := setup(t)
	alice := f.dial(t, f.alice)
	bob := f.dial(t, f.bob)
	readFrame(t, alice, "connected")
	readFrame(t, bob, "connected")

	payload, _ := json.Marshal(ChatCommand{Text: "hello"})
	if err := alice.WriteJSON(map[string]any{"type": "message", "data": json.RawMessage(payload)}); err != nil {
		t.Fatalf("write command: %v", err)
	}

	frame := readFrame(t, bob, "message")
	data := frame["data"].(map[string]any)
	sender := data["sender"].(map[string]any)
	if sender["id"] != f.alice.ID || data["message"] != "hello" {
		t.Fatalf("unexpected delivery: %v", data)
	}
}

func TestSenderGetsOwnEchoOnce(t *testing.T) {
	f := setup(t)
	alice := f.dial(t, f.alice)
	readFrame(t, alice, "connected")

	payload, _ := json.Marshal(ChatCommand{Text: "solo"})
	if err := alice.WriteJSON(map[string]any{"type": "message", "data": json.RawMessage(payload)}); err != nil {
		t.Fatalf("write command: %v", err)
	}

	frame := readFrame(t, alice, "message")
	data := frame["data"].(map[string]any)
	if data["message"] != "solo" {
		t.Fatalf("expected optimistic echo, got %v", data)
	}
}

func TestDialRejectsBadToken(t *testing.T) {
	f := setup(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + f.proj.ID + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", resp)
	}
}

func TestDialRejectsNonMember(t *testing.T) {
	f := setup(t)
	mallory := user.User{ID: "u-mallory", Email: "mallory@example.com"}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/" + f.proj.ID + "?token=" + mintToken(t, mallory)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
}

func TestUnknownCommandAnswersError(t *testing.T) {
	f := setup(t)
	conn := f.dial(t, f.alice)
	readFrame(t, conn, "connected")

	if err := conn.WriteJSON(map[string]any{"type": "bogus"}); err != nil {
		t.Fatalf("write command: %v", err)
	}

	frame := readFrame(t, conn, "error")
	data := frame["data"].(map[string]any)
	if msg, _ := data["message"].(string); !strings.Contains(msg, "bogus") {
		t.Fatalf("expected error naming the command, got %v", data)
	}
}
