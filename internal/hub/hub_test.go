package hub_test

import (
	"encoding/json"
	"testing"

	"github.com/Vaibhav-59/CodeVerse/internal/hub"
)

func TestPublishReachesOtherRoomMembers(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p1")

	var got []string
	b.Subscribe("project-message", func(payload json.RawMessage) {
		var msg map[string]string
		if err := json.Unmarshal(payload, &msg); err != nil {
			t.Fatalf("unmarshal delivered payload: %v", err)
		}
		got = append(got, msg["message"])
	})

	if err := a.Publish("project-message", map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("Publish err: %v", err)
	}

	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("expected b to receive hello, got %v", got)
	}
}

func TestPublisherDoesNotReceiveOwnMessage(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p1")

	delivered := 0
	a.Subscribe("project-message", func(json.RawMessage) { delivered++ })
	b.Subscribe("project-message", func(json.RawMessage) {})

	if err := a.Publish("project-message", "hi"); err != nil {
		t.Fatalf("Publish err: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("publisher received its own message %d times", delivered)
	}
}

func TestRoomsAreIsolated(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p2")

	delivered := 0
	b.Subscribe("project-message", func(json.RawMessage) { delivered++ })

	if err := a.Publish("project-message", "hi"); err != nil {
		t.Fatalf("Publish err: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("message crossed rooms, delivered=%d", delivered)
	}
}

func TestResubscribeReplacesHandler(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p1")

	first, second := 0, 0
	b.Subscribe("project-message", func(json.RawMessage) { first++ })
	b.Subscribe("project-message", func(json.RawMessage) { second++ })

	if err := a.Publish("project-message", "hi"); err != nil {
		t.Fatalf("Publish err: %v", err)
	}

	if first != 0 {
		t.Fatalf("stale handler still attached, fired %d times", first)
	}
	if second != 1 {
		t.Fatalf("replacement handler fired %d times, want 1", second)
	}
}

func TestJoinSwitchesRoom(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p1")

	delivered := 0
	b.Subscribe("project-message", func(json.RawMessage) { delivered++ })

	b.Join("p2")
	if err := a.Publish("project-message", "hi"); err != nil {
		t.Fatalf("Publish err: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("client received message for a room it left, delivered=%d", delivered)
	}
	if h.RoomSize("p1") != 1 {
		t.Fatalf("room p1 size = %d, want 1", h.RoomSize("p1"))
	}
}

func TestClosedClientReceivesNothing(t *testing.T) {
	h := hub.New()

	a := h.NewClient()
	b := h.NewClient()
	a.Join("p1")
	b.Join("p1")

	delivered := 0
	b.Subscribe("project-message", func(json.RawMessage) { delivered++ })
	b.Close()

	if err := a.Publish("project-message", "hi"); err != nil {
		t.Fatalf("Publish err: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("closed client received %d messages", delivered)
	}
	if h.RoomSize("p1") != 1 {
		t.Fatalf("room size after close = %d, want 1", h.RoomSize("p1"))
	}
}
