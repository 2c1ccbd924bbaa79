package ai

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/model/chat"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/internal/service/collab"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

// Mention is the prefix that addresses a room message to the assistant.
const Mention = "@ai"

// replyTimeout bounds one generation call.
const replyTimeout = 120 * time.Second

// Participant is the assistant's presence in one project room. It listens
// for messages mentioning it, generates a reply and publishes it under the
// synthetic AI identity.
type Participant struct {
	svc      *Service
	projects store.Store
	client   *hub.Client
	project  string

	mu      sync.Mutex
	history []chat.Message
}

// JoinRoom attaches the assistant to the given project's room.
func (s *Service) JoinRoom(h *hub.Hub, projects store.Store, projectID string) *Participant {
	p := &Participant{
		svc:      s,
		projects: projects,
		client:   h.NewClient(),
		project:  projectID,
	}
	p.client.Join(projectID)
	p.client.Subscribe(collab.EventProjectMessage, p.onMessage)
	log.Printf("[ai] assistant joined room project=%s", projectID)
	return p
}

// Leave detaches the assistant from the room.
func (p *Participant) Leave() {
	p.client.Close()
}

func (p *Participant) onMessage(raw json.RawMessage) {
	var msg chat.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[ai] dropping malformed room payload: %v", err)
		return
	}
	if msg.Sender.IsAI() {
		return
	}

	p.mu.Lock()
	history := append([]chat.Message(nil), p.history...)
	p.history = append(p.history, msg)
	p.mu.Unlock()

	if !strings.Contains(strings.ToLower(msg.Message), Mention) {
		return
	}

	// Generation runs off the delivery path so a slow model never blocks
	// the room.
	go p.reply(history, msg)
}

func (p *Participant) reply(history []chat.Message, msg chat.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	proj, err := p.projects.GetProject(ctx, p.project)
	if err != nil {
		log.Printf("[ai] load project %s: %v", p.project, err)
		return
	}

	raw, err := p.svc.GenerateReply(ctx, proj, history, msg.Message)
	if err != nil {
		log.Printf("[ai] generate reply: %v", err)
		return
	}

	reply := chat.Message{
		Sender:  user.AIUser(),
		Message: raw,
		SentAt:  time.Now().UTC(),
	}

	p.mu.Lock()
	p.history = append(p.history, reply)
	p.mu.Unlock()

	if err := p.client.Publish(collab.EventProjectMessage, reply); err != nil {
		log.Printf("[ai] publish reply: %v", err)
	}
}
