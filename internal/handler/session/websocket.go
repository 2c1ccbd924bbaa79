// Package session exposes the realtime collaboration endpoint. One
// websocket connection is one participant in one project room: inbound
// frames are session commands, outbound frames are room messages and
// sandbox events.
package session

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Vaibhav-59/CodeVerse/internal/config"
	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/middleware"
	"github.com/Vaibhav-59/CodeVerse/internal/model/chat"
	"github.com/Vaibhav-59/CodeVerse/internal/sandbox"
	"github.com/Vaibhav-59/CodeVerse/internal/service/ai"
	"github.com/Vaibhav-59/CodeVerse/internal/service/collab"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

// Handler upgrades project-room websocket connections.
type Handler struct {
	projects   store.Store
	rooms      *hub.Hub
	assistants *ai.Roster
	cfg        config.Config
	upgrader   websocket.Upgrader
}

// New creates the websocket session handler. assistants may be nil when no
// model backend is configured.
func New(projects store.Store, rooms *hub.Hub, assistants *ai.Roster, cfg config.Config) *Handler {
	return &Handler{
		projects:   projects,
		rooms:      rooms,
		assistants: assistants,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{projectID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ChatCommand asks the session to send a chat message.
type ChatCommand struct {
	Text string `json:"text"`
}

// EditCommand replaces one file's contents.
type EditCommand struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// SelectCommand toggles a user in the invitation selection.
type SelectCommand struct {
	UserID string `json:"userId"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if projectID == "" {
		http.Error(w, "projectID is required", http.StatusBadRequest)
		return
	}

	identity, err := middleware.ParseToken(h.cfg.Auth.JWTSecret, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	proj, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return
	}
	if !proj.HasMember(identity.ID) {
		http.Error(w, "not a member of this project", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection project=%s user=%s", projectID, identity.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &connWriter{conn: conn, projectID: projectID}

	box := h.newSandbox()
	controller := collab.New(h.projects, h.rooms.NewClient(), box, identity, collab.RunCommands{
		Install: h.cfg.Sandbox.InstallCmd,
		Start:   h.cfg.Sandbox.StartCmd,
	})
	defer controller.Close()

	controller.SetObserver(collab.Observer{
		OnMessage: func(msg chat.Message) {
			writer.send("message", msg)
		},
		OnPreview: func(url string) {
			writer.send("preview", map[string]string{"url": url})
		},
		OnRunOutput: func(line string) {
			writer.send("run-output", map[string]string{"line": line})
		},
	})

	if err := controller.OpenSession(ctx, projectID); err != nil {
		writer.send("error", map[string]string{"message": "failed to open session"})
		return
	}

	h.assistants.Acquire(projectID)
	defer h.assistants.Release(projectID)

	writer.send("connected", map[string]any{
		"project":  proj,
		"user":     identity,
		"fileTree": controller.Tree(),
	})

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[websocket] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleCommand(ctx, writer, controller, &msg)
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, writer *connWriter, controller *collab.Controller, msg *inboundMessage) {
	switch msg.Type {
	case "message":
		var cmd ChatCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			writer.sendError("invalid message payload")
			return
		}
		controller.SendMessage(cmd.Text)

	case "edit":
		var cmd EditCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			writer.sendError("invalid edit payload")
			return
		}
		if cmd.Path == "" {
			writer.sendError("edit path is required")
			return
		}
		controller.MutateFile(ctx, cmd.Path, cmd.Contents)

	case "run":
		started := controller.RunProject(ctx)
		writer.send("run", map[string]bool{"started": started})

	case "select":
		var cmd SelectCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			writer.sendError("invalid select payload")
			return
		}
		controller.ToggleCollaborator(cmd.UserID)
		writer.send("selection", controller.Selection())

	case "invite":
		if err := controller.AddCollaborators(ctx); err != nil {
			writer.sendError("failed to add collaborators")
			return
		}
		writer.send("members", controller.Project().Members)

	default:
		writer.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) newSandbox() sandbox.Sandbox {
	if !h.cfg.Sandbox.Enabled {
		return nil
	}
	root := filepath.Join(h.cfg.Sandbox.Root, uuid.NewString())
	runner, err := sandbox.NewLocalRunner(root)
	if err != nil {
		log.Printf("[websocket] sandbox unavailable: %v", err)
		return nil
	}
	return runner
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// connWriter serializes frames onto one connection. Observer callbacks and
// the read loop both write, so sends take a mutex.
type connWriter struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	projectID string
}

func (w *connWriter) send(msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		ProjectID: w.projectID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write failed: %v", err)
	}
}

func (w *connWriter) sendError(message string) {
	w.send("error", map[string]string{"message": message})
}
