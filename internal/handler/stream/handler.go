// Package stream serves assistant replies over Server-Sent Events for
// clients that want a one-shot answer outside a live session.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Vaibhav-59/CodeVerse/internal/decode"
	"github.com/Vaibhav-59/CodeVerse/internal/middleware"
	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/service/ai"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
	"github.com/Vaibhav-59/CodeVerse/pkg/utils"
)

// Handler streams assistant output for a single prompt.
type Handler struct {
	assistant *ai.Service
	projects  store.Store
}

// New creates the stream handler. assistant may be nil when no model is
// configured; requests then answer 503.
func New(assistant *ai.Service, projects store.Store) *Handler {
	return &Handler{assistant: assistant, projects: projects}
}

// RegisterRoutes registers the assistant streaming route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/projects/{projectID}/assistant/stream", h.handleStream)
}

type streamRequest struct {
	Message string `json:"message"`
}

func (r streamRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required, validation.Length(1, 4000)),
	)
}

// streamChunk is one SSE payload. Event is one of start, delta, message,
// fileTree, error, end.
type streamChunk struct {
	Event    string           `json:"event"`
	Content  string           `json:"content,omitempty"`
	FileTree project.FileTree `json:"fileTree,omitempty"`
	Finished bool             `json:"finished,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.assistant == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "assistant not configured")
		return
	}

	identity, ok := middleware.Identity(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	proj, err := h.projects.GetProject(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			utils.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !proj.HasMember(identity.ID) {
		utils.RespondError(w, http.StatusForbidden, "not a member of this project")
		return
	}

	var payload streamRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, streamChunk{Event: "start"})

	raw, err := h.streamReply(r.Context(), w, flusher, proj, payload.Message)
	if err != nil {
		utils.SendSSEChunk(w, flusher, streamChunk{Event: "error", Error: err.Error()})
		return
	}

	h.finishReply(r.Context(), w, flusher, proj, raw)
	utils.SendSSEChunk(w, flusher, streamChunk{Event: "end", Finished: true})

	log.Printf("[stream] completed reply project=%s user=%s", proj.ID, identity.ID)
}

// streamReply forwards model chunks to the client and returns the full
// concatenated reply text.
func (h *Handler) streamReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, proj *project.Project, message string) (string, error) {
	stream, err := h.assistant.StreamReply(ctx, proj, nil, message)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			utils.SendSSEChunk(w, flusher, streamChunk{Event: "delta", Content: chunk.Content})
		}
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return full.Content, nil
}

// finishReply decodes the raw reply, emits the final message frame, and
// persists a delivered file tree when the reply carries one.
func (h *Handler) finishReply(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, proj *project.Project, raw string) {
	result := decode.Decode(raw)
	if !result.Success {
		utils.SendSSEChunk(w, flusher, streamChunk{Event: "message", Content: raw})
		return
	}

	text, _ := result.Data["text"].(string)
	utils.SendSSEChunk(w, flusher, streamChunk{Event: "message", Content: text})

	tree, ok := extractTree(result.Data)
	if !ok {
		return
	}

	utils.SendSSEChunk(w, flusher, streamChunk{Event: "fileTree", FileTree: tree})
	if err := h.projects.UpdateFileTree(ctx, proj.ID, tree); err != nil {
		log.Printf("[stream] failed to persist delivered tree project=%s: %v", proj.ID, err)
	}
}

func extractTree(data map[string]any) (project.FileTree, bool) {
	rawTree, ok := data["fileTree"]
	if !ok {
		return nil, false
	}

	encoded, err := json.Marshal(rawTree)
	if err != nil {
		return nil, false
	}

	var tree project.FileTree
	if err := json.Unmarshal(encoded, &tree); err != nil {
		return nil, false
	}
	return tree, len(tree) > 0
}
