// Package collab coordinates one open project session: room messaging,
// assistant payload decoding, file-tree mutation, persistence sync and the
// execution sandbox. All session state lives in the Controller; callers
// interact only through its operation set.
package collab

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Vaibhav-59/CodeVerse/internal/decode"
	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/model/chat"
	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/internal/sandbox"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

// EventProjectMessage is the room event chat messages travel on.
const EventProjectMessage = "project-message"

// State is the session lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// RunCommands are the install and start steps executed inside the sandbox.
type RunCommands struct {
	Install []string
	Start   []string
}

// DefaultRunCommands mirror a typical Node dev-server project.
func DefaultRunCommands() RunCommands {
	return RunCommands{
		Install: []string{"npm", "install"},
		Start:   []string{"npm", "run", "dev"},
	}
}

// Controller owns the live collaboration state for one open project on one
// client. It is safe for concurrent use; every event (socket delivery, user
// input, sandbox callback) is applied under one mutex in arrival order, with
// last-write-wins semantics on the file tree.
type Controller struct {
	projects store.Store
	client   *hub.Client
	box      sandbox.Sandbox
	identity user.User
	commands RunCommands

	mu         sync.Mutex
	state      State
	running    bool
	proj       *project.Project
	tree       project.FileTree
	messages   []chat.Message
	selection  map[string]struct{}
	proc       sandbox.Process
	previewURL string
	loadErr    error

	done chan struct{}
	obs  Observer
}

// Observer receives session events as they are applied. Callbacks run on the
// event's delivery goroutine and must not block.
type Observer struct {
	OnMessage   func(chat.Message)
	OnPreview   func(url string)
	OnRunOutput func(line string)
}

// New builds a controller for the given authenticated identity. The sandbox
// may be nil, in which case RunProject is a no-op.
func New(projects store.Store, client *hub.Client, box sandbox.Sandbox, identity user.User, commands RunCommands) *Controller {
	return &Controller{
		projects:  projects,
		client:    client,
		box:       box,
		identity:  identity,
		commands:  commands,
		state:     StateIdle,
		selection: make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// OpenSession loads the project, joins its room and starts listening for
// inbound messages. A missing project reference or failed initial fetch
// lands the session in StateFailed; the caller renders that as an error
// state, there is no automatic retry.
func (c *Controller) OpenSession(ctx context.Context, projectID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("session already open (state=%s)", c.state)
	}
	c.state = StateLoading
	c.mu.Unlock()

	if projectID == "" {
		return c.fail(fmt.Errorf("no project reference"))
	}

	proj, err := c.projects.GetProject(ctx, projectID)
	if err != nil {
		return c.fail(fmt.Errorf("load project %s: %w", projectID, err))
	}

	c.client.Join(proj.ID)
	c.client.Subscribe(EventProjectMessage, c.HandleInboundMessage)

	c.mu.Lock()
	c.proj = proj
	c.tree = proj.Tree.Clone()
	if c.tree == nil {
		c.tree = project.FileTree{}
	}
	c.state = StateReady
	c.mu.Unlock()

	if c.box != nil {
		go c.watchReadiness()
	}

	log.Printf("[collab] session open project=%s user=%s", proj.ID, c.identity.ID)
	return nil
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.loadErr = err
	c.mu.Unlock()
	log.Printf("[collab] session failed: %v", err)
	return err
}

// HandleInboundMessage applies one delivered room payload. Assistant
// messages pass through the resilient decoder: a decoded fileTree replaces
// the local tree wholesale and is re-mounted; a decode failure appends a
// clearly marked placeholder instead of dropping the message. Human messages
// are appended verbatim.
func (c *Controller) HandleInboundMessage(raw json.RawMessage) {
	var msg chat.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[collab] dropping malformed room payload: %v", err)
		return
	}

	if !msg.Sender.IsAI() {
		c.append(msg)
		return
	}

	res := decode.Decode(msg.Message)
	if !res.Success {
		log.Printf("[collab] assistant payload unparseable: %v", res.Err)
		c.append(chat.Message{
			Sender:      msg.Sender,
			Message:     res.Raw,
			SentAt:      time.Now().UTC(),
			Unparseable: true,
		})
		return
	}

	if rawTree, ok := res.Data["fileTree"]; ok {
		c.applyDeliveredTree(rawTree)
	}

	// Re-encode the decoded object so the transcript holds normalized JSON
	// regardless of which strategy salvaged it.
	encoded, err := json.Marshal(res.Data)
	if err != nil {
		encoded = []byte(res.Raw)
	}
	c.append(chat.Message{
		Sender:  msg.Sender,
		Message: string(encoded),
		SentAt:  time.Now().UTC(),
	})
}

// applyDeliveredTree replaces the whole local tree with the one the
// assistant sent. The replace is deliberately not a merge: files absent from
// the delivered tree are discarded.
func (c *Controller) applyDeliveredTree(rawTree any) {
	encoded, err := json.Marshal(rawTree)
	if err != nil {
		log.Printf("[collab] re-encode delivered tree: %v", err)
		return
	}
	var tree project.FileTree
	if err := json.Unmarshal(encoded, &tree); err != nil {
		log.Printf("[collab] delivered tree has unexpected shape: %v", err)
		return
	}
	// A JSON null decodes to a nil map. That is not a tree, and storing it
	// would break the next MutateFile, so keep the local tree instead.
	if tree == nil {
		log.Printf("[collab] ignoring null delivered tree")
		return
	}

	c.mu.Lock()
	c.tree = tree
	c.mu.Unlock()

	if c.box != nil {
		if err := c.box.Mount(tree); err != nil {
			log.Printf("[collab] mount delivered tree: %v", err)
		}
	}
}

// SendMessage appends text to the local log and broadcasts it to the room.
// The local append is an optimistic echo; the controller does not wait for
// any acknowledgement. Empty or whitespace-only text, a missing project or a
// missing authenticated user all make this a silent no-op.
func (c *Controller) SendMessage(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	c.mu.Lock()
	if c.proj == nil || c.identity.ID == "" {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	msg := chat.Message{
		Sender:  c.identity,
		Message: text,
		SentAt:  time.Now().UTC(),
	}
	c.append(msg)

	if err := c.client.Publish(EventProjectMessage, msg); err != nil {
		log.Printf("[collab] publish message: %v", err)
	}
}

// MutateFile replaces one file's contents in the local tree and persists the
// entire tree in the background. The edit is optimistic: a persistence
// failure is logged but never rolls the local change back.
func (c *Controller) MutateFile(ctx context.Context, path, contents string) {
	c.mu.Lock()
	if c.proj == nil {
		c.mu.Unlock()
		return
	}
	c.tree.Set(path, contents)
	projectID := c.proj.ID
	snapshot := c.tree.Clone()
	c.mu.Unlock()

	go func() {
		ctx := context.WithoutCancel(ctx)
		if err := c.projects.UpdateFileTree(ctx, projectID, snapshot); err != nil {
			log.Printf("[collab] persist file tree for %s: %v", projectID, err)
		}
	}()
}

// RunProject mounts the current tree and drives the install/start sequence.
// It is single-flight per controller: a call while a run is in progress (or
// without an attached sandbox) is dropped silently. It reports whether a run
// was initiated.
func (c *Controller) RunProject(ctx context.Context) bool {
	c.mu.Lock()
	if c.box == nil || c.running || len(c.commands.Install) == 0 || len(c.commands.Start) == 0 ||
		(c.state != StateReady && c.state != StateRunning) {
		c.mu.Unlock()
		return false
	}
	c.running = true
	c.state = StateRunning
	tree := c.tree.Clone()
	previous := c.proc
	c.mu.Unlock()

	go c.runSequence(ctx, tree, previous)
	return true
}

func (c *Controller) runSequence(ctx context.Context, tree project.FileTree, previous sandbox.Process) {
	defer func() {
		c.mu.Lock()
		c.running = false
		if c.state == StateRunning {
			c.state = StateReady
		}
		c.mu.Unlock()
	}()

	if err := c.box.Mount(tree); err != nil {
		log.Printf("[collab] mount before run: %v", err)
		return
	}

	install, err := c.box.Spawn(ctx, c.commands.Install[0], c.commands.Install[1:]...)
	if err != nil {
		log.Printf("[collab] spawn install: %v", err)
		return
	}
	if err := install.Wait(); err != nil {
		log.Printf("[collab] install step failed: %v", err)
		return
	}

	// Best-effort kill of the previous server. No guarantee it has released
	// its resources before the new one starts.
	if previous != nil {
		if err := previous.Kill(); err != nil {
			log.Printf("[collab] kill previous process: %v", err)
		}
	}

	proc, err := c.box.Spawn(ctx, c.commands.Start[0], c.commands.Start[1:]...)
	if err != nil {
		log.Printf("[collab] spawn start: %v", err)
		return
	}

	c.mu.Lock()
	select {
	case <-c.done:
		// The session closed while the server was starting. Close has
		// already killed whatever proc it saw, so this one is ours to reap.
		c.mu.Unlock()
		_ = proc.Kill()
		return
	default:
	}
	c.proc = proc
	notify := c.obs.OnRunOutput
	c.mu.Unlock()

	if notify != nil {
		go pumpOutput(proc, notify)
	}
	log.Printf("[collab] run sequence started project=%s", c.ProjectID())
}

func pumpOutput(proc sandbox.Process, notify func(string)) {
	scanner := bufio.NewScanner(proc.Output())
	for scanner.Scan() {
		notify(scanner.Text())
	}
}

func (c *Controller) watchReadiness() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.box.Ready():
			c.mu.Lock()
			c.previewURL = ev.URL
			notify := c.obs.OnPreview
			c.mu.Unlock()
			if notify != nil {
				notify(ev.URL)
			}
			log.Printf("[collab] preview ready port=%d url=%s", ev.Port, ev.URL)
		}
	}
}

// ToggleCollaborator adds the user ID to the invitation selection set, or
// removes it when already selected.
func (c *Controller) ToggleCollaborator(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selection[userID]; ok {
		delete(c.selection, userID)
		return
	}
	c.selection[userID] = struct{}{}
}

// AddCollaborators asks the store to add every selected user to project
// membership, then clears the selection. An empty selection is a no-op.
func (c *Controller) AddCollaborators(ctx context.Context) error {
	c.mu.Lock()
	if c.proj == nil || len(c.selection) == 0 {
		c.mu.Unlock()
		return nil
	}
	ids := make([]string, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	projectID := c.proj.ID
	c.mu.Unlock()

	updated, err := c.projects.AddUsers(ctx, projectID, ids)
	if err != nil {
		return fmt.Errorf("add collaborators: %w", err)
	}

	c.mu.Lock()
	c.proj = updated
	c.selection = make(map[string]struct{})
	c.mu.Unlock()
	return nil
}

// Close tears the session down: room membership, subscriptions, the
// readiness watcher and any running process.
func (c *Controller) Close() {
	c.mu.Lock()
	proc := c.proc
	c.proc = nil
	c.mu.Unlock()

	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if proc != nil {
		_ = proc.Kill()
	}
	c.client.Close()
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the session into StateFailed, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// Messages returns a snapshot of the session transcript.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// Tree returns a snapshot of the transient local file tree.
func (c *Controller) Tree() project.FileTree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Clone()
}

// Project returns the loaded project, or nil before OpenSession succeeds.
func (c *Controller) Project() *project.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proj
}

// ProjectID returns the open project's ID, or empty.
func (c *Controller) ProjectID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.proj == nil {
		return ""
	}
	return c.proj.ID
}

// PreviewURL returns the sandbox preview address once a started server has
// signaled readiness.
func (c *Controller) PreviewURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.previewURL
}

// Selection returns the currently selected collaborator IDs.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.selection))
	for id := range c.selection {
		ids = append(ids, id)
	}
	return ids
}

// SetObserver registers session event callbacks. Call before OpenSession.
func (c *Controller) SetObserver(obs Observer) {
	c.mu.Lock()
	c.obs = obs
	c.mu.Unlock()
}

func (c *Controller) append(msg chat.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	notify := c.obs.OnMessage
	c.mu.Unlock()
	if notify != nil {
		notify(msg)
	}
}
