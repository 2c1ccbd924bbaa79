package ai

import (
	"sync"

	"github.com/Vaibhav-59/CodeVerse/internal/hub"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

// Roster keeps one assistant participant per active project room. The
// participant joins when the first human connection acquires the room and
// leaves when the last one releases it.
type Roster struct {
	svc      *Service
	projects store.Store
	rooms    *hub.Hub

	mu      sync.Mutex
	entries map[string]*rosterEntry
}

type rosterEntry struct {
	participant *Participant
	refs        int
}

// NewRoster creates a roster. A nil svc yields a nil roster, which is safe
// to call Acquire and Release on.
func NewRoster(svc *Service, projects store.Store, rooms *hub.Hub) *Roster {
	if svc == nil {
		return nil
	}
	return &Roster{
		svc:      svc,
		projects: projects,
		rooms:    rooms,
		entries:  make(map[string]*rosterEntry),
	}
}

// Acquire registers one human connection on the project room.
func (r *Roster) Acquire(projectID string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[projectID]
	if !ok {
		entry = &rosterEntry{participant: r.svc.JoinRoom(r.rooms, r.projects, projectID)}
		r.entries[projectID] = entry
	}
	entry.refs++
}

// Release drops one human connection from the project room.
func (r *Roster) Release(projectID string) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[projectID]
	if !ok {
		return
	}

	entry.refs--
	if entry.refs > 0 {
		return
	}

	entry.participant.Leave()
	delete(r.entries, projectID)
}
