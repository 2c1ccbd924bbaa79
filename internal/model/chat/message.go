package chat

import (
	"time"

	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
)

// Message is one entry in a project room's volatile transcript. Sender is
// either a real member or the synthetic assistant identity.
type Message struct {
	Sender  user.User `json:"sender"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt,omitempty"`

	// Unparseable marks a placeholder appended when an assistant payload
	// defeated every decode strategy. The raw payload stays in Message so
	// the client can still display something.
	Unparseable bool `json:"unparseable,omitempty"`
}
