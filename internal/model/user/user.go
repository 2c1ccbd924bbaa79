package user

// User is the authenticated identity attached to every chat message and
// project membership. Credential validation happens upstream; the core only
// ever sees the decoded identity.
type User struct {
	ID          string `json:"id" yaml:"id"`
	Email       string `json:"email,omitempty" yaml:"email"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// AIUserID identifies the synthetic assistant participant.
const AIUserID = "ai"

// AIUser returns the synthetic identity used when the assistant speaks in a
// project room.
func AIUser() User {
	return User{ID: AIUserID, DisplayName: "AI Assistant"}
}

// IsAI reports whether the user is the synthetic assistant identity.
func (u User) IsAI() bool {
	return u.ID == AIUserID
}
