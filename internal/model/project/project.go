package project

import (
	"time"

	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
)

// Project is the persisted collaboration unit: a named file tree shared by a
// set of member users. A project always has at least one member, its creator.
type Project struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Members   []user.User `json:"members"`
	Tree      FileTree    `json:"fileTree"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// HasMember reports whether the given user ID belongs to the project.
func (p *Project) HasMember(userID string) bool {
	for _, m := range p.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}
