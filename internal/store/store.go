// Package store is the project document store boundary. The collaboration
// core only ever talks to the Store interface; persistence engine choice
// stays behind it.
package store

import (
	"context"
	"errors"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateName   = errors.New("project name already taken")
	ErrNotMember       = errors.New("user is not a member of this project")
)

// Store persists projects and users.
type Store interface {
	// CreateProject provisions a project with the creator as sole member.
	CreateProject(ctx context.Context, name string, creator user.User) (*project.Project, error)

	// GetProject returns a project by ID.
	GetProject(ctx context.Context, id string) (*project.Project, error)

	// DeleteProject removes a project. Membership of the requester is
	// verified at delete time.
	DeleteProject(ctx context.Context, id, requesterID string) error

	// AddUsers appends the given user IDs to project membership and returns
	// the updated project. IDs already present are ignored.
	AddUsers(ctx context.Context, id string, userIDs []string) (*project.Project, error)

	// UpdateFileTree replaces the project's entire file tree.
	UpdateFileTree(ctx context.Context, id string, tree project.FileTree) error

	CreateUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, id string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)

	// SeedUsers inserts the given users, skipping those already present.
	SeedUsers(ctx context.Context, users []user.User) error
}
