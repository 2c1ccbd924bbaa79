package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
	"github.com/Vaibhav-59/CodeVerse/internal/store"
)

type seedable interface {
	store.Store
	SeedUsers(ctx context.Context, users []user.User) error
}

func backends(t *testing.T) map[string]seedable {
	t.Helper()

	sqliteStore, err := store.NewSQLite(filepath.Join(t.TempDir(), "codeverse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]seedable{
		"sqlite": sqliteStore,
		"memory": store.NewMemory(),
	}
}

func seedThree(t *testing.T, s seedable) []user.User {
	t.Helper()
	users := []user.User{
		{ID: "u1", Email: "a@test.dev", DisplayName: "Alice"},
		{ID: "u2", Email: "b@test.dev", DisplayName: "Bob"},
		{ID: "u3", Email: "c@test.dev", DisplayName: "Cara"},
	}
	require.NoError(t, s.SeedUsers(context.Background(), users))
	return users
}

func TestCreateProjectHasCreatorAsMember(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			proj, err := s.CreateProject(ctx, "demo", users[0])
			require.NoError(t, err)
			require.Len(t, proj.Members, 1)
			assert.Equal(t, "u1", proj.Members[0].ID)
			assert.NotEmpty(t, proj.ID)
			assert.NotNil(t, proj.Tree)
		})
	}
}

func TestCreateProjectUnseededCreatorSurvivesReload(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			creator := user.User{ID: "u-external", Email: "ext@test.dev", DisplayName: "External"}

			proj, err := s.CreateProject(ctx, "demo", creator)
			require.NoError(t, err)

			reloaded, err := s.GetProject(ctx, proj.ID)
			require.NoError(t, err)
			require.Len(t, reloaded.Members, 1)
			assert.Equal(t, "u-external", reloaded.Members[0].ID)
			assert.True(t, reloaded.HasMember("u-external"))

			// The creator must be able to act on their own project.
			require.NoError(t, s.DeleteProject(ctx, proj.ID, creator.ID))
		})
	}
}

func TestCreateProjectDuplicateName(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			_, err := s.CreateProject(ctx, "taken", users[0])
			require.NoError(t, err)

			_, err = s.CreateProject(ctx, "taken", users[1])
			assert.ErrorIs(t, err, store.ErrDuplicateName)
		})
	}
}

func TestGetProjectNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetProject(context.Background(), "missing")
			assert.ErrorIs(t, err, store.ErrProjectNotFound)
		})
	}
}

func TestAddUsersExpandsMembership(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			proj, err := s.CreateProject(ctx, "team", users[0])
			require.NoError(t, err)

			updated, err := s.AddUsers(ctx, proj.ID, []string{"u2", "u3"})
			require.NoError(t, err)
			require.Len(t, updated.Members, 3)

			// Re-adding an existing member is idempotent.
			updated, err = s.AddUsers(ctx, proj.ID, []string{"u2"})
			require.NoError(t, err)
			assert.Len(t, updated.Members, 3)
		})
	}
}

func TestAddUsersUnknownUser(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			proj, err := s.CreateProject(ctx, "team", users[0])
			require.NoError(t, err)

			_, err = s.AddUsers(ctx, proj.ID, []string{"ghost"})
			assert.ErrorIs(t, err, store.ErrUserNotFound)
		})
	}
}

func TestUpdateFileTreeRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			proj, err := s.CreateProject(ctx, "tree", users[0])
			require.NoError(t, err)

			tree := project.FileTree{}
			tree.Set("index.js", "console.log('hi')")
			tree.Set("package.json", `{"name":"demo"}`)
			require.NoError(t, s.UpdateFileTree(ctx, proj.ID, tree))

			got, err := s.GetProject(ctx, proj.ID)
			require.NoError(t, err)
			contents, ok := got.Tree.Get("index.js")
			require.True(t, ok)
			assert.Equal(t, "console.log('hi')", contents)

			// Writes are wholesale: a tree missing a file drops it.
			smaller := project.FileTree{}
			smaller.Set("index.js", "v2")
			require.NoError(t, s.UpdateFileTree(ctx, proj.ID, smaller))

			got, err = s.GetProject(ctx, proj.ID)
			require.NoError(t, err)
			assert.Len(t, got.Tree, 1)
			_, ok = got.Tree.Get("package.json")
			assert.False(t, ok)
		})
	}
}

func TestDeleteProjectChecksMembership(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			users := seedThree(t, s)

			proj, err := s.CreateProject(ctx, "doomed", users[0])
			require.NoError(t, err)

			err = s.DeleteProject(ctx, proj.ID, "u2")
			assert.ErrorIs(t, err, store.ErrNotMember)

			require.NoError(t, s.DeleteProject(ctx, proj.ID, "u1"))

			_, err = s.GetProject(ctx, proj.ID)
			assert.ErrorIs(t, err, store.ErrProjectNotFound)
		})
	}
}

func TestListUsers(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			users := seedThree(t, s)

			got, err := s.ListUsers(context.Background())
			require.NoError(t, err)
			assert.Len(t, got, len(users))
		})
	}
}
