package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
	"github.com/Vaibhav-59/CodeVerse/internal/model/user"
)

// SQLite implements Store on an embedded sqlite database. The file tree is
// kept as a JSON document column, matching the wholesale-replace write
// pattern: every edit rewrites the whole tree.
type SQLite struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    display_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    file_tree TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
    project_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (project_id, user_id),
    FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_member_projects ON project_members(user_id);
`

// NewSQLite opens (creating if needed) the database at dataSourceName and
// ensures the schema exists. Use ":memory:" for tests.
func NewSQLite(dataSourceName string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SeedUsers inserts the given users, skipping IDs that already exist.
func (s *SQLite) SeedUsers(ctx context.Context, users []user.User) error {
	for _, u := range users {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO users (id, email, display_name) VALUES (?, ?, ?)`,
			u.ID, u.Email, u.DisplayName,
		)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (s *SQLite) CreateProject(ctx context.Context, name string, creator user.User) (*project.Project, error) {
	name = strings.TrimSpace(name)

	now := time.Now().UTC()
	proj := &project.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   []user.User{creator},
		Tree:      project.FileTree{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create project: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, file_tree, created_at, updated_at) VALUES (?, ?, '{}', ?, ?)`,
		proj.ID, proj.Name, proj.CreatedAt, proj.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert project: %w", err)
	}

	// The creator's identity comes from the external auth service and may
	// not have a users row yet; membership joins against users, so the row
	// must exist or the creator vanishes from the reloaded project.
	_, err = tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, email, display_name) VALUES (?, ?, ?)`,
		creator.ID, creator.Email, creator.DisplayName,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert creator: %w", err)
	}

	// The creator is always the first member; a project never exists
	// without one.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id) VALUES (?, ?)`,
		proj.ID, creator.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create project: %w", err)
	}
	return proj, nil
}

func (s *SQLite) GetProject(ctx context.Context, id string) (*project.Project, error) {
	var (
		proj    project.Project
		rawTree string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, file_tree, created_at, updated_at FROM projects WHERE id = ?`, id,
	).Scan(&proj.ID, &proj.Name, &rawTree, &proj.CreatedAt, &proj.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	if err := json.Unmarshal([]byte(rawTree), &proj.Tree); err != nil {
		return nil, fmt.Errorf("decode file tree for project %s: %w", id, err)
	}

	members, err := s.projectMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	proj.Members = members

	return &proj, nil
}

func (s *SQLite) DeleteProject(ctx context.Context, id, requesterID string) error {
	proj, err := s.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if !proj.HasMember(requesterID) {
		return ErrNotMember
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *SQLite) AddUsers(ctx context.Context, id string, userIDs []string) (*project.Project, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
		return nil, err
	}

	for _, uid := range userIDs {
		if _, err := s.GetUser(ctx, uid); err != nil {
			return nil, err
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)`,
			id, uid,
		)
		if err != nil {
			return nil, fmt.Errorf("add member %s: %w", uid, err)
		}
	}

	return s.GetProject(ctx, id)
}

func (s *SQLite) UpdateFileTree(ctx context.Context, id string, tree project.FileTree) error {
	if tree == nil {
		tree = project.FileTree{}
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode file tree: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET file_tree = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update file tree: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (s *SQLite) CreateUser(ctx context.Context, u user.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.DisplayName,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName)
	if err == sql.ErrNoRows {
		return user.User{}, ErrUserNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLite) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, display_name FROM users ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) projectMembers(ctx context.Context, projectID string) ([]user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.display_name
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = ?
		ORDER BY m.added_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, u)
	}
	return members, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
