package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"mandor/internal/models"
)

// CreateWorkspace creates a workspace and enrolls the owner as its first member.
func (s *Store) CreateWorkspace(ctx context.Context, name string, ownerID int64) (models.Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Workspace{}, invalid("workspace name must not be empty")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO workspaces(name, owner_id) VALUES(?, ?)`, name, ownerID)
		if err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("workspace id: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO workspace_members(workspace_id, user_id, role, joined_at) VALUES(?, ?, ?, ?)`, id, ownerID, models.RoleOwner, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Workspace{}, err
	}
	return s.GetWorkspace(ctx, id)
}

// GetWorkspace fetches a workspace by id.
func (s *Store) GetWorkspace(ctx context.Context, id int64) (models.Workspace, error) {
	var w models.Workspace
	err := s.db.QueryRowContext(ctx, `SELECT id, name, owner_id, created_at, updated_at FROM workspaces WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Workspace{}, notFound("workspace")
	}
	if err != nil {
		return models.Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

// ListWorkspacesForUser returns the workspaces the user belongs to.
func (s *Store) ListWorkspacesForUser(ctx context.Context, userID int64) ([]models.Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT w.id, w.name, w.owner_id, w.created_at, w.updated_at
        FROM workspaces w JOIN workspace_members m ON m.workspace_id = w.id
        WHERE m.user_id = ? ORDER BY w.created_at, w.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	workspaces := []models.Workspace{}
	for rows.Next() {
		var w models.Workspace
		if err := rows.Scan(&w.ID, &w.Name, &w.OwnerID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		workspaces = append(workspaces, w)
	}
	return workspaces, rows.Err()
}

// AddMember adds a user to a workspace or changes the role of an existing member.
// The owner's role cannot be changed.
func (s *Store) AddMember(ctx context.Context, workspaceID, userID int64, role string) (models.WorkspaceMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if _, ok := models.ValidRoles[role]; !ok || role == models.RoleOwner {
		return models.WorkspaceMember{}, invalid("role %q cannot be granted", role)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID int64
		err := tx.QueryRowContext(ctx, `SELECT owner_id FROM workspaces WHERE id = ?`, workspaceID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("workspace")
		}
		if err != nil {
			return fmt.Errorf("get workspace: %w", err)
		}
		if ownerID == userID {
			return conflict("workspace owner role cannot be changed")
		}
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO workspace_members(workspace_id, user_id, role, joined_at) VALUES(?, ?, ?, ?)
            ON CONFLICT(workspace_id, user_id) DO UPDATE SET role = excluded.role`,
			workspaceID, userID, role, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("upsert member: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.WorkspaceMember{}, err
	}
	return s.GetMember(ctx, workspaceID, userID)
}

// GetMember returns the membership of a user in a workspace.
func (s *Store) GetMember(ctx context.Context, workspaceID, userID int64) (models.WorkspaceMember, error) {
	var m models.WorkspaceMember
	err := s.db.QueryRowContext(ctx, `SELECT m.workspace_id, m.user_id, u.name, u.email, m.role, m.joined_at
        FROM workspace_members m JOIN users u ON u.id = m.user_id
        WHERE m.workspace_id = ? AND m.user_id = ?`, workspaceID, userID).
		Scan(&m.WorkspaceID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.WorkspaceMember{}, notFound("workspace member")
	}
	if err != nil {
		return models.WorkspaceMember{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns all members of a workspace in join order.
func (s *Store) ListMembers(ctx context.Context, workspaceID int64) ([]models.WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT m.workspace_id, m.user_id, u.name, u.email, m.role, m.joined_at
        FROM workspace_members m JOIN users u ON u.id = m.user_id
        WHERE m.workspace_id = ? ORDER BY m.joined_at, m.rowid`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []models.WorkspaceMember{}
	for rows.Next() {
		var m models.WorkspaceMember
		if err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.Name, &m.Email, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// IsProjectMember reports whether the user belongs to the workspace owning the project.
func (s *Store) IsProjectMember(ctx context.Context, projectID, userID int64) (bool, error) {
	return isProjectMember(ctx, s.db, projectID, userID)
}

func isProjectMember(ctx context.Context, q queryer, projectID, userID int64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspace_members m
        JOIN projects p ON p.workspace_id = m.workspace_id
        WHERE p.id = ? AND m.user_id = ?`, projectID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

func userExists(ctx context.Context, q queryer, userID int64) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&n); err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return notFound("user")
	}
	return nil
}
