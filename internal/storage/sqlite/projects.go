package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"mandor/internal/models"
)

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// DefaultStatuses seeds the board of a new project when requested.
var DefaultStatuses = []struct{ Name, Color string }{
	{"To Do", "#64748b"},
	{"In Progress", "#2563eb"},
	{"Done", "#059669"},
}

// ProjectInput carries the fields accepted when creating a project.
type ProjectInput struct {
	WorkspaceID  int64
	Key          string
	Name         string
	Description  string
	CreatedBy    int64
	SeedStatuses bool
}

const projectColumns = `id, workspace_id, key, name, description, created_by, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.WorkspaceID, &p.Key, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// NormalizeProjectKey upper-cases and validates a project key.
func NormalizeProjectKey(key string) (string, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if !projectKeyPattern.MatchString(key) {
		return "", invalid("project key %q must be 2-10 letters or digits starting with a letter", key)
	}
	return key, nil
}

// CreateProject persists a new project inside a workspace. The creator must
// be a workspace member.
func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Project{}, invalid("project name must not be empty")
	}
	key, err := NormalizeProjectKey(in.Key)
	if err != nil {
		return models.Project{}, err
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var role string
		err := tx.QueryRowContext(ctx, `SELECT role FROM workspace_members WHERE workspace_id = ? AND user_id = ?`, in.WorkspaceID, in.CreatedBy).Scan(&role)
		if errors.Is(err, sql.ErrNoRows) {
			if _, werr := s.getWorkspaceTx(ctx, tx, in.WorkspaceID); werr != nil {
				return werr
			}
			return invalid("creator is not a member of workspace %d", in.WorkspaceID)
		}
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO projects(workspace_id, key, name, description, created_by) VALUES(?, ?, ?, ?, ?)`,
			in.WorkspaceID, key, name, strings.TrimSpace(in.Description), in.CreatedBy)
		if err != nil {
			if errors.Is(translateError(err), models.ErrConflict) {
				return conflict("project key %s already used in workspace", key)
			}
			return fmt.Errorf("insert project: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("project id: %w", err)
		}

		if in.SeedStatuses {
			for i, st := range DefaultStatuses {
				if _, err := tx.ExecContext(ctx, `INSERT INTO project_statuses(project_id, name, color, position) VALUES(?, ?, ?, ?)`,
					id, st.Name, st.Color, i); err != nil {
					return fmt.Errorf("seed status: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *Store) getWorkspaceTx(ctx context.Context, q queryer, id int64) (int64, error) {
	var found int64
	err := q.QueryRowContext(ctx, `SELECT id FROM workspaces WHERE id = ?`, id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFound("workspace")
	}
	if err != nil {
		return 0, fmt.Errorf("get workspace: %w", err)
	}
	return found, nil
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q queryer, id int64) (models.Project, error) {
	p, err := scanProject(q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, notFound("project")
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListProjects retrieves the projects of a workspace ordered by creation date.
func (s *Store) ListProjects(ctx context.Context, workspaceID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE workspace_id = ? ORDER BY created_at ASC, id ASC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject renames a project and rewrites its description. The key never changes.
func (s *Store) UpdateProject(ctx context.Context, id int64, name, description string) (models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return models.Project{}, invalid("project name must not be empty")
	}

	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		strings.TrimSpace(name), strings.TrimSpace(description), id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return models.Project{}, err
	}
	if affected == 0 {
		return models.Project{}, notFound("project")
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its statuses, sprints, tasks and ledger.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		// Tasks go first: their status FK is RESTRICT and would block the cascade.
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, id); err != nil {
			return fmt.Errorf("delete project tasks: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return notFound("project")
		}
		return nil
	})
}
