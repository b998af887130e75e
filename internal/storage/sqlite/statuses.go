package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mandor/internal/models"
)

const statusColumns = `id, project_id, name, color, position`

func scanStatus(row interface{ Scan(...any) error }) (models.Status, error) {
	var st models.Status
	err := row.Scan(&st.ID, &st.ProjectID, &st.Name, &st.Color, &st.Position)
	return st, err
}

// CreateStatus appends a workflow status at the end of the project's order.
func (s *Store) CreateStatus(ctx context.Context, projectID int64, name, color string) (models.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Status{}, invalid("status name must not be empty")
	}
	if color == "" {
		color = randomPaletteColor()
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		pos, err := nextPosition(ctx, tx, `SELECT MAX(position) FROM project_statuses WHERE project_id = ?`, projectID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO project_statuses(project_id, name, color, position) VALUES(?, ?, ?, ?)`, projectID, name, color, pos)
		if err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.Status{}, err
	}
	return s.GetStatus(ctx, id)
}

// GetStatus fetches a status by id.
func (s *Store) GetStatus(ctx context.Context, id int64) (models.Status, error) {
	return getStatus(ctx, s.db, id)
}

func getStatus(ctx context.Context, q queryer, id int64) (models.Status, error) {
	st, err := scanStatus(q.QueryRowContext(ctx, `SELECT `+statusColumns+` FROM project_statuses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Status{}, notFound("status")
	}
	if err != nil {
		return models.Status{}, fmt.Errorf("get status: %w", err)
	}
	return st, nil
}

// ListStatuses returns the project's statuses in workflow order.
func (s *Store) ListStatuses(ctx context.Context, projectID int64) ([]models.Status, error) {
	return listStatuses(ctx, s.db, projectID)
}

func listStatuses(ctx context.Context, q queryer, projectID int64) ([]models.Status, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+statusColumns+` FROM project_statuses WHERE project_id = ? ORDER BY position, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	statuses := []models.Status{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// UpdateStatus renames or recolors a status of the given project.
func (s *Store) UpdateStatus(ctx context.Context, projectID, statusID int64, name, color string) (models.Status, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Status{}, invalid("status name must not be empty")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := getStatus(ctx, tx, statusID)
		if err != nil {
			return err
		}
		if st.ProjectID != projectID {
			return invalid("status %d does not belong to project %d", statusID, projectID)
		}
		if color == "" {
			color = st.Color
		}
		_, err = tx.ExecContext(ctx, `UPDATE project_statuses SET name = ?, color = ? WHERE id = ?`, name, color, statusID)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Status{}, err
	}
	return s.GetStatus(ctx, statusID)
}

// ReorderStatuses rewrites the workflow order. orderedIDs must contain every
// status of the project exactly once.
func (s *Store) ReorderStatuses(ctx context.Context, projectID int64, orderedIDs []int64) ([]models.Status, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		current, err := listStatuses(ctx, tx, projectID)
		if err != nil {
			return err
		}
		existing := make([]int64, len(current))
		for i, st := range current {
			existing[i] = st.ID
		}
		if err := sameIDSet(existing, orderedIDs); err != nil {
			return invalid("status order: %v", err)
		}
		for pos, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx, `UPDATE project_statuses SET position = ? WHERE id = ?`, pos, id); err != nil {
				return fmt.Errorf("update status position: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ListStatuses(ctx, projectID)
}

// DeleteStatus removes a status that no task references and closes the gap
// in the workflow order.
func (s *Store) DeleteStatus(ctx context.Context, projectID, statusID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		st, err := getStatus(ctx, tx, statusID)
		if err != nil {
			return err
		}
		if st.ProjectID != projectID {
			return invalid("status %d does not belong to project %d", statusID, projectID)
		}

		var inUse int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status_id = ?`, statusID).Scan(&inUse); err != nil {
			return fmt.Errorf("count status tasks: %w", err)
		}
		if inUse > 0 {
			return conflict("status %q is used by %d task(s); move them first", st.Name, inUse)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM project_statuses WHERE id = ?`, statusID); err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE project_statuses SET position = position - 1 WHERE project_id = ? AND position > ?`, projectID, st.Position)
		if err != nil {
			return fmt.Errorf("compact status positions: %w", err)
		}
		return nil
	})
}

// nextPosition returns MAX(position)+1 of the rows selected by query, or 0.
func nextPosition(ctx context.Context, q queryer, query string, args ...any) (int64, error) {
	var position sql.NullInt64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&position); err != nil {
		return 0, fmt.Errorf("select position: %w", err)
	}
	if position.Valid {
		return position.Int64 + 1, nil
	}
	return 0, nil
}
