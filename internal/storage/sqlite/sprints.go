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

// SprintInput carries the fields accepted when creating a sprint.
type SprintInput struct {
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

const sprintColumns = `id, project_id, name, goal, start_date, end_date, status, position, created_at, updated_at`

func scanSprint(row interface{ Scan(...any) error }) (models.Sprint, error) {
	var (
		sp         models.Sprint
		start, end sql.NullTime
	)
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Goal, &start, &end, &sp.Status, &sp.Position, &sp.CreatedAt, &sp.UpdatedAt)
	sp.StartDate = timePtr(start)
	sp.EndDate = timePtr(end)
	return sp, err
}

// CreateSprint adds a sprint in planning state after the existing ones.
func (s *Store) CreateSprint(ctx context.Context, projectID int64, in SprintInput) (models.Sprint, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Sprint{}, invalid("sprint name must not be empty")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return models.Sprint{}, invalid("sprint end date is before its start date")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		pos, err := nextPosition(ctx, tx, `SELECT MAX(position) FROM sprints WHERE project_id = ?`, projectID)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO sprints(project_id, name, goal, start_date, end_date, status, position) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			projectID, name, strings.TrimSpace(in.Goal), nullTime(in.StartDate), nullTime(in.EndDate), models.SprintPlanning, pos)
		if err != nil {
			return fmt.Errorf("insert sprint: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.Sprint{}, err
	}
	return s.GetSprint(ctx, id)
}

// GetSprint fetches a sprint by id.
func (s *Store) GetSprint(ctx context.Context, id int64) (models.Sprint, error) {
	return getSprint(ctx, s.db, id)
}

func getSprint(ctx context.Context, q queryer, id int64) (models.Sprint, error) {
	sp, err := scanSprint(q.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, notFound("sprint")
	}
	if err != nil {
		return models.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

// ListSprints returns the project's sprints in order.
func (s *Store) ListSprints(ctx context.Context, projectID int64) ([]models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY position, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	sprints := []models.Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// ActivateSprint moves a planning sprint to active. Only one sprint per
// project may be active at a time.
func (s *Store) ActivateSprint(ctx context.Context, projectID, sprintID int64) (models.Sprint, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := projectSprint(ctx, tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if sp.Status != models.SprintPlanning {
			return conflict("sprint %q is %s and cannot be activated", sp.Name, sp.Status)
		}

		var activeID int64
		err = tx.QueryRowContext(ctx, `SELECT id FROM sprints WHERE project_id = ? AND status = ? AND id <> ?`,
			projectID, models.SprintActive, sprintID).Scan(&activeID)
		switch {
		case err == nil:
			return conflict("sprint %d is already active in this project", activeID)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("find active sprint: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE sprints SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, models.SprintActive, sprintID)
		if err != nil {
			return fmt.Errorf("activate sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint activated", "project_id", projectID, "sprint_id", sprintID)
	return s.GetSprint(ctx, sprintID)
}

// CompleteSprint closes a planning or active sprint. Its tasks stay attached.
func (s *Store) CompleteSprint(ctx context.Context, projectID, sprintID int64) (models.Sprint, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sp, err := projectSprint(ctx, tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if sp.Status == models.SprintCompleted {
			return conflict("sprint %q is already completed", sp.Name)
		}
		_, err = tx.ExecContext(ctx, `UPDATE sprints SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, models.SprintCompleted, sprintID)
		if err != nil {
			return fmt.Errorf("complete sprint: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Sprint{}, err
	}
	s.logger.Info("sprint completed", "project_id", projectID, "sprint_id", sprintID)
	return s.GetSprint(ctx, sprintID)
}

// DeleteSprint removes a sprint and appends its tasks to the backlog of
// their status, preserving their relative order.
func (s *Store) DeleteSprint(ctx context.Context, projectID, sprintID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := projectSprint(ctx, tx, projectID, sprintID); err != nil {
			return err
		}
		statuses, err := listStatuses(ctx, tx, projectID)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			moved, err := bucketIDs(ctx, tx, projectID, models.Bucket{StatusID: st.ID, SprintID: &sprintID})
			if err != nil {
				return err
			}
			if len(moved) == 0 {
				continue
			}
			backlog, err := bucketIDs(ctx, tx, projectID, models.Bucket{StatusID: st.ID})
			if err != nil {
				return err
			}
			for i, id := range moved {
				_, err := tx.ExecContext(ctx, `UPDATE tasks SET sprint_id = NULL, position = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, len(backlog)+i, id)
				if err != nil {
					return fmt.Errorf("move task to backlog: %w", err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sprints WHERE id = ?`, sprintID); err != nil {
			return fmt.Errorf("delete sprint: %w", err)
		}
		return nil
	})
}

func projectSprint(ctx context.Context, q queryer, projectID, sprintID int64) (models.Sprint, error) {
	sp, err := getSprint(ctx, q, sprintID)
	if err != nil {
		return models.Sprint{}, err
	}
	if sp.ProjectID != projectID {
		return models.Sprint{}, invalid("sprint %d does not belong to project %d", sprintID, projectID)
	}
	return sp, nil
}
