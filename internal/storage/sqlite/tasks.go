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

// TaskInput carries the fields accepted when creating a task. A nil StatusID
// selects the project's first status; a nil SprintID places it in the backlog.
type TaskInput struct {
	ProjectID   int64
	StatusID    *int64
	SprintID    *int64
	CreatorID   int64
	Title       string
	Description string
	Priority    string
	StartDate   *time.Time
	DueDate     *time.Time
}

// TaskUpdate lists the descriptive fields that may change after creation.
// Placement is changed through MoveTask and BulkReorder only.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *string
	StartDate   *time.Time
	DueDate     *time.Time
	ClearDates  bool
}

// TaskFilter narrows ListTasks. Zero values match everything.
type TaskFilter struct {
	StatusID   *int64
	SprintID   *int64
	Backlog    bool
	AssigneeID *int64
}

const taskColumns = `t.id, t.project_id, t.status_id, t.sprint_id, t.creator_id, t.title, t.description, t.priority, t.start_date, t.due_date, t.position, t.created_at, t.updated_at`

func scanTask(row interface{ Scan(...any) error }) (models.Task, error) {
	var (
		t          models.Task
		sprint     sql.NullInt64
		start, due sql.NullTime
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.StatusID, &sprint, &t.CreatorID, &t.Title, &t.Description, &t.Priority,
		&start, &due, &t.Position, &t.CreatedAt, &t.UpdatedAt)
	t.SprintID = int64Ptr(sprint)
	t.StartDate = timePtr(start)
	t.DueDate = timePtr(due)
	return t, err
}

// CreateTask inserts a new task at the end of its bucket.
func (s *Store) CreateTask(ctx context.Context, in TaskInput) (models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Task{}, invalid("task title must not be empty")
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if _, ok := models.ValidPriorities[priority]; !ok {
		return models.Task{}, invalid("unknown priority %q", priority)
	}
	if in.StartDate != nil && in.DueDate != nil && in.DueDate.Before(*in.StartDate) {
		return models.Task{}, invalid("task due date is before its start date")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, in.ProjectID); err != nil {
			return err
		}
		member, err := isProjectMember(ctx, tx, in.ProjectID, in.CreatorID)
		if err != nil {
			return err
		}
		if !member {
			return invalid("creator is not a member of the project workspace")
		}

		bucket := models.Bucket{SprintID: in.SprintID}
		if in.StatusID != nil {
			bucket.StatusID = *in.StatusID
		} else {
			statuses, err := listStatuses(ctx, tx, in.ProjectID)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				return invalid("project has no statuses")
			}
			bucket.StatusID = statuses[0].ID
		}
		if err := checkBucket(ctx, tx, in.ProjectID, bucket); err != nil {
			return err
		}

		pos, err := nextPosition(ctx, tx, `SELECT MAX(position) FROM tasks WHERE project_id = ? AND status_id = ? AND sprint_id IS ?`,
			in.ProjectID, bucket.StatusID, nullInt64(bucket.SprintID))
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO tasks(project_id, status_id, sprint_id, creator_id, title, description, priority, start_date, due_date, position)
            VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			in.ProjectID, bucket.StatusID, nullInt64(bucket.SprintID), in.CreatorID, title, strings.TrimSpace(in.Description),
			priority, nullTime(in.StartDate), nullTime(in.DueDate), pos)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id int64) (models.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q queryer, id int64) (models.Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, notFound("task")
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns the project's tasks ordered by status, sprint and position.
func (s *Store) ListTasks(ctx context.Context, projectID int64, filter TaskFilter) ([]models.Task, error) {
	where, args := filter.predicates(projectID)
	query := `SELECT ` + taskColumns + ` FROM tasks t
        JOIN project_statuses st ON st.id = t.status_id
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY st.position, t.sprint_id IS NOT NULL, t.sprint_id, t.position, t.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (f TaskFilter) predicates(projectID int64) ([]string, []any) {
	where := []string{"t.project_id = ?"}
	args := []any{projectID}
	if f.StatusID != nil {
		where = append(where, "t.status_id = ?")
		args = append(args, *f.StatusID)
	}
	switch {
	case f.Backlog:
		where = append(where, "t.sprint_id IS NULL")
	case f.SprintID != nil:
		where = append(where, "t.sprint_id = ?")
		args = append(args, *f.SprintID)
	}
	if f.AssigneeID != nil {
		where = append(where, "EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id AND a.user_id = ?)")
		args = append(args, *f.AssigneeID)
	}
	return where, args
}

// UpdateTask changes descriptive fields of a task.
func (s *Store) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (models.Task, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}

		if upd.Title != nil {
			title := strings.TrimSpace(*upd.Title)
			if title == "" {
				return invalid("task title must not be empty")
			}
			current.Title = title
		}
		if upd.Description != nil {
			current.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Priority != nil {
			if _, ok := models.ValidPriorities[*upd.Priority]; !ok {
				return invalid("unknown priority %q", *upd.Priority)
			}
			current.Priority = *upd.Priority
		}
		if upd.ClearDates {
			current.StartDate, current.DueDate = nil, nil
		}
		if upd.StartDate != nil {
			current.StartDate = upd.StartDate
		}
		if upd.DueDate != nil {
			current.DueDate = upd.DueDate
		}
		if current.StartDate != nil && current.DueDate != nil && current.DueDate.Before(*current.StartDate) {
			return invalid("task due date is before its start date")
		}

		_, err = tx.ExecContext(ctx, `UPDATE tasks SET title = ?, description = ?, priority = ?, start_date = ?, due_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			current.Title, current.Description, current.Priority, nullTime(current.StartDate), nullTime(current.DueDate), id)
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task and closes the gap it leaves in its bucket.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		remaining, err := bucketIDs(ctx, tx, t.ProjectID, t.Bucket())
		if err != nil {
			return err
		}
		return writePositions(ctx, tx, remaining)
	})
}
