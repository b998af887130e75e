package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mandor/internal/models"
)

// Assign adds a user to a task's assignees. Assigning twice is a no-op.
func (s *Store) Assign(ctx context.Context, taskID, userID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}
		member, err := isProjectMember(ctx, tx, t.ProjectID, userID)
		if err != nil {
			return err
		}
		if !member {
			return invalid("user %d is not a member of the project workspace", userID)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO task_assignees(task_id, user_id, assigned_at) VALUES(?, ?, ?)
            ON CONFLICT(task_id, user_id) DO NOTHING`, taskID, userID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("assign user: %w", err)
		}
		return nil
	})
}

// Unassign removes a user from a task's assignees. Removing an absent user is a no-op.
func (s *Store) Unassign(ctx context.Context, taskID, userID int64) error {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ? AND user_id = ?`, taskID, userID); err != nil {
		return fmt.Errorf("unassign user: %w", err)
	}
	return nil
}

// ListAssignees returns the task's assignees in assignment order.
func (s *Store) ListAssignees(ctx context.Context, taskID int64) ([]models.Assignee, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT a.task_id, a.user_id, u.name, u.email, a.assigned_at
        FROM task_assignees a JOIN users u ON u.id = a.user_id
        WHERE a.task_id = ? ORDER BY a.assigned_at, a.rowid`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	assignees := []models.Assignee{}
	for rows.Next() {
		var a models.Assignee
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.Name, &a.Email, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		assignees = append(assignees, a)
	}
	return assignees, rows.Err()
}
