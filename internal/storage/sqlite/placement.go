package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"mandor/internal/models"
)

// Placement is the target of a task move. Index is the zero-based slot in
// the target bucket; values past the end append.
type Placement struct {
	StatusID int64
	SprintID *int64
	Index    int
}

// MoveTask changes the status, sprint and position of a task in one
// transaction. Both the source and the target bucket are re-densified.
func (s *Store) MoveTask(ctx context.Context, taskID int64, to Placement) (models.Task, error) {
	if to.Index < 0 {
		return models.Task{}, invalid("target index must not be negative")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		target := models.Bucket{StatusID: to.StatusID, SprintID: to.SprintID}
		if err := checkBucket(ctx, tx, t.ProjectID, target); err != nil {
			return err
		}

		source := t.Bucket()
		if !sameBucket(source, target) {
			rest, err := bucketIDs(ctx, tx, t.ProjectID, source)
			if err != nil {
				return err
			}
			if err := writePositions(ctx, tx, without(rest, taskID)); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `UPDATE tasks SET status_id = ?, sprint_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				target.StatusID, nullInt64(target.SprintID), taskID)
			if err != nil {
				return fmt.Errorf("move task: %w", err)
			}
		}

		ids, err := bucketIDs(ctx, tx, t.ProjectID, target)
		if err != nil {
			return err
		}
		return writePositions(ctx, tx, placeAt(ids, taskID, to.Index))
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Debug("task moved", "task_id", taskID, "status_id", to.StatusID, "index", to.Index)
	return s.GetTask(ctx, taskID)
}

// BulkReorder rewrites the order of a bucket. orderedTaskIDs must list every
// task of the bucket exactly once.
func (s *Store) BulkReorder(ctx context.Context, projectID int64, bucket models.Bucket, orderedTaskIDs []int64) ([]models.Task, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, projectID); err != nil {
			return err
		}
		if err := checkBucket(ctx, tx, projectID, bucket); err != nil {
			return err
		}
		current, err := bucketIDs(ctx, tx, projectID, bucket)
		if err != nil {
			return err
		}
		if err := sameIDSet(current, orderedTaskIDs); err != nil {
			return invalid("bucket order: %v", err)
		}
		return writePositions(ctx, tx, orderedTaskIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.ListBucket(ctx, projectID, bucket)
}

// ListBucket returns the tasks of one bucket in position order.
func (s *Store) ListBucket(ctx context.Context, projectID int64, bucket models.Bucket) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t
        WHERE t.project_id = ? AND t.status_id = ? AND t.sprint_id IS ?
        ORDER BY t.position, t.id`, projectID, bucket.StatusID, nullInt64(bucket.SprintID))
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
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

// checkBucket verifies that the bucket's status and sprint exist and belong to the project.
func checkBucket(ctx context.Context, q queryer, projectID int64, b models.Bucket) error {
	st, err := getStatus(ctx, q, b.StatusID)
	if err != nil {
		return err
	}
	if st.ProjectID != projectID {
		return invalid("status %d does not belong to project %d", b.StatusID, projectID)
	}
	if b.SprintID != nil {
		if _, err := projectSprint(ctx, q, projectID, *b.SprintID); err != nil {
			return err
		}
	}
	return nil
}

func bucketIDs(ctx context.Context, q queryer, projectID int64, b models.Bucket) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM tasks WHERE project_id = ? AND status_id = ? AND sprint_id IS ? ORDER BY position, id`,
		projectID, b.StatusID, nullInt64(b.SprintID))
	if err != nil {
		return nil, fmt.Errorf("select bucket: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// writePositions assigns positions 0..n-1 following the order of ids.
func writePositions(ctx context.Context, tx *sql.Tx, ids []int64) error {
	stmt, err := tx.PrepareContext(ctx, `UPDATE tasks SET position = ? WHERE id = ? AND position <> ?`)
	if err != nil {
		return fmt.Errorf("prepare position update: %w", err)
	}
	defer stmt.Close()

	for pos, id := range ids {
		if _, err := stmt.ExecContext(ctx, pos, id, pos); err != nil {
			return fmt.Errorf("update task position: %w", err)
		}
	}
	return nil
}

func sameBucket(a, b models.Bucket) bool {
	if a.StatusID != b.StatusID {
		return false
	}
	if a.SprintID == nil || b.SprintID == nil {
		return a.SprintID == nil && b.SprintID == nil
	}
	return *a.SprintID == *b.SprintID
}
