package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"mandor/internal/models"
)

// MessageInput carries a new chat message. Content is opaque client ciphertext.
type MessageInput struct {
	ProjectID  int64
	TaskID     *int64
	AuthorID   int64
	ReplyToID  *int64
	Content    string
	Attachment string
}

const messageColumns = `id, project_id, task_id, author_id, reply_to_id, content, attachment, created_at`

func scanMessage(row interface{ Scan(...any) error }) (models.Message, error) {
	var (
		m             models.Message
		task, replyTo sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.ProjectID, &task, &m.AuthorID, &replyTo, &m.Content, &m.Attachment, &m.CreatedAt)
	m.TaskID = int64Ptr(task)
	m.ReplyToID = int64Ptr(replyTo)
	return m, err
}

// PostMessage stores a message. A reply must target a message of the same project.
func (s *Store) PostMessage(ctx context.Context, in MessageInput) (models.Message, error) {
	if strings.TrimSpace(in.Content) == "" && in.Attachment == "" {
		return models.Message{}, invalid("message needs content or an attachment")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, in.ProjectID); err != nil {
			return err
		}
		member, err := isProjectMember(ctx, tx, in.ProjectID, in.AuthorID)
		if err != nil {
			return err
		}
		if !member {
			return invalid("author is not a member of the project workspace")
		}
		if in.TaskID != nil {
			t, err := getTask(ctx, tx, *in.TaskID)
			if err != nil {
				return err
			}
			if t.ProjectID != in.ProjectID {
				return invalid("task %d does not belong to project %d", *in.TaskID, in.ProjectID)
			}
		}
		if in.ReplyToID != nil {
			parent, err := getMessage(ctx, tx, *in.ReplyToID)
			if err != nil {
				return err
			}
			if parent.ProjectID != in.ProjectID {
				return invalid("message %d belongs to another project", *in.ReplyToID)
			}
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO messages(project_id, task_id, author_id, reply_to_id, content, attachment) VALUES(?, ?, ?, ?, ?, ?)`,
			in.ProjectID, nullInt64(in.TaskID), in.AuthorID, nullInt64(in.ReplyToID), in.Content, in.Attachment)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.Message{}, err
	}
	return s.GetMessage(ctx, id)
}

// GetMessage fetches a message by id.
func (s *Store) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	return getMessage(ctx, s.db, id)
}

func getMessage(ctx context.Context, q queryer, id int64) (models.Message, error) {
	m, err := scanMessage(q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, notFound("message")
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// MessageFilter narrows ListMessages. BeforeID pages back through older
// messages; Limit defaults to 100 and is capped at 500.
type MessageFilter struct {
	TaskID   *int64
	BeforeID *int64
	Limit    int
}

// ListMessages returns the latest page of a project's messages, oldest
// first within the page.
func (s *Store) ListMessages(ctx context.Context, projectID int64, filter MessageFilter) ([]models.Message, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE project_id = ?`
	args := []any{projectID}
	if filter.TaskID != nil {
		query += ` AND task_id = ?`
		args = append(args, *filter.TaskID)
	}
	if filter.BeforeID != nil {
		query += ` AND id < ?`
		args = append(args, *filter.BeforeID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	messages, err := s.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// ListReplies returns the direct replies to a message oldest first.
func (s *Store) ListReplies(ctx context.Context, messageID int64) ([]models.Message, error) {
	if _, err := s.GetMessage(ctx, messageID); err != nil {
		return nil, err
	}
	return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE reply_to_id = ? ORDER BY created_at, id`, messageID)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
