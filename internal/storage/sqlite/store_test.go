package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandor/internal/models"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(dbPath, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

// board is a project with three statuses and one member.
type board struct {
	owner   models.User
	ws      models.Workspace
	project models.Project
	todo    models.Status
	doing   models.Status
	done    models.Status
}

var userSeq int

func createUser(t *testing.T, s *Store, name string) models.User {
	t.Helper()
	userSeq++
	u, err := s.CreateUser(context.Background(), name, fmt.Sprintf("%s-%d@example.com", name, userSeq), "")
	require.NoError(t, err)
	return u
}

func setupBoard(t *testing.T, s *Store) board {
	t.Helper()
	ctx := context.Background()

	var b board
	b.owner = createUser(t, s, "owner")

	var err error
	b.ws, err = s.CreateWorkspace(ctx, "Acme", b.owner.ID)
	require.NoError(t, err)

	b.project, err = s.CreateProject(ctx, ProjectInput{WorkspaceID: b.ws.ID, Key: "web", Name: "Website", CreatedBy: b.owner.ID})
	require.NoError(t, err)

	b.todo, err = s.CreateStatus(ctx, b.project.ID, "Todo", "#111111")
	require.NoError(t, err)
	b.doing, err = s.CreateStatus(ctx, b.project.ID, "Doing", "#222222")
	require.NoError(t, err)
	b.done, err = s.CreateStatus(ctx, b.project.ID, "Done", "#333333")
	require.NoError(t, err)
	return b
}

func (b board) task(t *testing.T, s *Store, title string, statusID int64, sprintID *int64) models.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), TaskInput{
		ProjectID: b.project.ID,
		StatusID:  &statusID,
		SprintID:  sprintID,
		CreatorID: b.owner.ID,
		Title:     title,
	})
	require.NoError(t, err)
	return task
}

func bucketTitles(t *testing.T, s *Store, projectID int64, bucket models.Bucket) []string {
	t.Helper()
	tasks, err := s.ListBucket(context.Background(), projectID, bucket)
	require.NoError(t, err)
	titles := make([]string, len(tasks))
	for i, task := range tasks {
		assert.Equal(t, int64(i), task.Position, "position of %s", task.Title)
		titles[i] = task.Title
	}
	return titles
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "mandor.db")
	store, err := Open(dbPath, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	first, err := Open(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(dbPath, nil)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestTranslateError(t *testing.T) {
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	assert.ErrorIs(t, translateError(fmt.Errorf("commit: %w", busy)), models.ErrConflict)

	unique := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}
	assert.ErrorIs(t, translateError(unique), models.ErrConflict)

	fk := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}
	assert.ErrorIs(t, translateError(fk), models.ErrValidation)

	plain := errors.New("boom")
	assert.Equal(t, plain, translateError(plain))
	assert.NoError(t, translateError(nil))
}
