package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandor/internal/models"
)

func statusNames(statuses []models.Status) []string {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = st.Name
	}
	return names
}

func TestCreateStatus_AppendsAtEnd(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)

	assert.Equal(t, int64(0), b.todo.Position)
	assert.Equal(t, int64(1), b.doing.Position)
	assert.Equal(t, int64(2), b.done.Position)

	review, err := s.CreateStatus(context.Background(), b.project.ID, "Review", "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), review.Position)
	assert.NotEmpty(t, review.Color)
}

func TestCreateStatus_Validation(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	_, err := s.CreateStatus(ctx, b.project.ID, "  ", "")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CreateStatus(ctx, 9999, "Todo", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestProjectSeedsDefaultStatuses(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := createUser(t, s, "seed")
	ws, err := s.CreateWorkspace(ctx, "Seeded", owner.ID)
	require.NoError(t, err)

	p, err := s.CreateProject(ctx, ProjectInput{WorkspaceID: ws.ID, Key: "SEED", Name: "Seeded", CreatedBy: owner.ID, SeedStatuses: true})
	require.NoError(t, err)

	statuses, err := s.ListStatuses(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"To Do", "In Progress", "Done"}, statusNames(statuses))
}

func TestReorderStatuses(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)

	statuses, err := s.ReorderStatuses(context.Background(), b.project.ID, []int64{b.done.ID, b.todo.ID, b.doing.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Done", "Todo", "Doing"}, statusNames(statuses))
	for i, st := range statuses {
		assert.Equal(t, int64(i), st.Position)
	}
}

func TestReorderStatuses_RejectsMismatchedSets(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	other := setupBoard(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		ids  []int64
	}{
		{"missing", []int64{b.todo.ID, b.doing.ID}},
		{"duplicate", []int64{b.todo.ID, b.doing.ID, b.doing.ID}},
		{"foreign", []int64{b.todo.ID, b.doing.ID, other.done.ID}},
		{"extra", []int64{b.todo.ID, b.doing.ID, b.done.ID, other.done.ID}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ReorderStatuses(ctx, b.project.ID, tt.ids)
			assert.ErrorIs(t, err, models.ErrValidation)

			statuses, err := s.ListStatuses(ctx, b.project.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"Todo", "Doing", "Done"}, statusNames(statuses))
		})
	}
}

func TestDeleteStatus_InUseIsConflict(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()
	b.task(t, s, "A", b.doing.ID, nil)

	beforeStatuses, err := s.ListStatuses(ctx, b.project.ID)
	require.NoError(t, err)
	beforeTasks, err := s.ListTasks(ctx, b.project.ID, TaskFilter{})
	require.NoError(t, err)

	err = s.DeleteStatus(ctx, b.project.ID, b.doing.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	afterStatuses, err := s.ListStatuses(ctx, b.project.ID)
	require.NoError(t, err)
	afterTasks, err := s.ListTasks(ctx, b.project.ID, TaskFilter{})
	require.NoError(t, err)
	assert.Equal(t, beforeStatuses, afterStatuses)
	assert.Equal(t, beforeTasks, afterTasks)
}

func TestDeleteStatus_CompactsOrder(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeleteStatus(ctx, b.project.ID, b.todo.ID))

	statuses, err := s.ListStatuses(ctx, b.project.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "Doing", statuses[0].Name)
	assert.Equal(t, int64(0), statuses[0].Position)
	assert.Equal(t, int64(1), statuses[1].Position)

	_, err = s.GetStatus(ctx, b.todo.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteStatus_OtherProject(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	other := setupBoard(t, s)

	err := s.DeleteStatus(context.Background(), b.project.ID, other.todo.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateStatus(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)

	st, err := s.UpdateStatus(context.Background(), b.project.ID, b.todo.ID, "Backlog", "")
	require.NoError(t, err)
	assert.Equal(t, "Backlog", st.Name)
	assert.Equal(t, "#111111", st.Color)
	assert.Equal(t, b.todo.Position, st.Position)
}
