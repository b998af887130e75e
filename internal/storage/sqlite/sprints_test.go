package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandor/internal/models"
)

func TestCreateSprint(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)
	first, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "Sprint 1", Goal: "ship login", StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, models.SprintPlanning, first.Status)
	assert.Equal(t, int64(0), first.Position)
	require.NotNil(t, first.StartDate)
	assert.True(t, start.Equal(*first.StartDate))

	second, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "Sprint 2"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Position)
	assert.Nil(t, second.StartDate)
}

func TestCreateSprint_EndBeforeStart(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err := s.CreateSprint(context.Background(), b.project.ID, SprintInput{Name: "Backwards", StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestActivateSprint_SecondActiveIsConflict(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	one, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "One"})
	require.NoError(t, err)
	two, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "Two"})
	require.NoError(t, err)

	active, err := s.ActivateSprint(ctx, b.project.ID, one.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintActive, active.Status)

	_, err = s.ActivateSprint(ctx, b.project.ID, two.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	still, err := s.GetSprint(ctx, one.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintActive, still.Status)

	pending, err := s.GetSprint(ctx, two.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintPlanning, pending.Status)
}

func TestActivateSprint_OtherProjectsAreIndependent(t *testing.T) {
	s := setupTestStore(t)
	a := setupBoard(t, s)
	b := setupBoard(t, s)
	ctx := context.Background()

	sa, err := s.CreateSprint(ctx, a.project.ID, SprintInput{Name: "A"})
	require.NoError(t, err)
	sb, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "B"})
	require.NoError(t, err)

	_, err = s.ActivateSprint(ctx, a.project.ID, sa.ID)
	require.NoError(t, err)
	_, err = s.ActivateSprint(ctx, b.project.ID, sb.ID)
	require.NoError(t, err)
}

func TestSprintLifecycle(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "One"})
	require.NoError(t, err)
	task := b.task(t, s, "A", b.todo.ID, &sp.ID)

	_, err = s.ActivateSprint(ctx, b.project.ID, sp.ID)
	require.NoError(t, err)
	_, err = s.ActivateSprint(ctx, b.project.ID, sp.ID)
	assert.ErrorIs(t, err, models.ErrConflict, "active sprint cannot be activated again")

	done, err := s.CompleteSprint(ctx, b.project.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintCompleted, done.Status)

	_, err = s.CompleteSprint(ctx, b.project.ID, sp.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
	_, err = s.ActivateSprint(ctx, b.project.ID, sp.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SprintID)
	assert.Equal(t, sp.ID, *got.SprintID, "tasks stay on a completed sprint")

	next, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "Two"})
	require.NoError(t, err)
	_, err = s.ActivateSprint(ctx, b.project.ID, next.ID)
	assert.NoError(t, err, "a completed sprint frees the active slot")
}

func TestCompleteSprint_FromPlanning(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "Cancelled"})
	require.NoError(t, err)
	done, err := s.CompleteSprint(ctx, b.project.ID, sp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SprintCompleted, done.Status)
}

func TestSprintRegistry_WrongProject(t *testing.T) {
	s := setupTestStore(t)
	a := setupBoard(t, s)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, a.project.ID, SprintInput{Name: "A"})
	require.NoError(t, err)

	_, err = s.ActivateSprint(ctx, b.project.ID, sp.ID)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = s.ActivateSprint(ctx, b.project.ID, 9999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteSprint_MovesTasksToBacklog(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "One"})
	require.NoError(t, err)
	b.task(t, s, "backlog-1", b.todo.ID, nil)
	b.task(t, s, "sprint-1", b.todo.ID, &sp.ID)
	b.task(t, s, "sprint-2", b.todo.ID, &sp.ID)

	require.NoError(t, s.DeleteSprint(ctx, b.project.ID, sp.ID))

	assert.Equal(t, []string{"backlog-1", "sprint-1", "sprint-2"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
	_, err = s.GetSprint(ctx, sp.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
