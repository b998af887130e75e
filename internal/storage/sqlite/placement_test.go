package sqlite

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandor/internal/models"
)

func TestMoveTask_AcrossColumns(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	b.task(t, s, "A", b.todo.ID, nil)
	taskB := b.task(t, s, "B", b.todo.ID, nil)

	moved, err := s.MoveTask(ctx, taskB.ID, Placement{StatusID: b.doing.ID, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, b.doing.ID, moved.StatusID)
	assert.Nil(t, moved.SprintID)
	assert.Equal(t, int64(0), moved.Position)

	assert.Equal(t, []string{"B"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.doing.ID}))
	assert.Equal(t, []string{"A"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
}

func TestMoveTask_IntoMiddleOfBucket(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	x := b.task(t, s, "X", b.todo.ID, nil)
	b.task(t, s, "A", b.doing.ID, nil)
	b.task(t, s, "B", b.doing.ID, nil)
	b.task(t, s, "C", b.doing.ID, nil)

	_, err := s.MoveTask(ctx, x.ID, Placement{StatusID: b.doing.ID, Index: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "X", "C"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.doing.ID}))
	assert.Empty(t, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
}

func TestMoveTask_WithinBucket(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	a := b.task(t, s, "A", b.todo.ID, nil)
	b.task(t, s, "B", b.todo.ID, nil)
	c := b.task(t, s, "C", b.todo.ID, nil)

	_, err := s.MoveTask(ctx, c.ID, Placement{StatusID: b.todo.ID, Index: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))

	_, err = s.MoveTask(ctx, a.ID, Placement{StatusID: b.todo.ID, Index: 99})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
}

func TestMoveTask_SprintAndBacklog(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "One"})
	require.NoError(t, err)
	a := b.task(t, s, "A", b.todo.ID, nil)
	b.task(t, s, "B", b.todo.ID, nil)

	moved, err := s.MoveTask(ctx, a.ID, Placement{StatusID: b.todo.ID, SprintID: &sp.ID, Index: 0})
	require.NoError(t, err)
	require.NotNil(t, moved.SprintID)
	assert.Equal(t, sp.ID, *moved.SprintID)

	assert.Equal(t, []string{"A"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID, SprintID: &sp.ID}))
	assert.Equal(t, []string{"B"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))

	back, err := s.MoveTask(ctx, a.ID, Placement{StatusID: b.todo.ID, Index: 0})
	require.NoError(t, err)
	assert.Nil(t, back.SprintID)
	assert.Equal(t, []string{"A", "B"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
}

func TestMoveTask_Errors(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	other := setupBoard(t, s)
	ctx := context.Background()

	task := b.task(t, s, "A", b.todo.ID, nil)
	otherSprint, err := s.CreateSprint(ctx, other.project.ID, SprintInput{Name: "Foreign"})
	require.NoError(t, err)
	missing := int64(9999)

	tests := []struct {
		name   string
		taskID int64
		to     Placement
		want   error
	}{
		{"unknown task", 9999, Placement{StatusID: b.doing.ID}, models.ErrNotFound},
		{"unknown status", task.ID, Placement{StatusID: 9999}, models.ErrNotFound},
		{"unknown sprint", task.ID, Placement{StatusID: b.doing.ID, SprintID: &missing}, models.ErrNotFound},
		{"foreign status", task.ID, Placement{StatusID: other.doing.ID}, models.ErrValidation},
		{"foreign sprint", task.ID, Placement{StatusID: b.doing.ID, SprintID: &otherSprint.ID}, models.ErrValidation},
		{"negative index", task.ID, Placement{StatusID: b.doing.ID, Index: -1}, models.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.MoveTask(ctx, tt.taskID, tt.to)
			assert.ErrorIs(t, err, tt.want)

			got, err := s.GetTask(ctx, task.ID)
			require.NoError(t, err)
			assert.Equal(t, b.todo.ID, got.StatusID)
			assert.Nil(t, got.SprintID)
			assert.Equal(t, int64(0), got.Position)
		})
	}
}

func TestBulkReorder(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	a := b.task(t, s, "A", b.todo.ID, nil)
	bb := b.task(t, s, "B", b.todo.ID, nil)
	c := b.task(t, s, "C", b.todo.ID, nil)
	bucket := models.Bucket{StatusID: b.todo.ID}

	tasks, err := s.BulkReorder(ctx, b.project.ID, bucket, []int64{c.ID, a.ID, bb.ID})
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{c.ID, a.ID, bb.ID}, []int64{tasks[0].ID, tasks[1].ID, tasks[2].ID})
	assert.Equal(t, []string{"C", "A", "B"}, bucketTitles(t, s, b.project.ID, bucket))
}

func TestBulkReorder_RejectsMismatchedSets(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	a := b.task(t, s, "A", b.todo.ID, nil)
	bb := b.task(t, s, "B", b.todo.ID, nil)
	elsewhere := b.task(t, s, "Z", b.doing.ID, nil)
	bucket := models.Bucket{StatusID: b.todo.ID}

	for name, ids := range map[string][]int64{
		"missing":   {a.ID},
		"duplicate": {a.ID, a.ID},
		"foreign":   {a.ID, elsewhere.ID},
		"extra":     {a.ID, bb.ID, elsewhere.ID},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.BulkReorder(ctx, b.project.ID, bucket, ids)
			assert.ErrorIs(t, err, models.ErrValidation)
			assert.Equal(t, []string{"A", "B"}, bucketTitles(t, s, b.project.ID, bucket))
		})
	}
}

func TestBulkReorder_ForeignBucket(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	other := setupBoard(t, s)

	_, err := s.BulkReorder(context.Background(), b.project.ID, models.Bucket{StatusID: other.todo.ID}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestCreateTask_AppendsToBucket(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	first, err := s.CreateTask(ctx, TaskInput{ProjectID: b.project.ID, CreatorID: b.owner.ID, Title: "default"})
	require.NoError(t, err)
	assert.Equal(t, b.todo.ID, first.StatusID, "defaults to the first status")
	assert.Nil(t, first.SprintID, "defaults to the backlog")
	assert.Equal(t, models.PriorityMedium, first.Priority)
	assert.Equal(t, int64(0), first.Position)

	second := b.task(t, s, "second", b.todo.ID, nil)
	assert.Equal(t, int64(1), second.Position)
}

func TestDeleteTask_ClosesGap(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	b.task(t, s, "A", b.todo.ID, nil)
	mid := b.task(t, s, "B", b.todo.ID, nil)
	b.task(t, s, "C", b.todo.ID, nil)

	require.NoError(t, s.DeleteTask(ctx, mid.ID))
	assert.Equal(t, []string{"A", "C"}, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
	assert.ErrorIs(t, s.DeleteTask(ctx, mid.ID), models.ErrNotFound)
}

func TestMoveTask_ConcurrentMovesStayDense(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	var ids []int64
	for _, title := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		ids = append(ids, b.task(t, s, title, b.todo.ID, nil).ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			target := b.doing.ID
			if i%2 == 0 {
				target = b.done.ID
			}
			_, err := s.MoveTask(ctx, id, Placement{StatusID: target, Index: 0})
			errs <- err
		}(i, id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// bucketTitles asserts positions are exactly 0..n-1.
	assert.Len(t, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.doing.ID}), 4)
	assert.Len(t, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.done.ID}), 4)
	assert.Empty(t, bucketTitles(t, s, b.project.ID, models.Bucket{StatusID: b.todo.ID}))
}

func TestListTasks_Filters(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	sp, err := s.CreateSprint(ctx, b.project.ID, SprintInput{Name: "One"})
	require.NoError(t, err)
	inSprint := b.task(t, s, "sprint", b.doing.ID, &sp.ID)
	backlog := b.task(t, s, "backlog", b.todo.ID, nil)
	require.NoError(t, s.Assign(ctx, backlog.ID, b.owner.ID))

	all, err := s.ListTasks(ctx, b.project.ID, TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, backlog.ID, all[0].ID, "ordered by status position")

	onlySprint, err := s.ListTasks(ctx, b.project.ID, TaskFilter{SprintID: &sp.ID})
	require.NoError(t, err)
	require.Len(t, onlySprint, 1)
	assert.Equal(t, inSprint.ID, onlySprint[0].ID)

	onlyBacklog, err := s.ListTasks(ctx, b.project.ID, TaskFilter{Backlog: true})
	require.NoError(t, err)
	require.Len(t, onlyBacklog, 1)
	assert.Equal(t, backlog.ID, onlyBacklog[0].ID)

	mine, err := s.ListTasks(ctx, b.project.ID, TaskFilter{AssigneeID: &b.owner.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, backlog.ID, mine[0].ID)
}

func TestUpdateTask(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()
	task := b.task(t, s, "A", b.todo.ID, nil)

	title := "  Renamed "
	priority := models.PriorityUrgent
	got, err := s.UpdateTask(ctx, task.ID, TaskUpdate{Title: &title, Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, models.PriorityUrgent, got.Priority)
	assert.Equal(t, task.StatusID, got.StatusID)
	assert.Equal(t, task.Position, got.Position)

	bad := "whenever"
	_, err = s.UpdateTask(ctx, task.ID, TaskUpdate{Priority: &bad})
	assert.ErrorIs(t, err, models.ErrValidation)
}
