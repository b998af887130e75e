package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandor/internal/models"
)

func TestPostMessage_Thread(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()
	task := b.task(t, s, "A", b.todo.ID, nil)

	root, err := s.PostMessage(ctx, MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, Content: "U2FsdGVkX1+root"})
	require.NoError(t, err)
	assert.Nil(t, root.ReplyToID)

	reply, err := s.PostMessage(ctx, MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, ReplyToID: &root.ID, TaskID: &task.ID, Content: "U2FsdGVkX1+reply"})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, root.ID, *reply.ReplyToID)
	assert.Equal(t, "U2FsdGVkX1+reply", reply.Content, "ciphertext is stored verbatim")

	replies, err := s.ListReplies(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, reply.ID, replies[0].ID)

	all, err := s.ListMessages(ctx, b.project.ID, MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forTask, err := s.ListMessages(ctx, b.project.ID, MessageFilter{TaskID: &task.ID})
	require.NoError(t, err)
	require.Len(t, forTask, 1)
	assert.Equal(t, reply.ID, forTask[0].ID)
}

func TestPostMessage_Validation(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	other := setupBoard(t, s)
	ctx := context.Background()

	foreign, err := s.PostMessage(ctx, MessageInput{ProjectID: other.project.ID, AuthorID: other.owner.ID, Content: "x"})
	require.NoError(t, err)
	foreignTask := other.task(t, s, "F", other.todo.ID, nil)
	outsider := createUser(t, s, "outsider")
	missing := int64(9999)

	tests := []struct {
		name string
		in   MessageInput
		want error
	}{
		{"empty", MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID}, models.ErrValidation},
		{"outsider", MessageInput{ProjectID: b.project.ID, AuthorID: outsider.ID, Content: "x"}, models.ErrValidation},
		{"reply across projects", MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, ReplyToID: &foreign.ID, Content: "x"}, models.ErrValidation},
		{"task across projects", MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, TaskID: &foreignTask.ID, Content: "x"}, models.ErrValidation},
		{"missing parent", MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, ReplyToID: &missing, Content: "x"}, models.ErrNotFound},
		{"missing project", MessageInput{ProjectID: missing, AuthorID: b.owner.ID, Content: "x"}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.PostMessage(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPostMessage_AttachmentOnly(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)

	m, err := s.PostMessage(context.Background(), MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, Attachment: "uploads/brief.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/brief.pdf", m.Attachment)
}

func TestDeleteTask_KeepsMessages(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()
	task := b.task(t, s, "A", b.todo.ID, nil)

	m, err := s.PostMessage(ctx, MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, TaskID: &task.ID, Content: "x"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteTask(ctx, task.ID))

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TaskID)
}

func TestListMessages_LatestPage(t *testing.T) {
	s := setupTestStore(t)
	b := setupBoard(t, s)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 120; i++ {
		m, err := s.PostMessage(ctx, MessageInput{ProjectID: b.project.ID, AuthorID: b.owner.ID, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	page, err := s.ListMessages(ctx, b.project.ID, MessageFilter{})
	require.NoError(t, err)
	require.Len(t, page, 100)
	assert.Equal(t, "m20", page[0].Content)
	assert.Equal(t, "m119", page[99].Content)

	older, err := s.ListMessages(ctx, b.project.ID, MessageFilter{BeforeID: &page[0].ID, Limit: 50})
	require.NoError(t, err)
	require.Len(t, older, 20)
	assert.Equal(t, ids[0], older[0].ID)
	assert.Equal(t, "m19", older[19].Content)

	small, err := s.ListMessages(ctx, b.project.ID, MessageFilter{Limit: 3})
	require.NoError(t, err)
	require.Len(t, small, 3)
	assert.Equal(t, []int64{ids[117], ids[118], ids[119]}, []int64{small[0].ID, small[1].ID, small[2].ID})
}
