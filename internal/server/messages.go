package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mandor/internal/storage/sqlite"
)

type messageRequest struct {
	TaskID     *int64 `json:"task_id"`
	ReplyToID  *int64 `json:"reply_to_id"`
	Content    string `json:"content"`
	Attachment string `json:"attachment"`
}

// handleListMessages returns the latest page of project chat, optionally
// narrowed to one task. before_id pages back to older messages.
func (s *Server) handleListMessages(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	filter := sqlite.MessageFilter{}
	if filter.TaskID, ok = parseQueryID(c, "task_id"); !ok {
		return
	}
	if filter.BeforeID, ok = parseQueryID(c, "before_id"); !ok {
		return
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))

	messages, err := s.store.ListMessages(c.Request.Context(), project.ID, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"messages": messages})
}

// handlePostMessage stores a message authored by the caller. The content is
// kept as sent; clients encrypt it.
func (s *Server) handlePostMessage(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	message, err := s.store.PostMessage(c.Request.Context(), sqlite.MessageInput{
		ProjectID:  project.ID,
		TaskID:     req.TaskID,
		AuthorID:   currentUser(c).ID,
		ReplyToID:  req.ReplyToID,
		Content:    req.Content,
		Attachment: req.Attachment,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"message": message})
}

func (s *Server) handleListReplies(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	parent, err := s.store.GetMessage(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !s.checkProjectMember(c, parent.ProjectID) {
		return
	}

	replies, err := s.store.ListReplies(c.Request.Context(), parent.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"replies": replies})
}
