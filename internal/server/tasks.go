package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mandor/internal/models"
	"mandor/internal/storage/sqlite"
)

type taskRequest struct {
	StatusID    *int64  `json:"status_id"`
	SprintID    *int64  `json:"sprint_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
}

type taskUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	StartDate   *string `json:"start_date"`
	DueDate     *string `json:"due_date"`
	ClearDates  bool    `json:"clear_dates"`
}

type moveRequest struct {
	StatusID int64  `json:"status_id" binding:"required"`
	SprintID *int64 `json:"sprint_id"`
	Index    int    `json:"index"`
}

type bucketOrderRequest struct {
	StatusID int64   `json:"status_id" binding:"required"`
	SprintID *int64  `json:"sprint_id"`
	IDs      []int64 `json:"ids"`
}

type assignRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// handleListTasks returns the project's tasks in board order.
// Optional filters: status_id, sprint_id, assignee_id and backlog=true.
func (s *Server) handleListTasks(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var filter sqlite.TaskFilter
	if filter.StatusID, ok = parseQueryID(c, "status_id"); !ok {
		return
	}
	if filter.SprintID, ok = parseQueryID(c, "sprint_id"); !ok {
		return
	}
	if filter.AssigneeID, ok = parseQueryID(c, "assignee_id"); !ok {
		return
	}
	filter.Backlog = c.Query("backlog") == "true"

	tasks, err := s.store.ListTasks(c.Request.Context(), project.ID, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask creates a task at the end of its bucket.
func (s *Server) handleCreateTask(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), sqlite.TaskInput{
		ProjectID:   project.ID,
		StatusID:    req.StatusID,
		SprintID:    req.SprintID,
		CreatorID:   currentUser(c).ID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		StartDate:   start,
		DueDate:     due,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleReorderTasks rewrites the order of one bucket from a full id list.
func (s *Server) handleReorderTasks(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var req bucketOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	bucket := models.Bucket{StatusID: req.StatusID, SprintID: req.SprintID}
	tasks, err := s.store.BulkReorder(c.Request.Context(), project.ID, bucket, req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}

	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	task, err = s.store.UpdateTask(c.Request.Context(), task.ID, sqlite.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		StartDate:   start,
		DueDate:     due,
		ClearDates:  req.ClearDates,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}
	if err := s.store.DeleteTask(c.Request.Context(), task.ID); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleMoveTask places a task at index within the target status and sprint.
// A null sprint_id targets the backlog.
func (s *Server) handleMoveTask(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	moved, err := s.store.MoveTask(c.Request.Context(), task.ID, sqlite.Placement{
		StatusID: req.StatusID,
		SprintID: req.SprintID,
		Index:    req.Index,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": moved})
}

func (s *Server) handleListAssignees(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}
	s.respondAssignees(c, http.StatusOK, task.ID)
}

// handleAssign adds a workspace member to the task. Repeating it is a no-op.
func (s *Server) handleAssign(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.Assign(c.Request.Context(), task.ID, req.UserID); err != nil {
		s.fail(c, err)
		return
	}
	s.respondAssignees(c, http.StatusOK, task.ID)
}

func (s *Server) handleUnassign(c *gin.Context) {
	task, ok := s.taskAccess(c)
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := s.store.Unassign(c.Request.Context(), task.ID, userID); err != nil {
		s.fail(c, err)
		return
	}
	s.respondAssignees(c, http.StatusOK, task.ID)
}

func (s *Server) respondAssignees(c *gin.Context, status int, taskID int64) {
	assignees, err := s.store.ListAssignees(c.Request.Context(), taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, status, gin.H{"assignees": assignees})
}
