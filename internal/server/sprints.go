package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mandor/internal/models"
	"mandor/internal/storage/sqlite"
)

type sprintRequest struct {
	Name      string  `json:"name"`
	Goal      string  `json:"goal"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

func (s *Server) handleListSprints(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	sprints, err := s.store.ListSprints(c.Request.Context(), project.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprints": sprints})
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	var req sprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.fail(c, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		s.fail(c, err)
		return
	}

	sprint, err := s.store.CreateSprint(c.Request.Context(), project.ID, sqlite.SprintInput{
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"sprint": sprint})
}

// handleActivateSprint starts a sprint; 409 when another one is active.
func (s *Server) handleActivateSprint(c *gin.Context) {
	s.transitionSprint(c, s.store.ActivateSprint)
}

// handleCompleteSprint closes a sprint; its tasks stay attached.
func (s *Server) handleCompleteSprint(c *gin.Context) {
	s.transitionSprint(c, s.store.CompleteSprint)
}

func (s *Server) transitionSprint(c *gin.Context, transition func(ctx context.Context, projectID, sprintID int64) (models.Sprint, error)) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	sprintID, ok := parseID(c, "sprintId")
	if !ok {
		return
	}
	sprint, err := transition(c.Request.Context(), project.ID, sprintID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"sprint": sprint})
}

// handleDeleteSprint removes a sprint and returns its tasks to the backlog.
func (s *Server) handleDeleteSprint(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	sprintID, ok := parseID(c, "sprintId")
	if !ok {
		return
	}
	if err := s.store.DeleteSprint(c.Request.Context(), project.ID, sprintID); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
