package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mandor/internal/storage/sqlite"
)

type projectRequest struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	SeedStatuses *bool  `json:"seed_statuses"`
}

// handleListProjects returns all projects of a workspace.
func (s *Server) handleListProjects(c *gin.Context) {
	ws, _, ok := s.workspaceAccess(c)
	if !ok {
		return
	}
	projects, err := s.store.ListProjects(c.Request.Context(), ws.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a new project entity.
func (s *Server) handleCreateProject(c *gin.Context) {
	ws, _, ok := s.workspaceAccess(c)
	if !ok {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	seed := req.SeedStatuses == nil || *req.SeedStatuses
	project, err := s.store.CreateProject(c.Request.Context(), sqlite.ProjectInput{
		WorkspaceID:  ws.ID,
		Key:          req.Key,
		Name:         req.Name,
		Description:  req.Description,
		CreatedBy:    currentUser(c).ID,
		SeedStatuses: seed,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleGetProject returns a project with its board metadata.
func (s *Server) handleGetProject(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleUpdateProject renames or re-describes an existing project.
func (s *Server) handleUpdateProject(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	project, err := s.store.UpdateProject(c.Request.Context(), project.ID, req.Name, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project})
}

// handleDeleteProject removes a project and all related tasks. Owners and
// admins only.
func (s *Server) handleDeleteProject(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok || !s.requireProjectManager(c, project) {
		return
	}
	if err := s.store.DeleteProject(c.Request.Context(), project.ID); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
