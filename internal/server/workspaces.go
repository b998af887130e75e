package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mandor/internal/models"
)

type workspaceRequest struct {
	Name string `json:"name" binding:"required"`
}

type memberRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

// handleListWorkspaces returns the workspaces of the caller.
func (s *Server) handleListWorkspaces(c *gin.Context) {
	workspaces, err := s.store.ListWorkspacesForUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"workspaces": workspaces})
}

// handleCreateWorkspace creates a workspace owned by the caller.
func (s *Server) handleCreateWorkspace(c *gin.Context) {
	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ws, err := s.store.CreateWorkspace(c.Request.Context(), req.Name, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"workspace": ws})
}

// handleGetWorkspace returns a single workspace the caller belongs to.
func (s *Server) handleGetWorkspace(c *gin.Context) {
	ws, _, ok := s.workspaceAccess(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"workspace": ws})
}

// handleListMembers returns the members of a workspace.
func (s *Server) handleListMembers(c *gin.Context) {
	ws, _, ok := s.workspaceAccess(c)
	if !ok {
		return
	}
	members, err := s.store.ListMembers(c.Request.Context(), ws.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"members": members})
}

// handleAddMember adds a user to the workspace. Only owners and admins may do so.
func (s *Server) handleAddMember(c *gin.Context) {
	ws, caller, ok := s.workspaceAccess(c)
	if !ok {
		return
	}
	if !requireManager(c, caller) {
		return
	}

	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	member, err := s.store.AddMember(c.Request.Context(), ws.ID, req.UserID, req.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"member": member})
}

// workspaceAccess loads the workspace named by :id together with the caller's membership.
func (s *Server) workspaceAccess(c *gin.Context) (models.Workspace, models.WorkspaceMember, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return models.Workspace{}, models.WorkspaceMember{}, false
	}
	ws, err := s.store.GetWorkspace(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return models.Workspace{}, models.WorkspaceMember{}, false
	}
	member, err := s.store.GetMember(c.Request.Context(), ws.ID, currentUser(c).ID)
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this workspace"})
			return models.Workspace{}, models.WorkspaceMember{}, false
		}
		s.fail(c, err)
		return models.Workspace{}, models.WorkspaceMember{}, false
	}
	return ws, member, true
}

// requireManager answers 403 unless the member is a workspace owner or admin.
func requireManager(c *gin.Context, member models.WorkspaceMember) bool {
	if member.Role != models.RoleOwner && member.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "requires the owner or admin role"})
		return false
	}
	return true
}

// requireProjectManager checks the caller's role in the project's workspace.
func (s *Server) requireProjectManager(c *gin.Context, project models.Project) bool {
	member, err := s.store.GetMember(c.Request.Context(), project.WorkspaceID, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return false
	}
	return requireManager(c, member)
}
