package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type orderRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handleListStatuses(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	statuses, err := s.store.ListStatuses(c.Request.Context(), project.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statuses": statuses})
}

func (s *Server) handleCreateStatus(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	status, err := s.store.CreateStatus(c.Request.Context(), project.ID, req.Name, req.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"status": status})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	statusID, ok := parseID(c, "statusId")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	status, err := s.store.UpdateStatus(c.Request.Context(), project.ID, statusID, req.Name, req.Color)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": status})
}

// handleReorderStatuses takes the complete desired column order.
func (s *Server) handleReorderStatuses(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	statuses, err := s.store.ReorderStatuses(c.Request.Context(), project.ID, req.IDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statuses": statuses})
}

// handleDeleteStatus removes an unused status; 409 while tasks still use it.
func (s *Server) handleDeleteStatus(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	statusID, ok := parseID(c, "statusId")
	if !ok {
		return
	}
	if err := s.store.DeleteStatus(c.Request.Context(), project.ID, statusID); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
