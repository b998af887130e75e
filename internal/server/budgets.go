package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// budgetRequest amounts are integer minor units (cents).
type budgetRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type expenseRequest struct {
	UserID  *int64  `json:"user_id"`
	Title   string  `json:"title"`
	Amount  int64   `json:"amount"`
	SpentOn *string `json:"spent_on"`
}

func (s *Server) handleListBudgets(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	budgets, err := s.store.ListBudgets(c.Request.Context(), project.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"budgets": budgets})
}

// handleSetBudget sets a member's budget. Owners and admins only.
func (s *Server) handleSetBudget(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok || !s.requireProjectManager(c, project) {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	var req budgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	budget, err := s.store.SetBudget(c.Request.Context(), project.ID, userID, req.Amount, req.Currency)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"budget": budget})
}

func (s *Server) handleListExpenses(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	userID, ok := parseQueryID(c, "user_id")
	if !ok {
		return
	}
	expenses, err := s.store.ListExpenses(c.Request.Context(), project.ID, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"expenses": expenses})
}

// handleAddExpense records spending; user_id defaults to the caller. Recording
// for another member needs the owner or admin role.
func (s *Server) handleAddExpense(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}

	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	spentOn, err := parseDate(req.SpentOn)
	if err != nil {
		s.fail(c, err)
		return
	}
	var when time.Time
	if spentOn != nil {
		when = *spentOn
	}
	userID := currentUser(c).ID
	if req.UserID != nil && *req.UserID != userID {
		if !s.requireProjectManager(c, project) {
			return
		}
		userID = *req.UserID
	}

	expense, err := s.store.AddExpense(c.Request.Context(), project.ID, userID, req.Title, req.Amount, when)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"expense": expense})
}

func (s *Server) handleBudgetSummary(c *gin.Context) {
	project, ok := s.projectAccess(c)
	if !ok {
		return
	}
	lines, err := s.store.BudgetSummary(c.Request.Context(), project.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"summary": lines})
}
