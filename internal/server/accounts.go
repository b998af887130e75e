package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mandor/internal/auth"
	"mandor/internal/models"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleRegister creates an account and returns a session token.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		s.fail(c, err)
		return
	}

	user, err := s.store.CreateUser(c.Request.Context(), req.Name, req.Email, hash)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.issueToken(c, http.StatusCreated, user)
}

// handleLogin exchanges credentials for a session token.
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := s.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.fail(c, err)
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	s.issueToken(c, http.StatusOK, user)
}

// handleMe returns the authenticated user.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"user": currentUser(c)})
}

func (s *Server) issueToken(c *gin.Context, status int, user models.User) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, status, gin.H{"token": token, "user": user})
}
