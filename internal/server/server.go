package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"mandor/internal/auth"
	"mandor/internal/models"
	"mandor/internal/storage/sqlite"
)

// Options tunes optional parts of the HTTP server.
type Options struct {
	StaticDir   string
	CORSOrigins []string
}

// Server provides HTTP handlers for the Mandor backend.
type Server struct {
	engine    *gin.Engine
	store     *sqlite.Store
	tokens    *auth.Tokens
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, tokens *auth.Tokens, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	srv := &Server{
		engine:    router,
		store:     store,
		tokens:    tokens,
		logger:    logger,
		staticDir: opts.StaticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/auth/register", s.handleRegister)
		api.POST("/auth/login", s.handleLogin)
	}

	private := api.Group("", auth.Middleware(s.tokens, s.store))
	{
		private.GET("/auth/me", s.handleMe)

		workspaces := private.Group("/workspaces")
		{
			workspaces.GET("", s.handleListWorkspaces)
			workspaces.POST("", s.handleCreateWorkspace)
			workspaces.GET(":id", s.handleGetWorkspace)
			workspaces.GET(":id/members", s.handleListMembers)
			workspaces.POST(":id/members", s.handleAddMember)
			workspaces.GET(":id/projects", s.handleListProjects)
			workspaces.POST(":id/projects", s.handleCreateProject)
		}

		projects := private.Group("/projects")
		{
			projects.GET(":id", s.handleGetProject)
			projects.PUT(":id", s.handleUpdateProject)
			projects.DELETE(":id", s.handleDeleteProject)

			projects.GET(":id/statuses", s.handleListStatuses)
			projects.POST(":id/statuses", s.handleCreateStatus)
			projects.PUT(":id/statuses/order", s.handleReorderStatuses)
			projects.PUT(":id/statuses/:statusId", s.handleUpdateStatus)
			projects.DELETE(":id/statuses/:statusId", s.handleDeleteStatus)

			projects.GET(":id/sprints", s.handleListSprints)
			projects.POST(":id/sprints", s.handleCreateSprint)
			projects.POST(":id/sprints/:sprintId/activate", s.handleActivateSprint)
			projects.POST(":id/sprints/:sprintId/complete", s.handleCompleteSprint)
			projects.DELETE(":id/sprints/:sprintId", s.handleDeleteSprint)

			projects.GET(":id/tasks", s.handleListTasks)
			projects.POST(":id/tasks", s.handleCreateTask)
			projects.PUT(":id/tasks/order", s.handleReorderTasks)

			projects.GET(":id/messages", s.handleListMessages)
			projects.POST(":id/messages", s.handlePostMessage)

			projects.GET(":id/budgets", s.handleListBudgets)
			projects.PUT(":id/budgets/:userId", s.handleSetBudget)
			projects.GET(":id/expenses", s.handleListExpenses)
			projects.POST(":id/expenses", s.handleAddExpense)
			projects.GET(":id/budget-summary", s.handleBudgetSummary)
		}

		tasks := private.Group("/tasks")
		{
			tasks.GET(":id", s.handleGetTask)
			tasks.PUT(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.POST(":id/move", s.handleMoveTask)
			tasks.GET(":id/assignees", s.handleListAssignees)
			tasks.POST(":id/assignees", s.handleAssign)
			tasks.DELETE(":id/assignees/:userId", s.handleUnassign)
		}

		private.GET("/messages/:id/replies", s.handleListReplies)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.respondError(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// parseQueryID reads an optional numeric query parameter.
func parseQueryID(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return nil, false
	}
	return &id, true
}

// statusFor maps storage error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail responds with the status matching the error kind.
func (s *Server) fail(c *gin.Context, err error) {
	s.respondError(c, statusFor(err), err)
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error()))
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// currentUser returns the authenticated user; the auth middleware guarantees it exists.
func currentUser(c *gin.Context) models.User {
	user, _ := auth.CurrentUser(c)
	return user
}

// projectAccess loads the project named by the :id parameter and checks that
// the caller belongs to its workspace.
func (s *Server) projectAccess(c *gin.Context) (models.Project, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return models.Project{}, false
	}
	project, err := s.store.GetProject(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return models.Project{}, false
	}
	if !s.checkProjectMember(c, project.ID) {
		return models.Project{}, false
	}
	return project, true
}

// taskAccess loads the task named by the :id parameter and checks that the
// caller belongs to its project's workspace.
func (s *Server) taskAccess(c *gin.Context) (models.Task, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return models.Task{}, false
	}
	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return models.Task{}, false
	}
	if !s.checkProjectMember(c, task.ProjectID) {
		return models.Task{}, false
	}
	return task, true
}

func (s *Server) checkProjectMember(c *gin.Context, projectID int64) bool {
	member, err := s.store.IsProjectMember(c.Request.Context(), projectID, currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a member of this workspace"})
		return false
	}
	return true
}

// parseDate accepts YYYY-MM-DD or RFC 3339 timestamps.
func parseDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", *raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q must be YYYY-MM-DD or RFC 3339", models.ErrValidation, *raw)
	}
	return &t, nil
}
