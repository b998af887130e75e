package models

import "time"

// User is an account that can own workspaces and be assigned to tasks.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Workspace is the tenant boundary grouping projects and members.
type Workspace struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Workspace member roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRoles enumerates the roles a workspace member may hold.
var ValidRoles = map[string]struct{}{
	RoleOwner:  {},
	RoleAdmin:  {},
	RoleMember: {},
}

// WorkspaceMember links a user to a workspace with a role.
type WorkspaceMember struct {
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Project groups statuses, sprints and tasks inside a workspace.
type Project struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Status is one workflow column of a project board.
type Status struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Position  int64  `json:"position"`
}

// Sprint lifecycle states.
const (
	SprintPlanning  = "planning"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

// Sprint is a time-boxed iteration of a project.
type Sprint struct {
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Status    string     `json:"status"`
	Position  int64      `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidPriorities enumerates the priorities a task may carry.
var ValidPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}

// Task represents a single card on the board. A nil SprintID means backlog.
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	StatusID    int64      `json:"status_id"`
	SprintID    *int64     `json:"sprint_id"`
	CreatorID   int64      `json:"creator_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	StartDate   *time.Time `json:"start_date"`
	DueDate     *time.Time `json:"due_date"`
	Position    int64      `json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Bucket identifies the tasks sharing a status and sprint within a project.
type Bucket struct {
	StatusID int64  `json:"status_id"`
	SprintID *int64 `json:"sprint_id"`
}

// Bucket returns the bucket the task currently sits in.
func (t Task) Bucket() Bucket {
	return Bucket{StatusID: t.StatusID, SprintID: t.SprintID}
}

// Assignee is a user assigned to a task.
type Assignee struct {
	TaskID     int64     `json:"task_id"`
	UserID     int64     `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Message is a chat entry of a project, optionally bound to a task.
// Content is ciphertext produced by the client and stored as-is.
type Message struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	TaskID     *int64    `json:"task_id"`
	AuthorID   int64     `json:"author_id"`
	ReplyToID  *int64    `json:"reply_to_id"`
	Content    string    `json:"content"`
	Attachment string    `json:"attachment"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemberBudget is the spending allowance of one member on a project, in minor units.
type MemberBudget struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expense is a single spending entry of a member on a project, in minor units.
type Expense struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Amount    int64     `json:"amount"`
	SpentOn   time.Time `json:"spent_on"`
	CreatedAt time.Time `json:"created_at"`
}

// BudgetLine summarises budget against spending for one member.
type BudgetLine struct {
	UserID    int64  `json:"user_id"`
	Budget    int64  `json:"budget"`
	Spent     int64  `json:"spent"`
	Remaining int64  `json:"remaining"`
	Currency  string `json:"currency"`
}
