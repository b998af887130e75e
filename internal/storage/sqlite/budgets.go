package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mandor/internal/models"
)

// SetBudget creates or replaces the budget of a member on a project.
func (s *Store) SetBudget(ctx context.Context, projectID, userID, amount int64, currency string) (models.MemberBudget, error) {
	if amount < 0 {
		return models.MemberBudget{}, invalid("budget must not be negative")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return models.MemberBudget{}, invalid("currency %q must be a 3-letter code", currency)
	}

	var b models.MemberBudget
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireProjectMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO project_member_budgets(project_id, user_id, amount, currency, updated_at) VALUES(?, ?, ?, ?, CURRENT_TIMESTAMP)
            ON CONFLICT(project_id, user_id) DO UPDATE SET amount = excluded.amount, currency = excluded.currency, updated_at = CURRENT_TIMESTAMP`,
			projectID, userID, amount, currency)
		if err != nil {
			return fmt.Errorf("upsert budget: %w", err)
		}
		return tx.QueryRowContext(ctx, `SELECT id, project_id, user_id, amount, currency, updated_at FROM project_member_budgets WHERE project_id = ? AND user_id = ?`,
			projectID, userID).Scan(&b.ID, &b.ProjectID, &b.UserID, &b.Amount, &b.Currency, &b.UpdatedAt)
	})
	if err != nil {
		return models.MemberBudget{}, err
	}
	return b, nil
}

// ListBudgets returns every member budget of a project.
func (s *Store) ListBudgets(ctx context.Context, projectID int64) ([]models.MemberBudget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, user_id, amount, currency, updated_at FROM project_member_budgets WHERE project_id = ? ORDER BY user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []models.MemberBudget{}
	for rows.Next() {
		var b models.MemberBudget
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.UserID, &b.Amount, &b.Currency, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// AddExpense records a spending entry of a member on a project.
func (s *Store) AddExpense(ctx context.Context, projectID, userID int64, title string, amount int64, spentOn time.Time) (models.Expense, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Expense{}, invalid("expense title must not be empty")
	}
	if amount <= 0 {
		return models.Expense{}, invalid("expense amount must be positive")
	}
	if spentOn.IsZero() {
		spentOn = time.Now()
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireProjectMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO project_expenses(project_id, user_id, title, amount, spent_on) VALUES(?, ?, ?, ?, ?)`,
			projectID, userID, title, amount, spentOn.UTC())
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return models.Expense{}, err
	}

	var e models.Expense
	err = s.db.QueryRowContext(ctx, `SELECT id, project_id, user_id, title, amount, spent_on, created_at FROM project_expenses WHERE id = ?`, id).
		Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Title, &e.Amount, &e.SpentOn, &e.CreatedAt)
	if err != nil {
		return models.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns a project's expenses, newest first, optionally for one member.
func (s *Store) ListExpenses(ctx context.Context, projectID int64, userID *int64) ([]models.Expense, error) {
	query := `SELECT id, project_id, user_id, title, amount, spent_on, created_at FROM project_expenses WHERE project_id = ?`
	args := []any{projectID}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY spent_on DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Title, &e.Amount, &e.SpentOn, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// BudgetSummary compares budget and spending per member. Members that spent
// without a budget appear with a zero budget.
func (s *Store) BudgetSummary(ctx context.Context, projectID int64) ([]models.BudgetLine, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT u.user_id,
               COALESCE(b.amount, 0),
               COALESCE((SELECT SUM(e.amount) FROM project_expenses e WHERE e.project_id = ? AND e.user_id = u.user_id), 0),
               COALESCE(b.currency, 'USD')
        FROM (SELECT user_id FROM project_member_budgets WHERE project_id = ?
              UNION SELECT user_id FROM project_expenses WHERE project_id = ?) u
        LEFT JOIN project_member_budgets b ON b.project_id = ? AND b.user_id = u.user_id
        ORDER BY u.user_id`, projectID, projectID, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("budget summary: %w", err)
	}
	defer rows.Close()

	lines := []models.BudgetLine{}
	for rows.Next() {
		var l models.BudgetLine
		if err := rows.Scan(&l.UserID, &l.Budget, &l.Spent, &l.Currency); err != nil {
			return nil, fmt.Errorf("scan budget line: %w", err)
		}
		l.Remaining = l.Budget - l.Spent
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func requireProjectMember(ctx context.Context, q queryer, projectID, userID int64) error {
	if _, err := getProject(ctx, q, projectID); err != nil {
		return err
	}
	member, err := isProjectMember(ctx, q, projectID, userID)
	if err != nil {
		return err
	}
	if !member {
		return invalid("user %d is not a member of the project workspace", userID)
	}
	return nil
}
