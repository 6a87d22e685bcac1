package db

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const queryTimeout = 15 * time.Second

const (
	userColumns = `id, name, email, password, avatar, reset_password_token, reset_password_expires, created_at, updated_at`
	listColumns = `id, user_id, title, created_at, updated_at`
	taskColumns = `id, user_id, title, completed, is_important, description, priority, due_date, steps, list_id, created_at, updated_at`

	qCreateUser = `INSERT INTO users (id, name, email, password, avatar) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	qGetUserByID        = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	qGetUserByEmail     = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	qGetUserByResetCode = `SELECT ` + userColumns + ` FROM users
		WHERE email = $1 AND reset_password_token = $2 AND reset_password_token <> '' AND reset_password_expires > $3`
	qUpdateUser = `UPDATE users SET name = $1, email = $2, password = $3, avatar = $4,
		reset_password_token = $5, reset_password_expires = $6, updated_at = now()
		WHERE id = $7 RETURNING updated_at`
	qDeleteUser = `DELETE FROM users WHERE id = $1`

	qCreateList = `INSERT INTO lists (id, user_id, title) VALUES ($1, $2, $3) RETURNING created_at, updated_at`
	qGetLists   = `SELECT ` + listColumns + ` FROM lists WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	qRenameList = `UPDATE lists SET title = $1, updated_at = now() WHERE id = $2 AND user_id = $3
		RETURNING ` + listColumns
	qDeleteList = `DELETE FROM lists WHERE id = $1 AND user_id = $2`

	qCreateTask = `INSERT INTO tasks (id, user_id, title, completed, is_important, description, priority, due_date, steps, list_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at, updated_at`
	qGetTaskByID     = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	qGetTasks        = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	qToggleImportant = `UPDATE tasks SET is_important = NOT is_important, updated_at = now()
		WHERE id = $1 AND user_id = $2 RETURNING ` + taskColumns
	qDeleteTask  = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	qSearchTasks = `SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = $1 AND (title ILIKE $2 OR description ILIKE $2)
		ORDER BY created_at DESC, id DESC`
	qTasksDueBetween = `SELECT ` + taskColumns + ` FROM tasks
		WHERE user_id = $1 AND due_date >= $2 AND due_date <= $3 AND (NOT $4::boolean OR NOT completed)
		ORDER BY due_date ASC, created_at DESC`
)

// taskFieldColumns maps patch field names to task columns.
var taskFieldColumns = map[string]string{
	"title":       "title",
	"completed":   "completed",
	"isImportant": "is_important",
	"description": "description",
	"priority":    "priority",
	"dueDate":     "due_date",
	"steps":       "steps",
	"list":        "list_id",
}

// Storage persists users, lists and tasks in PostgreSQL.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Failed to configure database pool:", err)
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Println("[ERROR] Failed to connect to database:", err)
		return nil, err
	}
	log.Println("[SUCCESS] Database connection established")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	id := uuid.New().String()
	err := s.pool.QueryRow(ctx, qCreateUser, id, user.Name, user.Email, user.Password, user.Avatar).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Failed to create user:", err)
		return err
	}
	user.ID = id
	log.Println("[SUCCESS] User created:", user.ID)
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Avatar,
		&user.ResetPasswordToken, &user.ResetPasswordExpires, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Failed to read user:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, qGetUserByID, id))
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, qGetUserByEmail, email))
}

func (s *Storage) GetUserByResetCode(ctx context.Context, email, code string, now time.Time) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanUser(s.pool.QueryRow(ctx, qGetUserByResetCode, email, code, now))
}

func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	err := s.pool.QueryRow(ctx, qUpdateUser, user.Name, user.Email, user.Password, user.Avatar,
		user.ResetPasswordToken, user.ResetPasswordExpires, user.ID).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return errors.ErrUserAlreadyExists
		}
		log.Println("[ERROR] Failed to update user:", err)
		return err
	}
	log.Println("[SUCCESS] User updated:", user.ID)
	return nil
}

func (s *Storage) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := s.pool.Exec(ctx, qDeleteUser, id)
	if err != nil {
		log.Println("[ERROR] Failed to delete user:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrUserNotFound
	}
	log.Println("[SUCCESS] User deleted:", id)
	return nil
}

func (s *Storage) CreateList(ctx context.Context, list *models.List) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	id := uuid.New().String()
	if err := s.pool.QueryRow(ctx, qCreateList, id, list.UserID, list.Title).Scan(&list.CreatedAt, &list.UpdatedAt); err != nil {
		log.Println("[ERROR] Failed to create list:", err)
		return err
	}
	list.ID = id
	return nil
}

func scanList(row pgx.Row) (*models.List, error) {
	list := &models.List{}
	if err := row.Scan(&list.ID, &list.UserID, &list.Title, &list.CreatedAt, &list.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrListNotFound
		}
		return nil, err
	}
	return list, nil
}

func (s *Storage) GetLists(ctx context.Context, userID string) ([]models.List, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, qGetLists, userID)
	if err != nil {
		log.Println("[ERROR] Failed to query lists:", err)
		return nil, err
	}
	defer rows.Close()

	lists := []models.List{}
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, *list)
	}
	return lists, rows.Err()
}

func (s *Storage) RenameList(ctx context.Context, userID, id, title string) (*models.List, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanList(s.pool.QueryRow(ctx, qRenameList, title, id, userID))
}

func (s *Storage) DeleteList(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := s.pool.Exec(ctx, qDeleteList, id, userID)
	if err != nil {
		log.Println("[ERROR] Failed to delete list:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrListNotFound
	}
	return nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if task.Steps == nil {
		task.Steps = []models.Step{}
	}
	id := uuid.New().String()
	err := s.pool.QueryRow(ctx, qCreateTask, id, task.UserID, task.Title, task.Completed, task.IsImportant,
		task.Description, string(task.Priority), task.DueDate, task.Steps, task.List).
		Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		log.Println("[ERROR] Failed to create task:", err)
		return err
	}
	task.ID = id
	log.Println("[SUCCESS] Task created:", task.ID)
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	var priority string
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Completed, &task.IsImportant,
		&task.Description, &priority, &task.DueDate, &task.Steps, &task.List, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, err
	}
	task.Priority = models.Priority(priority)
	if task.Steps == nil {
		task.Steps = []models.Step{}
	}
	return task, nil
}

func (s *Storage) queryTasks(ctx context.Context, sql string, args ...any) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		log.Println("[ERROR] Failed to query tasks:", err)
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Println("[ERROR] Failed to read task:", err)
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (s *Storage) GetTaskByID(ctx context.Context, userID, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanTask(s.pool.QueryRow(ctx, qGetTaskByID, id, userID))
}

func (s *Storage) GetTasks(ctx context.Context, userID string) ([]models.Task, error) {
	return s.queryTasks(ctx, qGetTasks, userID)
}

// UpdateTask writes only the columns named by the patch.
func (s *Storage) UpdateTask(ctx context.Context, userID, id string, patch *models.TaskPatch) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	sql, args := buildTaskUpdate(userID, id, patch.Changes())
	task, err := scanTask(s.pool.QueryRow(ctx, sql, args...))
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		log.Println("[ERROR] Failed to update task:", err)
	}
	return task, err
}

func buildTaskUpdate(userID, id string, changes []models.Change) (string, []any) {
	sets := make([]string, 0, len(changes)+1)
	args := make([]any, 0, len(changes)+2)
	for _, c := range changes {
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", taskFieldColumns[c.Field], len(args)))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id, userID)
	sql := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), taskColumns)
	return sql, args
}

func (s *Storage) ToggleImportant(ctx context.Context, userID, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return scanTask(s.pool.QueryRow(ctx, qToggleImportant, id, userID))
}

func (s *Storage) DeleteTask(ctx context.Context, userID, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	ct, err := s.pool.Exec(ctx, qDeleteTask, id, userID)
	if err != nil {
		log.Println("[ERROR] Failed to delete task:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Task deleted:", id)
	return nil
}

func (s *Storage) SearchTasks(ctx context.Context, userID, q string) ([]models.Task, error) {
	return s.queryTasks(ctx, qSearchTasks, userID, "%"+escapeLike(q)+"%")
}

func (s *Storage) GetTasksDueBetween(ctx context.Context, userID string, from, to time.Time, incompleteOnly bool) ([]models.Task, error) {
	return s.queryTasks(ctx, qTasksDueBetween, userID, from, to, incompleteOnly)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes q match literally inside an ILIKE pattern.
func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}
