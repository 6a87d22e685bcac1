package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/query"

	"github.com/google/uuid"
)

// Storage keeps users, lists and tasks in process memory. Slices preserve
// insertion order so newest-first listings stay deterministic.
type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	lists []models.List
	tasks []models.Task
	now   func() time.Time
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		now:   time.Now,
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return errors.ErrUserAlreadyExists
		}
	}
	now := s.now()
	user.ID = uuid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByResetCode(_ context.Context, email, code string, now time.Time) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email && code != "" && user.ResetPasswordToken == code &&
			user.ResetPasswordExpires != nil && user.ResetPasswordExpires.After(now) {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; !exists {
		return errors.ErrUserNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && existing.Email == user.Email {
			return errors.ErrUserAlreadyExists
		}
	}
	user.UpdatedAt = s.now()
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[id]; !exists {
		return errors.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Storage) CreateList(_ context.Context, list *models.List) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	list.ID = uuid.New().String()
	list.CreatedAt = now
	list.UpdatedAt = now
	s.lists = append(s.lists, *list)
	return nil
}

func (s *Storage) GetLists(_ context.Context, userID string) ([]models.List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lists := []models.List{}
	for i := len(s.lists) - 1; i >= 0; i-- {
		if s.lists[i].UserID == userID {
			lists = append(lists, s.lists[i])
		}
	}
	return lists, nil
}

func (s *Storage) RenameList(_ context.Context, userID, id, title string) (*models.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.listIndex(userID, id)
	if i < 0 {
		return nil, errors.ErrListNotFound
	}
	s.lists[i].Title = title
	s.lists[i].UpdatedAt = s.now()
	list := s.lists[i]
	return &list, nil
}

func (s *Storage) DeleteList(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.listIndex(userID, id)
	if i < 0 {
		return errors.ErrListNotFound
	}
	s.lists = append(s.lists[:i], s.lists[i+1:]...)
	return nil
}

func (s *Storage) listIndex(userID, id string) int {
	for i := range s.lists {
		if s.lists[i].ID == id && s.lists[i].UserID == userID {
			return i
		}
	}
	return -1
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	task.ID = uuid.New().String()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Steps == nil {
		task.Steps = []models.Step{}
	}
	s.tasks = append(s.tasks, cloneTask(*task))
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, userID, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.taskIndex(userID, id)
	if i < 0 {
		return nil, errors.ErrTaskNotFound
	}
	task := cloneTask(s.tasks[i])
	return &task, nil
}

func (s *Storage) GetTasks(_ context.Context, userID string) ([]models.Task, error) {
	return s.collect(userID, func(*models.Task) bool { return true }), nil
}

func (s *Storage) UpdateTask(_ context.Context, userID, id string, patch *models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(userID, id)
	if i < 0 {
		return nil, errors.ErrTaskNotFound
	}
	patch.Apply(&s.tasks[i])
	s.tasks[i].UpdatedAt = s.now()
	task := cloneTask(s.tasks[i])
	return &task, nil
}

func (s *Storage) ToggleImportant(_ context.Context, userID, id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(userID, id)
	if i < 0 {
		return nil, errors.ErrTaskNotFound
	}
	s.tasks[i].IsImportant = !s.tasks[i].IsImportant
	s.tasks[i].UpdatedAt = s.now()
	task := cloneTask(s.tasks[i])
	return &task, nil
}

func (s *Storage) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(userID, id)
	if i < 0 {
		return errors.ErrTaskNotFound
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return nil
}

func (s *Storage) SearchTasks(_ context.Context, userID, q string) ([]models.Task, error) {
	return s.collect(userID, func(t *models.Task) bool {
		return query.MatchesText(t, q)
	}), nil
}

func (s *Storage) GetTasksDueBetween(_ context.Context, userID string, from, to time.Time, incompleteOnly bool) ([]models.Task, error) {
	tasks := s.collect(userID, func(t *models.Task) bool {
		if incompleteOnly && t.Completed {
			return false
		}
		return query.DueWithin(t, from, to)
	})
	query.SortByDueDate(tasks)
	return tasks, nil
}

// collect returns the owner's tasks accepted by keep, newest first.
func (s *Storage) collect(userID string, keep func(*models.Task) bool) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := []models.Task{}
	for i := len(s.tasks) - 1; i >= 0; i-- {
		t := &s.tasks[i]
		if t.UserID == userID && keep(t) {
			tasks = append(tasks, cloneTask(*t))
		}
	}
	return tasks
}

func (s *Storage) taskIndex(userID, id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id && s.tasks[i].UserID == userID {
			return i
		}
	}
	return -1
}

func cloneTask(t models.Task) models.Task {
	t.Steps = append([]models.Step{}, t.Steps...)
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	if t.List != nil {
		list := strings.Clone(*t.List)
		t.List = &list
	}
	return t
}
