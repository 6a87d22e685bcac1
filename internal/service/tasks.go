package service

import (
	"context"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
	"taskflow/internal/query"
)

// TaskService runs task operations scoped to an owner. Day boundaries are
// computed in loc.
type TaskService struct {
	tasks TaskRepository
	loc   *time.Location
	now   func() time.Time
}

func NewTaskService(tasks TaskRepository, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{tasks: tasks, loc: loc, now: time.Now}
}

func (s *TaskService) Create(ctx context.Context, userID string, req *models.CreateTaskRequest) (*models.Task, error) {
	task, err := req.NewTask(userID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.tasks.GetTaskByID(ctx, userID, id)
}

func (s *TaskService) List(ctx context.Context, userID string) ([]models.Task, error) {
	return s.tasks.GetTasks(ctx, userID)
}

// Update applies only the fields present in patch.
func (s *TaskService) Update(ctx context.Context, userID, id string, patch *models.TaskPatch) (*models.Task, error) {
	if err := patch.Normalize(); err != nil {
		return nil, err
	}
	return s.tasks.UpdateTask(ctx, userID, id, patch)
}

func (s *TaskService) ToggleImportant(ctx context.Context, userID, id string) (*models.Task, error) {
	return s.tasks.ToggleImportant(ctx, userID, id)
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	return s.tasks.DeleteTask(ctx, userID, id)
}

func (s *TaskService) Search(ctx context.Context, userID, q string) ([]models.Task, error) {
	return s.tasks.SearchTasks(ctx, userID, strings.TrimSpace(q))
}

// Upcoming returns incomplete tasks due from today's midnight through the
// end of the day `days` days ahead, soonest first.
func (s *TaskService) Upcoming(ctx context.Context, userID string, days int) ([]models.Task, error) {
	from, to := query.UpcomingWindow(s.now().In(s.loc), days)
	return s.tasks.GetTasksDueBetween(ctx, userID, from, to, true)
}

func (s *TaskService) Range(ctx context.Context, userID, start, end string) ([]models.Task, error) {
	from, to, err := query.RangeWindow(start, end, s.loc)
	if err != nil {
		return nil, err
	}
	return s.tasks.GetTasksDueBetween(ctx, userID, from, to, false)
}

// ViewRequest carries the raw view parameters of a listing request.
type ViewRequest struct {
	Filter string `form:"filter"`
	List   string `form:"list"`
	Text   string `form:"q"`
	Sort   string `form:"sort"`
}

func (s *TaskService) View(ctx context.Context, userID string, req ViewRequest) ([]models.Task, error) {
	filter, err := query.ParseFilter(req.Filter)
	if err != nil {
		return nil, err
	}
	view := query.View{
		Filter: filter,
		ListID: strings.TrimSpace(req.List),
		Text:   strings.TrimSpace(req.Text),
	}
	switch strings.ToLower(strings.TrimSpace(req.Sort)) {
	case "", "newest":
	case "today":
		view.Today = true
	default:
		return nil, errors.ErrInvalidSort
	}

	tasks, err := s.tasks.GetTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	return query.Apply(tasks, view), nil
}
