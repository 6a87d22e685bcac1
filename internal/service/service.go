// Package service holds the owner-scoped operations behind the HTTP API.
package service

import (
	"context"
	"fmt"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/go-playground/validator"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetCode(ctx context.Context, email, code string, now time.Time) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type ListRepository interface {
	CreateList(ctx context.Context, list *models.List) error
	GetLists(ctx context.Context, userID string) ([]models.List, error)
	RenameList(ctx context.Context, userID, id, title string) (*models.List, error)
	DeleteList(ctx context.Context, userID, id string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTaskByID(ctx context.Context, userID, id string) (*models.Task, error)
	GetTasks(ctx context.Context, userID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch *models.TaskPatch) (*models.Task, error)
	ToggleImportant(ctx context.Context, userID, id string) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	SearchTasks(ctx context.Context, userID, q string) ([]models.Task, error)
	GetTasksDueBetween(ctx context.Context, userID string, from, to time.Time, incompleteOnly bool) ([]models.Task, error)
}

// Repository is implemented by every storage backend.
type Repository interface {
	UserRepository
	ListRepository
	TaskRepository
}

var validate = validator.New()

// validationError maps the first failed field to a domain error.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", errors.ErrBadRequest, err)
	}
	for _, verr := range verrs {
		switch verr.Field() {
		case "Name":
			return errors.ErrInvalidName
		case "Email":
			return errors.ErrInvalidEmail
		case "Password", "NewPassword":
			if verr.Tag() == "required" {
				return errors.ErrMissingPasswords
			}
			return errors.ErrPasswordTooShort
		case "Code":
			return errors.ErrInvalidResetCode
		case "Title":
			return errors.ErrInvalidTitle
		}
	}
	return errors.ErrValidationFailed
}
