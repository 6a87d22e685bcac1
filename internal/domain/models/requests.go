package models

import (
	"encoding/json"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" form:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" form:"email" validate:"omitempty,email"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

type ListRequest struct {
	Title string `json:"title" validate:"required,max=100"`
}

type CreateTaskRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Completed   *bool     `json:"completed"`
	IsImportant *bool     `json:"isImportant"`
	Priority    *Priority `json:"priority"`
	DueDate     *Date     `json:"dueDate"`
	Steps       []Step    `json:"steps"`
	List        *string   `json:"list"`
}

// NewTask builds a task owned by userID, filling documented defaults for
// every field the request leaves out.
func (r *CreateTaskRequest) NewTask(userID string) (*Task, error) {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		return nil, errors.ErrInvalidTitle
	}
	task := &Task{
		UserID:   userID,
		Title:    title,
		Priority: PriorityMedium,
		Steps:    []Step{},
		List:     normalizeList(r.List),
	}
	if r.DueDate != nil && !r.DueDate.IsZero() {
		due := r.DueDate.Time
		task.DueDate = &due
	}
	if r.Description != nil {
		task.Description = *r.Description
	}
	if r.Completed != nil {
		task.Completed = *r.Completed
	}
	if r.IsImportant != nil {
		task.IsImportant = *r.IsImportant
	}
	if r.Priority != nil && *r.Priority != "" {
		if !r.Priority.Valid() {
			return nil, errors.ErrInvalidPriority
		}
		task.Priority = *r.Priority
	}
	if r.Steps != nil {
		task.Steps = append([]Step{}, r.Steps...)
	}
	return task, nil
}

// Date is a due date as sent by clients: an RFC 3339 timestamp or a bare
// YYYY-MM-DD date, read as UTC midnight. An empty string decodes to the
// zero time.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: t}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.ErrInvalidDate
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		d.Time = t
		return nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		d.Time = t
		return nil
	}
	return errors.ErrInvalidDate
}

// Optional distinguishes a field missing from a JSON document from one
// explicitly set to null.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// TaskPatch is a partial update. Only fields with Set are applied.
type TaskPatch struct {
	Title       Optional[string]    `json:"title"`
	Completed   Optional[bool]      `json:"completed"`
	IsImportant Optional[bool]      `json:"isImportant"`
	Description Optional[string]    `json:"description"`
	Priority    Optional[Priority]  `json:"priority"`
	DueDate     Optional[Date]      `json:"dueDate"`
	Steps       Optional[[]Step]    `json:"steps"`
	List        Optional[string]    `json:"list"`
}

// Change is a single field assignment produced by a patch. Field names
// match the JSON document keys.
type Change struct {
	Field string
	Value any
}

// Normalize trims and validates the fields present in the patch.
func (p *TaskPatch) Normalize() error {
	for _, o := range []struct {
		set, null bool
	}{
		{p.Title.Set, p.Title.Null},
		{p.Completed.Set, p.Completed.Null},
		{p.IsImportant.Set, p.IsImportant.Null},
		{p.Priority.Set, p.Priority.Null},
	} {
		if o.set && o.null {
			return errors.ErrInvalidField
		}
	}
	if p.Title.Set {
		p.Title.Value = strings.TrimSpace(p.Title.Value)
		if p.Title.Value == "" {
			return errors.ErrInvalidTitle
		}
	}
	if p.Priority.Set && !p.Priority.Value.Valid() {
		return errors.ErrInvalidPriority
	}
	if p.DueDate.Set && !p.DueDate.Null && p.DueDate.Value.IsZero() {
		p.DueDate = Null[Date]()
	}
	if p.Description.Set && p.Description.Null {
		p.Description = Some("")
	}
	if p.Steps.Set && (p.Steps.Null || p.Steps.Value == nil) {
		p.Steps = Some([]Step{})
	}
	if p.List.Set && !p.List.Null && p.List.Value == "" {
		p.List = Null[string]()
	}
	return nil
}

// Changes lists the assignments of a normalized patch in a fixed order.
func (p *TaskPatch) Changes() []Change {
	var out []Change
	if p.Title.Set {
		out = append(out, Change{"title", p.Title.Value})
	}
	if p.Completed.Set {
		out = append(out, Change{"completed", p.Completed.Value})
	}
	if p.IsImportant.Set {
		out = append(out, Change{"isImportant", p.IsImportant.Value})
	}
	if p.Description.Set {
		out = append(out, Change{"description", p.Description.Value})
	}
	if p.Priority.Set {
		out = append(out, Change{"priority", string(p.Priority.Value)})
	}
	if p.DueDate.Set {
		if p.DueDate.Null {
			out = append(out, Change{"dueDate", nil})
		} else {
			out = append(out, Change{"dueDate", p.DueDate.Value.Time})
		}
	}
	if p.Steps.Set {
		out = append(out, Change{"steps", p.Steps.Value})
	}
	if p.List.Set {
		if p.List.Null {
			out = append(out, Change{"list", nil})
		} else {
			out = append(out, Change{"list", p.List.Value})
		}
	}
	return out
}

// Apply copies the patched fields onto t.
func (p *TaskPatch) Apply(t *Task) {
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	if p.Completed.Set {
		t.Completed = p.Completed.Value
	}
	if p.IsImportant.Set {
		t.IsImportant = p.IsImportant.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.DueDate.Set {
		if p.DueDate.Null {
			t.DueDate = nil
		} else {
			due := p.DueDate.Value.Time
			t.DueDate = &due
		}
	}
	if p.Steps.Set {
		t.Steps = append([]Step{}, p.Steps.Value...)
	}
	if p.List.Set {
		if p.List.Null {
			t.List = nil
		} else {
			list := p.List.Value
			t.List = &list
		}
	}
}

func normalizeList(list *string) *string {
	if list == nil || *list == "" {
		return nil
	}
	l := *list
	return &l
}
