package models

import "time"

type User struct {
	ID                   string     `json:"_id" bson:"_id"`
	Name                 string     `json:"name" bson:"name"`
	Email                string     `json:"email" bson:"email"`
	Password             string     `json:"-" bson:"password"`
	Avatar               string     `json:"avatar" bson:"avatar"`
	ResetPasswordToken   string     `json:"-" bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpires *time.Time `json:"-" bson:"resetPasswordExpires,omitempty"`
	CreatedAt            time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// PublicUser is the projection returned by register and login.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email}
}

// ClearReset drops a pending password reset code.
func (u *User) ClearReset() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
}

type List struct {
	ID        string    `json:"_id" bson:"_id"`
	Title     string    `json:"title" bson:"title"`
	UserID    string    `json:"user" bson:"user"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank orders priorities for display: High first, Low last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

type Step struct {
	Text string `json:"text" bson:"text"`
	Done bool   `json:"done" bson:"done"`
}

type Task struct {
	ID          string     `json:"_id" bson:"_id"`
	UserID      string     `json:"user" bson:"user"`
	Title       string     `json:"title" bson:"title"`
	Completed   bool       `json:"completed" bson:"completed"`
	IsImportant bool       `json:"isImportant" bson:"isImportant"`
	Description string     `json:"description" bson:"description"`
	Priority    Priority   `json:"priority" bson:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty" bson:"dueDate,omitempty"`
	Steps       []Step     `json:"steps" bson:"steps"`
	List        *string    `json:"list" bson:"list"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Unfiled reports whether the task belongs to the default view.
func (t *Task) Unfiled() bool {
	return t.List == nil || *t.List == ""
}
