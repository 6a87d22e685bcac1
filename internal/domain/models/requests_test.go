package models

import (
	"encoding/json"
	"testing"
	"time"

	"taskflow/internal/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
		err  error
	}{
		{name: "bare date", raw: `"2030-01-05"`, want: time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC)},
		{name: "timestamp with offset", raw: `"2030-01-05T10:30:00+03:00"`, want: time.Date(2030, 1, 5, 7, 30, 0, 0, time.UTC)},
		{name: "empty string", raw: `""`, want: time.Time{}},
		{name: "words", raw: `"tomorrow"`, err: errors.ErrInvalidDate},
		{name: "number", raw: `1700000000`, err: errors.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.raw), &d)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(d.Time), d.Time)
		})
	}
}

func TestTaskPatchDecoding(t *testing.T) {
	var p TaskPatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"New","dueDate":null,"list":""}`), &p))

	assert.Equal(t, Some("New"), p.Title)
	assert.True(t, p.DueDate.Set)
	assert.True(t, p.DueDate.Null)
	assert.True(t, p.List.Set)
	assert.False(t, p.Completed.Set)
	assert.False(t, p.Steps.Set)
}

func TestTaskPatchNormalize(t *testing.T) {
	tests := []struct {
		name  string
		patch TaskPatch
		err   error
		check func(t *testing.T, p *TaskPatch)
	}{
		{name: "null title", patch: TaskPatch{Title: Null[string]()}, err: errors.ErrInvalidField},
		{name: "null completed", patch: TaskPatch{Completed: Null[bool]()}, err: errors.ErrInvalidField},
		{name: "blank title", patch: TaskPatch{Title: Some("   ")}, err: errors.ErrInvalidTitle},
		{name: "bad priority", patch: TaskPatch{Priority: Some(Priority("Urgent"))}, err: errors.ErrInvalidPriority},
		{
			name:  "trims title",
			patch: TaskPatch{Title: Some("  Buy milk ")},
			check: func(t *testing.T, p *TaskPatch) { assert.Equal(t, "Buy milk", p.Title.Value) },
		},
		{
			name:  "empty list clears",
			patch: TaskPatch{List: Some("")},
			check: func(t *testing.T, p *TaskPatch) { assert.True(t, p.List.Null) },
		},
		{
			name:  "zero date clears",
			patch: TaskPatch{DueDate: Some(Date{})},
			check: func(t *testing.T, p *TaskPatch) { assert.True(t, p.DueDate.Null) },
		},
		{
			name:  "null description empties",
			patch: TaskPatch{Description: Null[string]()},
			check: func(t *testing.T, p *TaskPatch) { assert.Equal(t, Some(""), p.Description) },
		},
		{
			name:  "null steps empties",
			patch: TaskPatch{Steps: Null[[]Step]()},
			check: func(t *testing.T, p *TaskPatch) { assert.Equal(t, []Step{}, p.Steps.Value) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.patch
			err := p.Normalize()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.ErrorIs(t, err, errors.ErrValidationFailed)
				return
			}
			require.NoError(t, err)
			tt.check(t, &p)
		})
	}
}

func TestTaskPatchChangesAndApply(t *testing.T) {
	due := time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC)
	p := TaskPatch{
		Completed: Some(true),
		DueDate:   Some(NewDate(due)),
		List:      Null[string](),
	}
	require.NoError(t, p.Normalize())

	assert.Equal(t, []Change{
		{Field: "completed", Value: true},
		{Field: "dueDate", Value: due},
		{Field: "list", Value: nil},
	}, p.Changes())

	list := "work"
	task := Task{Title: "Keep", Priority: PriorityHigh, Steps: []Step{{Text: "a"}}, List: &list}
	p.Apply(&task)

	assert.Equal(t, "Keep", task.Title)
	assert.Equal(t, PriorityHigh, task.Priority)
	assert.Equal(t, []Step{{Text: "a"}}, task.Steps)
	assert.True(t, task.Completed)
	require.NotNil(t, task.DueDate)
	assert.True(t, due.Equal(*task.DueDate))
	assert.Nil(t, task.List)
	assert.True(t, task.Unfiled())
}

func TestCreateTaskRequestDefaults(t *testing.T) {
	var req CreateTaskRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":" Plan ","list":"","dueDate":""}`), &req))

	task, err := req.NewTask("owner")
	require.NoError(t, err)
	assert.Equal(t, "Plan", task.Title)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, []Step{}, task.Steps)
	assert.Nil(t, task.List)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, "owner", task.UserID)

	_, err = (&CreateTaskRequest{}).NewTask("owner")
	assert.ErrorIs(t, err, errors.ErrInvalidTitle)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.False(t, Priority("urgent").Valid())
}

func TestUserPublicHidesSecrets(t *testing.T) {
	expires := time.Now()
	u := User{ID: "1", Name: "Ann", Email: "ann@example.com", Password: "hash", ResetPasswordToken: "123456", ResetPasswordExpires: &expires}

	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hash")
	assert.NotContains(t, string(data), "123456")

	assert.Equal(t, PublicUser{ID: "1", Name: "Ann", Email: "ann@example.com"}, u.Public())

	u.ClearReset()
	assert.Empty(t, u.ResetPasswordToken)
	assert.Nil(t, u.ResetPasswordExpires)
}
