package query

import (
	"testing"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var local = time.FixedZone("UTC+3", 3*60*60)

func at(y int, m time.Month, d, h, min int) *time.Time {
	t := time.Date(y, m, d, h, min, 0, 0, local)
	return &t
}

func titles(tasks []models.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Title)
	}
	return out
}

func TestUpcomingWindow(t *testing.T) {
	now := *at(2024, 3, 10, 23, 59)
	from, to := UpcomingWindow(now, 3)

	tests := []struct {
		name string
		due  *time.Time
		want bool
	}{
		{name: "early today", due: at(2024, 3, 10, 0, 30), want: true},
		{name: "midnight today", due: at(2024, 3, 10, 0, 0), want: true},
		{name: "last day", due: at(2024, 3, 13, 23, 59), want: true},
		{name: "day after window", due: at(2024, 3, 14, 0, 30), want: false},
		{name: "yesterday", due: at(2024, 3, 9, 23, 59), want: false},
		{name: "no due date", due: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &models.Task{DueDate: tt.due}
			assert.Equal(t, tt.want, DueWithin(task, from, to))
		})
	}
}

func TestUpcomingWindowDefaultsDays(t *testing.T) {
	now := *at(2024, 3, 10, 12, 0)
	_, withDefault := UpcomingWindow(now, 0)
	_, explicit := UpcomingWindow(now, DefaultUpcomingDays)
	assert.Equal(t, explicit, withDefault)
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 3},
		{raw: "7", want: 7},
		{raw: "0", want: 3},
		{raw: "-2", want: 3},
		{raw: "abc", want: 3},
		{raw: " 5 ", want: 5},
		{raw: "14days", want: 14},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDays(tt.raw))
		})
	}
}

func TestRangeWindow(t *testing.T) {
	t.Run("bare dates cover the whole end day", func(t *testing.T) {
		start, end, err := RangeWindow("2024-03-10", "2024-03-12", local)
		require.NoError(t, err)
		assert.True(t, start.Equal(*at(2024, 3, 10, 0, 0)), start)
		assert.True(t, end.Equal(EndOfDay(*at(2024, 3, 12, 0, 0))), end)

		task := &models.Task{DueDate: at(2024, 3, 12, 18, 0)}
		assert.True(t, DueWithin(task, start, end))
	})

	t.Run("timestamps are kept", func(t *testing.T) {
		start, end, err := RangeWindow("2024-03-10T08:00:00Z", "2024-03-10T10:30:00Z", local)
		require.NoError(t, err)
		assert.True(t, start.Equal(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))
		assert.True(t, end.Equal(time.Date(2024, 3, 10, 10, 30, 0, 0, time.UTC)))
	})

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{name: "missing start", end: "2024-03-12", want: errors.ErrInvalidDateRange},
		{name: "missing end", start: "2024-03-12", want: errors.ErrInvalidDateRange},
		{name: "garbage start", start: "tomorrow", end: "2024-03-12", want: errors.ErrInvalidDate},
		{name: "garbage end", start: "2024-03-12", end: "13/03/2024", want: errors.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := RangeWindow(tt.start, tt.end, local)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, errors.ErrValidationFailed)
		})
	}
}

func TestMatchesText(t *testing.T) {
	task := &models.Task{Title: "Buy milk", Description: "From the Corner shop"}

	assert.True(t, MatchesText(task, "MILK"))
	assert.True(t, MatchesText(task, "corner"))
	assert.True(t, MatchesText(task, ""))
	assert.False(t, MatchesText(task, "bread"))
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		raw  string
		want Filter
		err  bool
	}{
		{raw: "", want: FilterAll},
		{raw: "all", want: FilterAll},
		{raw: "Important", want: FilterImportant},
		{raw: "completed", want: FilterCompleted},
		{raw: "overdue", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseFilter(tt.raw)
			if tt.err {
				assert.ErrorIs(t, err, errors.ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply(t *testing.T) {
	work := "work"
	tasks := []models.Task{
		{Title: "inbox plain"},
		{Title: "inbox important", IsImportant: true},
		{Title: "inbox done", Completed: true},
		{Title: "work report", List: &work, IsImportant: true},
		{Title: "work done", List: &work, Completed: true},
	}

	tests := []struct {
		name string
		view View
		want []string
	}{
		{name: "unfiled all", view: View{Filter: FilterAll}, want: []string{"inbox plain", "inbox important", "inbox done"}},
		{name: "unfiled important", view: View{Filter: FilterImportant}, want: []string{"inbox important"}},
		{name: "unfiled completed", view: View{Filter: FilterCompleted}, want: []string{"inbox done"}},
		{name: "list all", view: View{Filter: FilterAll, ListID: "work"}, want: []string{"work report", "work done"}},
		{name: "list important", view: View{Filter: FilterImportant, ListID: "work"}, want: []string{"work report"}},
		{name: "list with text", view: View{Filter: FilterAll, ListID: "work", Text: "REPORT"}, want: []string{"work report"}},
		{name: "unknown list", view: View{Filter: FilterAll, ListID: "home"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, titles(Apply(tasks, tt.view)))
		})
	}
}

func TestSortToday(t *testing.T) {
	tasks := []models.Task{
		{Title: "low", Priority: models.PriorityLow},
		{Title: "done high", Priority: models.PriorityHigh, Completed: true},
		{Title: "medium", Priority: models.PriorityMedium},
		{Title: "high", Priority: models.PriorityHigh},
		{Title: "second medium", Priority: models.PriorityMedium},
		{Title: "done low", Priority: models.PriorityLow, Completed: true},
	}

	SortToday(tasks)

	assert.Equal(t, []string{"high", "medium", "second medium", "low", "done high", "done low"}, titles(tasks))
}

func TestApplyTodayOrdering(t *testing.T) {
	tasks := []models.Task{
		{Title: "done", Priority: models.PriorityHigh, Completed: true},
		{Title: "low", Priority: models.PriorityLow},
		{Title: "high", Priority: models.PriorityHigh},
	}

	got := Apply(tasks, View{Filter: FilterAll, Today: true})

	assert.Equal(t, []string{"high", "low", "done"}, titles(got))
	assert.Equal(t, "done", tasks[0].Title, "input must not be reordered")
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	tasks := []models.Task{
		{Title: "old", CreatedAt: base},
		{Title: "new", CreatedAt: base.Add(2 * time.Hour)},
		{Title: "mid", CreatedAt: base.Add(time.Hour)},
	}

	SortNewestFirst(tasks)

	assert.Equal(t, []string{"new", "mid", "old"}, titles(tasks))
}

func TestSortByDueDate(t *testing.T) {
	tasks := []models.Task{
		{Title: "none"},
		{Title: "late", DueDate: at(2024, 3, 12, 0, 0)},
		{Title: "early", DueDate: at(2024, 3, 11, 0, 0)},
	}

	SortByDueDate(tasks)

	assert.Equal(t, []string{"early", "late", "none"}, titles(tasks))
}
