// Package query holds the task filtering and ordering rules shared by every
// storage backend: date windows, text matching, view composition and the
// "today" ordering.
package query

import (
	"sort"
	"strings"
	"time"

	"taskflow/internal/domain/errors"
	"taskflow/internal/domain/models"
)

const (
	DefaultUpcomingDays = 3
	dateLayout          = "2006-01-02"
)

// StartOfDay returns local midnight of the day containing t, in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of the day containing t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// UpcomingWindow returns the inclusive due-date window of the upcoming view:
// from today's local midnight through the end of the day `days` days ahead.
func UpcomingWindow(now time.Time, days int) (time.Time, time.Time) {
	if days < 1 {
		days = DefaultUpcomingDays
	}
	return StartOfDay(now), EndOfDay(now.AddDate(0, 0, days))
}

// ParseDays reads the days query parameter, falling back to the default for
// empty, malformed or non-positive input.
func ParseDays(raw string) int {
	n := 0
	for _, r := range strings.TrimSpace(raw) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		if n > 3650 {
			break
		}
	}
	if n < 1 {
		return DefaultUpcomingDays
	}
	return n
}

// ParseBound parses an RFC 3339 timestamp or a bare YYYY-MM-DD date; bare
// dates are interpreted at midnight in loc.
func ParseBound(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(dateLayout, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, errors.ErrInvalidDate
}

// RangeWindow validates and normalizes the bounds of a date-range query. An
// end bound at exactly midnight is widened to the end of that day.
func RangeWindow(rawStart, rawEnd string, loc *time.Location) (time.Time, time.Time, error) {
	if strings.TrimSpace(rawStart) == "" || strings.TrimSpace(rawEnd) == "" {
		return time.Time{}, time.Time{}, errors.ErrInvalidDateRange
	}
	start, err := ParseBound(rawStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseBound(rawEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 {
		end = EndOfDay(end)
	}
	return start, end, nil
}

// DueWithin reports whether the task has a due date inside [from, to].
func DueWithin(t *models.Task, from, to time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return !t.DueDate.Before(from) && !t.DueDate.After(to)
}

// MatchesText reports whether q occurs in the title or description of t,
// ignoring case. An empty q matches everything.
func MatchesText(t *models.Task, q string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(t.Title), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}

type Filter string

const (
	FilterAll       Filter = "all"
	FilterImportant Filter = "important"
	FilterCompleted Filter = "completed"
)

func ParseFilter(raw string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterImportant, FilterCompleted:
		return f, nil
	}
	return "", errors.ErrInvalidFilter
}

// View describes a composed task view. ListID empty means the unfiled view.
type View struct {
	Filter Filter
	ListID string
	Text   string
	Today  bool
}

func (v View) match(t *models.Task) bool {
	if v.ListID == "" {
		if !t.Unfiled() {
			return false
		}
	} else if t.Unfiled() || *t.List != v.ListID {
		return false
	}
	switch v.Filter {
	case FilterImportant:
		if !t.IsImportant {
			return false
		}
	case FilterCompleted:
		if !t.Completed {
			return false
		}
	}
	return MatchesText(t, v.Text)
}

// Apply narrows tasks to the view, keeping input order, and applies the
// today ordering when requested.
func Apply(tasks []models.Task, v View) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for i := range tasks {
		if v.match(&tasks[i]) {
			out = append(out, tasks[i])
		}
	}
	if v.Today {
		SortToday(out)
	}
	return out
}

// SortToday orders incomplete tasks before completed ones and then by
// priority, High first. The sort is stable.
func SortToday(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := &tasks[i], &tasks[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		return a.Priority.Rank() < b.Priority.Rank()
	})
}

// SortNewestFirst orders tasks by creation time, newest first.
func SortNewestFirst(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

// SortByDueDate orders tasks by due date ascending.
func SortByDueDate(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		if a == nil || b == nil {
			return a != nil
		}
		return a.Before(*b)
	})
}
