package view

import (
	"fmt"
	"strings"
	"sync"

	"shared-tasks/internal/models"
)

// Filter selects tasks by completion status.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterActive    Filter = "active"
	FilterCompleted Filter = "completed"
)

func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterCompleted:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown filter %q (want all, active or completed)", models.ErrValidation, s)
	}
}

func (f Filter) match(t models.Task) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// View is a client's local copy of the shared list, kept newest-first.
// It is reconciled from push events and reset from full fetches.
type View struct {
	mu    sync.RWMutex
	tasks []models.Task
}

func New() *View {
	return &View{}
}

// Reset replaces local state with the result of a full fetch.
func (v *View) Reset(tasks []models.Task) {
	cp := make([]models.Task, len(tasks))
	copy(cp, tasks)
	v.mu.Lock()
	v.tasks = cp
	v.mu.Unlock()
}

// Apply folds one event into local state. Events referring to ids the view
// does not hold are ignored, except taskCreated which is prepended.
func (v *View) Apply(ev models.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.index(ev.ID)
	switch ev.Type {
	case models.TaskCreated:
		if ev.Task == nil {
			return
		}
		if i >= 0 {
			// already present from the initial fetch
			v.tasks[i] = *ev.Task
			return
		}
		v.tasks = append([]models.Task{*ev.Task}, v.tasks...)
	case models.TaskUpdated:
		if ev.Task != nil && i >= 0 {
			v.tasks[i] = *ev.Task
		}
	case models.TaskDeleted:
		if i >= 0 {
			v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
		}
	}
}

func (v *View) index(id int64) int {
	for i := range v.tasks {
		if v.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Tasks returns a copy of the current state.
func (v *View) Tasks() []models.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.Task, len(v.tasks))
	copy(out, v.tasks)
	return out
}

// Visible returns the tasks whose title contains search (case-insensitive)
// and whose status matches filter. Order is preserved.
func Visible(tasks []models.Task, search string, filter Filter) []models.Task {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !filter.match(t) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		out = append(out, t)
	}
	return out
}
