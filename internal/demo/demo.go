// Package demo holds the sample units served by the tessera command: an
// eager "todos" list and a lazily loaded "tasks" segment.
package demo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/tessera"
	"github.com/aretw0/tessera/pkg/actions"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/reducer"
	"github.com/aretw0/tessera/pkg/segment"
	"github.com/google/uuid"
)

// TasksSegment is the id the tasks segment is registered under.
const TasksSegment = "tasks"

var (
	// ErrEmptyTitle is returned when adding a task without a title.
	ErrEmptyTitle = errors.New("task title is empty")
	// ErrUnknownTask is returned when removing a task that does not exist.
	ErrUnknownTask = errors.New("unknown task")
)

// Task is an item of the tasks slice.
type Task struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Todos returns the todos unit: a list of strings.
func Todos() *reducer.Unit {
	return reducer.New("todos",
		reducer.WithInitialState([]string{}),
		reducer.Handle("add", func(state any, a domain.Action) any {
			item, ok := a.Payload.(string)
			if !ok || item == "" {
				return state
			}
			return append(slices.Clone(state.([]string)), item)
		}),
		reducer.Handle("clear", func(state any, _ domain.Action) any {
			if len(state.([]string)) == 0 {
				return state
			}
			return []string{}
		}),
	)
}

// Tasks returns the tasks unit. "insert" appends a ready Task; callers go
// through the "add" method of TasksActions.
func Tasks() *reducer.Unit {
	return reducer.New("tasks",
		reducer.WithInitialState([]Task{}),
		reducer.Handle("insert", func(state any, a domain.Action) any {
			task, err := decodeTask(a)
			if err != nil {
				return state
			}
			return append(slices.Clone(state.([]Task)), task)
		}),
		reducer.Handle("toggle", func(state any, a domain.Action) any {
			id, _ := a.Payload.(string)
			tasks := state.([]Task)
			i := slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
			if i < 0 {
				return state
			}
			next := slices.Clone(tasks)
			next[i].Done = !next[i].Done
			return next
		}),
		reducer.Handle("remove", func(state any, a domain.Action) any {
			id, _ := a.Payload.(string)
			tasks := state.([]Task)
			if !slices.ContainsFunc(tasks, func(t Task) bool { return t.ID == id }) {
				return state
			}
			return slices.DeleteFunc(slices.Clone(tasks), func(t Task) bool { return t.ID == id })
		}),
	)
}

func decodeTask(a domain.Action) (Task, error) {
	if t, ok := a.Payload.(Task); ok {
		return t, nil
	}
	var t Task
	if err := domain.DecodePayload(a, &t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// TasksActions returns the tasks bundle. "add" accepts a title or a Task,
// assigns an id and rejects empty titles before inserting it. "remove"
// rejects unknown ids. "pending" counts open tasks.
func TasksActions(unit *reducer.Unit) *actions.Definition {
	return actions.MustFromUnit(unit,
		actions.CustomMethod("add", func(ctx context.Context, b *actions.Bundle, payload, meta any) (any, error) {
			var task Task
			if title, ok := payload.(string); ok {
				task.Title = title
			} else {
				t, err := decodeTask(domain.NewAction("tasks/add", payload, meta))
				if err != nil {
					return nil, err
				}
				task = t
			}
			task.Title = strings.TrimSpace(task.Title)
			if task.Title == "" {
				return nil, ErrEmptyTitle
			}
			if task.ID == "" {
				task.ID = uuid.NewString()
			}
			return task, b.Dispatch("insert", task, meta)
		}),
		actions.Override("remove", func(ctx context.Context, b *actions.Bundle, payload, _ any) (any, error) {
			tasks, err := currentTasks(b)
			if err != nil {
				return nil, err
			}
			id, _ := payload.(string)
			if !slices.ContainsFunc(tasks, func(t Task) bool { return t.ID == id }) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTask, id)
			}
			return id, nil
		}),
		actions.CustomMethod("pending", func(ctx context.Context, b *actions.Bundle, _, _ any) (any, error) {
			tasks, err := currentTasks(b)
			if err != nil {
				return nil, err
			}
			n := 0
			for _, t := range tasks {
				if !t.Done {
					n++
				}
			}
			return n, nil
		}),
	)
}

func currentTasks(b *actions.Bundle) ([]Task, error) {
	state, err := b.State()
	if err != nil {
		return nil, err
	}
	tasks, _ := state.([]Task)
	return tasks, nil
}

// New builds the demo container: todos loaded, tasks registered.
func New(opts ...tessera.Option) (*tessera.Container, error) {
	todos := Todos()
	c, err := tessera.New(tessera.Config{
		Reducers: []reducer.Source{todos},
		Actions:  []*actions.Definition{actions.MustFromUnit(todos)},
	}, opts...)
	if err != nil {
		return nil, err
	}

	tasks := Tasks()
	_, err = c.RegisterSegment(TasksSegment, func(ctx context.Context) (segment.Config, error) {
		return segment.Config{
			Reducers: []reducer.Source{tasks},
			Actions:  []*actions.Definition{TasksActions(tasks)},
		}, nil
	}, seedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s segment: %w", TasksSegment, err)
	}
	return c, nil
}

// seedTasks adds the titles passed as "seed" in the load context.
func seedTasks(ctx context.Context, c *tessera.Container, loadContext map[string]any) error {
	titles, _ := loadContext["seed"].([]any)
	if len(titles) == 0 {
		return nil
	}
	tree, err := c.Actions()
	if err != nil {
		return err
	}
	for _, title := range titles {
		if _, err := tree.Call(ctx, "tasks.add", fmt.Sprint(title), nil); err != nil {
			return err
		}
	}
	return nil
}
