package service

import (
	"context"
	"fmt"
	"strings"

	"shared-tasks/internal/models"
)

// Store is the persistence contract the service delegates to.
type Store interface {
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id int64) (models.Task, error)
	Create(ctx context.Context, title string) (models.Task, error)
	Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id int64) (models.Task, error)
}

// Tasks passes calls through to the store. The only rule it adds is title validation;
// store errors are returned unchanged.
type Tasks struct {
	store Store
}

func NewTasks(store Store) *Tasks {
	return &Tasks{store: store}
}

func (s *Tasks) List(ctx context.Context) ([]models.Task, error) {
	return s.store.List(ctx)
}

func (s *Tasks) Get(ctx context.Context, id int64) (models.Task, error) {
	return s.store.Get(ctx, id)
}

func (s *Tasks) Create(ctx context.Context, title string) (models.Task, error) {
	valid, err := ValidateTitle(title)
	if err != nil {
		return models.Task{}, err
	}
	return s.store.Create(ctx, valid)
}

func (s *Tasks) Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if patch.Empty() {
		return models.Task{}, fmt.Errorf("%w: provide at least one field: title or completed", models.ErrValidation)
	}
	if patch.Title != nil {
		valid, err := ValidateTitle(*patch.Title)
		if err != nil {
			return models.Task{}, err
		}
		patch.Title = &valid
	}
	return s.store.Update(ctx, id, patch)
}

func (s *Tasks) Delete(ctx context.Context, id int64) (models.Task, error) {
	return s.store.Delete(ctx, id)
}

// ValidateTitle trims surrounding whitespace and rejects an empty result.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", fmt.Errorf("%w: title must not be empty", models.ErrValidation)
	}
	return trimmed, nil
}
