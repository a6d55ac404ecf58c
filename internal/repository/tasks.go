package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shared-tasks/internal/models"
	"shared-tasks/pkg/logger"
)

const taskColumns = `id, title, completed, created_at`

// Tasks is the durable task store. Every method is a single-row statement.
type Tasks struct {
	db *sql.DB
}

func NewTasks(db *sql.DB) *Tasks {
	return &Tasks{db: db}
}

// List returns all tasks, newest first.
func (r *Tasks) List(ctx context.Context) ([]models.Task, error) {
	if r.db == nil {
		return nil, errNoDB
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		logger.Error(ctx, "Repository List failed", "error", err)
		return nil, storeErr("list", err)
	}
	defer rows.Close()
	tasks := make([]models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan task failed", "error", err)
			return nil, storeErr("scan", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return tasks, nil
}

// Get returns one task by id.
func (r *Tasks) Get(ctx context.Context, id int64) (models.Task, error) {
	if r.db == nil {
		return models.Task{}, errNoDB
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if err != nil {
		return models.Task{}, classify(ctx, "get", id, err)
	}
	return t, nil
}

// Create inserts a task with completed=false and returns the stored row.
func (r *Tasks) Create(ctx context.Context, title string) (models.Task, error) {
	if r.db == nil {
		return models.Task{}, errNoDB
	}
	// created_at comes from the database clock so replicas agree on ordering
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (title, completed) VALUES ($1, $2)
		 RETURNING `+taskColumns,
		title, false)
	t, err := scanTask(row)
	if err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return models.Task{}, storeErr("create", err)
	}
	return t, nil
}

// Update applies the non-nil fields of patch.
func (r *Tasks) Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	if r.db == nil {
		return models.Task{}, errNoDB
	}
	row := r.db.QueryRowContext(ctx,
		`UPDATE tasks SET title = COALESCE($1, title), completed = COALESCE($2, completed)
		 WHERE id = $3 RETURNING `+taskColumns,
		patch.Title, patch.Completed, id)
	t, err := scanTask(row)
	if err != nil {
		return models.Task{}, classify(ctx, "update", id, err)
	}
	return t, nil
}

// Delete removes a task and returns the row as it was.
func (r *Tasks) Delete(ctx context.Context, id int64) (models.Task, error) {
	if r.db == nil {
		return models.Task{}, errNoDB
	}
	row := r.db.QueryRowContext(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING `+taskColumns, id)
	t, err := scanTask(row)
	if err != nil {
		return models.Task{}, classify(ctx, "delete", id, err)
	}
	return t, nil
}

// Ping checks the database connection.
func (r *Tasks) Ping(ctx context.Context) error {
	if r.db == nil {
		return errNoDB
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

var errNoDB = fmt.Errorf("%w: database not initialized", models.ErrStoreUnavailable)

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (models.Task, error) {
	var t models.Task
	var created dbTime
	if err := s.Scan(&t.ID, &t.Title, &t.Completed, &created); err != nil {
		return models.Task{}, err
	}
	t.CreatedAt = created.Time.UTC()
	return t, nil
}

// sqlite may hand timestamps back as text (e.g. from RETURNING); postgres drivers return time.Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

type dbTime struct {
	time.Time
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = v
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func classify(ctx context.Context, op string, id int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", models.ErrNotFound, id)
	}
	logger.Error(ctx, "Repository "+op+" failed", "error", err, "id", id)
	return storeErr(op, err)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStoreUnavailable, op, err)
}
