package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"

	"shared-tasks/internal/models"
	"shared-tasks/pkg/logger"
)

// TaskService is the orchestration layer the handlers call.
type TaskService interface {
	List(ctx context.Context) ([]models.Task, error)
	Get(ctx context.Context, id int64) (models.Task, error)
	Create(ctx context.Context, title string) (models.Task, error)
	Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id int64) (models.Task, error)
}

// Publisher delivers committed events: the local hub, or the Kafka relay.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

// ListCache holds the serialized full list.
type ListCache interface {
	Enabled() bool
	Get(ctx context.Context) ([]byte, int64, bool)
	SetAsync(version int64, raw []byte)
	Invalidate(ctx context.Context)
}

// Tasks serves the task REST surface. Mutations persist, invalidate the list cache
// and then publish; nothing is published for a failed write.
type Tasks struct {
	svc    TaskService
	cache  ListCache
	events Publisher
	loads  singleflight.Group
}

func NewTasks(svc TaskService, cache ListCache, events Publisher) *Tasks {
	return &Tasks{svc: svc, cache: cache, events: events}
}

// List returns all tasks newest-first, cache-first as raw bytes.
func (h *Tasks) List(c *gin.Context) {
	ctx := c.Request.Context()
	b, version, ok := h.cache.Get(ctx)
	if ok {
		c.Data(http.StatusOK, "application/json", b)
		return
	}
	v, err, _ := h.loads.Do("tasks:"+strconv.FormatInt(version, 10), func() (interface{}, error) {
		tasks, err := h.svc.List(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(tasks)
		if err != nil {
			return nil, err
		}
		// one fill per load, not one per waiter
		if h.cache.Enabled() {
			go h.cache.SetAsync(version, raw)
		}
		return raw, nil
	})
	if err != nil {
		logger.Error(ctx, "List tasks failed", "error", err)
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", v.([]byte))
}

// Get returns a single task.
func (h *Tasks) Get(c *gin.Context) {
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	task, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type createTaskRequest struct {
	Title     string `json:"title"`
	Completed *bool  `json:"completed"`
}

// Create persists a new task and broadcasts taskCreated.
func (h *Tasks) Create(c *gin.Context) {
	ctx := c.Request.Context()
	var body createTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return
	}
	if body.Completed != nil && *body.Completed {
		respondError(c, fmt.Errorf("%w: new tasks start as not completed", models.ErrValidation))
		return
	}
	task, err := h.svc.Create(ctx, body.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	h.committed(ctx, models.CreatedEvent(task))
	c.JSON(http.StatusCreated, task)
}

// Update applies a partial update and broadcasts taskUpdated.
func (h *Tasks) Update(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err))
		return
	}
	task, err := h.svc.Update(ctx, id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	h.committed(ctx, models.UpdatedEvent(task))
	c.JSON(http.StatusOK, task)
}

// Delete removes a task, broadcasts taskDeleted and returns the deleted record.
func (h *Tasks) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := taskID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	task, err := h.svc.Delete(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.committed(ctx, models.DeletedEvent(task.ID))
	c.JSON(http.StatusOK, task)
}

// committed runs after the store acknowledged a write. A publish failure does not
// fail the request: the write is durable and clients converge on their next fetch.
func (h *Tasks) committed(ctx context.Context, ev models.Event) {
	h.cache.Invalidate(ctx)
	if err := h.events.Publish(ctx, ev); err != nil {
		logger.Error(ctx, "Publish event failed", "error", err, "event", ev.Type, "task_id", ev.ID)
	}
}

func taskID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid task id %q", models.ErrValidation, raw)
	}
	return id, nil
}
