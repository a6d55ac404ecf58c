package client

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"shared-tasks/internal/models"
	"shared-tasks/internal/view"
	"shared-tasks/pkg/logger"
)

// Watch keeps v in sync with the server until ctx is cancelled. Every (re)connect
// subscribes first and then refetches the full list, so events committed while
// disconnected are recovered by the fetch. onChange, if set, runs after each
// reset and each applied event.
func (c *Client) Watch(ctx context.Context, v *view.View, onChange func()) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0
	for {
		synced, err := c.session(ctx, v, onChange)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if synced {
			attempt = 0
		}
		attempt++
		wait := c.backoff.Delay(attempt, rng)
		logger.Warn(ctx, "Watch disconnected, reconnecting", "error", err, "attempt", attempt, "wait", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session runs one connection. synced reports whether the initial fetch succeeded.
func (c *Client) session(ctx context.Context, v *view.View, onChange func()) (synced bool, err error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	tasks, err := c.List(ctx)
	if err != nil {
		return false, fmt.Errorf("initial fetch: %w", err)
	}
	v.Reset(tasks)
	if onChange != nil {
		onChange()
	}

	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if err := ev.Validate(); err != nil {
			logger.Debug(ctx, "Ignoring malformed event", "error", err)
			continue
		}
		v.Apply(ev)
		if onChange != nil {
			onChange()
		}
	}
}

func (c *Client) wsURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	}
	return c.baseURL + "/ws"
}
