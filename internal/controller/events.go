package controller

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"shared-tasks/internal/broadcast"
	"shared-tasks/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Events streams hub events to a websocket client for the life of the connection.
type Events struct {
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

func NewEvents(hub *broadcast.Hub) *Events {
	return &Events{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// no auth and no origin policy: any page may watch the shared list
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream upgrades the request and registers a subscriber until either side closes.
func (e *Events) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	// registered before the handshake completes, so a client that finished dialing
	// receives every event committed afterwards
	sub := e.hub.Subscribe()
	conn, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.hub.Unsubscribe(sub)
		logger.Debug(ctx, "Websocket upgrade failed", "error", err)
		return
	}
	logger.Info(ctx, "Subscriber connected", "subscriber", sub.ID, "subscribers", e.hub.Len())

	done := make(chan struct{})
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			// clients have nothing to say; reading only surfaces close and pong frames
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer conn.Close()
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case ev, ok := <-sub.Events():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "resubscribe"))
					return
				}
				if err := conn.WriteJSON(ev); err != nil {
					logger.Debug(ctx, "Websocket write failed", "error", err, "subscriber", sub.ID)
					return
				}
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	wg.Wait()
	e.hub.Unsubscribe(sub)
	logger.Info(ctx, "Subscriber disconnected", "subscriber", sub.ID, "subscribers", e.hub.Len())
}
