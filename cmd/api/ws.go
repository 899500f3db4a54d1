package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulBabatuyi/konsultasi-chat/internal/chat"
	"github.com/PaulBabatuyi/konsultasi-chat/internal/session"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	sendQueueSize = 64
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// wsConn adapts a WebSocket to session.Conn. Sends are queued and written
// by a single writer goroutine; a full queue means the client is too slow
// and the registry drops it.
type wsConn struct {
	id   string
	conn *websocket.Conn
	send chan session.Event

	closeOnce sync.Once
	done      chan struct{}
	// stopped is closed when writePump has returned; the socket must not
	// be touched after the handler returns
	stopped chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:      "ws-" + uuid.NewString(),
		conn:    conn,
		send:    make(chan session.Event, sendQueueSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ev session.Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendQueueFull
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump owns all writes to the socket.
func (c *wsConn) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		close(c.stopped)
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Warn("websocket write failed", "conn", c.id, "error", err)
				// unblock the read loop
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// upgradeRequired rejects plain HTTP requests to the socket endpoint.
func upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// socketHandler runs one read loop per client. ctx is the server context:
// work already read is not cancelled when the client disconnects.
func socketHandler(ctx context.Context, gateway *chat.Gateway, log *slog.Logger) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		c := newWSConn(conn)
		gateway.Connect(c)
		defer func() {
			gateway.Disconnect(c)
			c.close()
			<-c.stopped
		}()

		go c.writePump(log)

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn("websocket read failed", "conn", c.id, "error", err)
				}
				return
			}

			var ev session.Event
			if err := json.Unmarshal(frame, &ev); err != nil || ev.Name == "" {
				log.Warn("malformed frame dropped", "conn", c.id, "error", err)
				continue
			}
			gateway.Handle(ctx, c, ev)
		}
	}
}
