package viewserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/dbgview/internal/logging"
)

// client is one renderer connection. Snapshots replace any unsent snapshot;
// results are queued.
type client struct {
	conn *websocket.Conn

	snapshots chan []byte
	results   chan []byte
	done      chan struct{}
	once      sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		conn:      conn,
		snapshots: make(chan []byte, 1),
		results:   make(chan []byte, 16),
		done:      make(chan struct{}),
	}
}

// sendLatest queues data, dropping an older unsent snapshot.
func (c *client) sendLatest(data []byte) {
	for {
		select {
		case <-c.done:
			return
		case c.snapshots <- data:
			return
		default:
		}
		select {
		case <-c.snapshots:
		default:
		}
	}
}

func (c *client) sendResult(m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case c.results <- data:
	case <-c.done:
	default:
		// A renderer that does not read its results is dropped.
		c.close()
	}
}

func (c *client) writePump(log *logging.Logger) {
	for {
		var data []byte
		select {
		case <-c.done:
			return
		case data = <-c.results:
		case data = <-c.snapshots:
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("write failed: %v", err)
			c.close()
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}
