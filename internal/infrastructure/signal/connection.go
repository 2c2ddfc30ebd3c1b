package signal

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Connection is the websocket side of a peer. Send never blocks: frames go
// into a bounded queue that a single writer goroutine drains.
type Connection struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	logger       *zap.SugaredLogger
}

func newConnection(conn *websocket.Conn, queueSize int, writeTimeout time.Duration, logger *zap.SugaredLogger) *Connection {
	return &Connection{
		conn:         conn,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Send enqueues frame. It returns false when the queue is full or the
// connection is closed.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the writer, which sends a close frame and releases the socket.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Done is closed once Close has been called.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writePump() {
	defer c.conn.Close()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debugw("websocket write failed", "error", err)
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
			return
		}
	}
}

// flush writes whatever is still queued when the connection closes.
func (c *Connection) flush() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
