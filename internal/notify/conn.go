package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Conn is the transport handle for one client session. Send must be safe
// to call from the client's pump goroutine; a failed Send marks the
// connection dead.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Identity ties a connection to a user or to the admin console role.
type Identity struct {
	UserID string
	Admin  bool
}

func (i Identity) zero() bool {
	return i.UserID == "" && !i.Admin
}

// Client is a registered connection. Outbound envelopes go through a
// bounded queue drained by a dedicated pump goroutine, so one slow or
// dead peer never blocks the publisher or other recipients.
type Client struct {
	id           string
	conn         Conn
	subscribedAt time.Time

	mu       sync.Mutex
	identity Identity
	authed   bool

	queue chan []byte
	stop  chan struct{}

	closeOnce sync.Once
	grace     *time.Timer
}

func newClient(conn Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Client{
		id:           uuid.NewString(),
		conn:         conn,
		subscribedAt: time.Now().UTC(),
		queue:        make(chan []byte, queueSize),
		stop:         make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.authed
}

// enqueue adds a payload without ever blocking: when the queue is full
// the oldest pending payload is dropped to make room. It reports how
// many payloads were discarded.
func (c *Client) enqueue(payload []byte) int {
	dropped := 0
	for {
		select {
		case c.queue <- payload:
			return dropped
		default:
		}
		select {
		case <-c.queue:
			dropped++
		default:
		}
	}
}

// pump drains the outbound queue onto the transport. A send failure is
// contained to this connection: it evicts the client from the registry
// and never reaches the publisher.
func (c *Client) pump(r *Registry) {
	for {
		select {
		case <-c.stop:
			return
		case payload := <-c.queue:
			if err := c.conn.Send(payload); err != nil {
				r.evict(c, err)
				return
			}
			r.metrics.delivered.Inc()
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		if c.grace != nil {
			c.grace.Stop()
		}
		close(c.stop)
		_ = c.conn.Close()
	})
}
