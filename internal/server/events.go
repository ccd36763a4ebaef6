package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// StreamEvents is the realtime push channel. SSE gives the browser a
// single long-lived response; the credential rides on the request, so
// the connection is authenticated before it enters the registry.
// Clients are expected to refetch authoritative state after a
// reconnect, delivery here is best-effort.
func (s *Server) StreamEvents(c *gin.Context) {
	credential := strings.TrimSpace(c.Query("token"))
	if credential == "" {
		credential = bearerToken(c.GetHeader("Authorization"))
	}
	role := strings.TrimSpace(c.Query("role"))

	identity, err := s.auth.Authenticate(credential, role)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrInternal)
		return
	}

	conn := newSSEConn()
	client, err := s.registry.Register(conn, identity)
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	defer s.registry.Unregister(client)

	headers := c.Writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	if _, err := io.WriteString(c.Writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.done:
			return
		case payload := <-conn.ch:
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, prefix))
	}
	return ""
}

// sseConn bridges the registry's pump onto the handler goroutine that
// owns the HTTP response writer.
type sseConn struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSSEConn() *sseConn {
	return &sseConn{
		ch:   make(chan []byte, 1),
		done: make(chan struct{}),
	}
}

func (c *sseConn) Send(payload []byte) error {
	select {
	case c.ch <- payload:
		return nil
	case <-c.done:
		return errors.New("stream closed")
	}
}

func (c *sseConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}
