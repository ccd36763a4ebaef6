package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	failSend bool
	closed   bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("broken pipe")
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Payloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.payloads))
	copy(out, c.payloads)
	return out
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeAuth struct {
	adminToken string
}

func (a *fakeAuth) Authenticate(credential, role string) (Identity, error) {
	if role == "admin" {
		if credential != a.adminToken {
			return Identity{}, ErrUnauthorized
		}
		return Identity{Admin: true}, nil
	}
	if credential == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: credential}, nil
}

func newTestRegistry(t *testing.T, opts RegistryOptions) *Registry {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewRegistry(&fakeAuth{adminToken: "admin-secret"}, metrics, zap.NewNop(), opts)
}

func handshake(t *testing.T, msg AuthMessage) []byte {
	t.Helper()
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestRegisterIndexesByIdentity(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{})

	userConn := &fakeConn{}
	userClient, err := registry.Register(userConn, Identity{UserID: "42"})
	require.NoError(t, err)

	adminConn := &fakeConn{}
	_, err = registry.Register(adminConn, Identity{Admin: true})
	require.NoError(t, err)

	require.Len(t, registry.FindByUser("42"), 1)
	require.Len(t, registry.Admins(), 1)
	require.Equal(t, 2, registry.Len())

	require.Same(t, userClient, registry.FindByUser("42")[0])
}

func TestRegisterRejectsEmptyIdentity(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{})
	_, err := registry.Register(&fakeConn{}, Identity{})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMultipleConnectionsPerUser(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{})

	for i := 0; i < 3; i++ {
		_, err := registry.Register(&fakeConn{}, Identity{UserID: "42"})
		require.NoError(t, err)
	}

	require.Len(t, registry.FindByUser("42"), 3)
}

func TestHandshakeWithinGrace(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{HandshakeGrace: time.Minute})

	conn := &fakeConn{}
	client := registry.Hold(conn)
	require.Empty(t, registry.FindByUser("42"))

	err := registry.HandleHandshake(client, handshake(t, AuthMessage{
		Type:       "auth",
		Credential: "42",
	}))
	require.NoError(t, err)
	require.Len(t, registry.FindByUser("42"), 1)
}

func TestHandshakeAdmin(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{HandshakeGrace: time.Minute})

	client := registry.Hold(&fakeConn{})
	err := registry.HandleHandshake(client, handshake(t, AuthMessage{
		Type:       "auth",
		Credential: "admin-secret",
		Role:       "admin",
	}))
	require.NoError(t, err)
	require.Len(t, registry.Admins(), 1)
}

func TestHandshakeRejectsBadFrame(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{HandshakeGrace: time.Minute})
	client := registry.Hold(&fakeConn{})

	require.ErrorIs(t, registry.HandleHandshake(client, []byte("not json")), ErrBadHandshake)
	require.ErrorIs(t, registry.HandleHandshake(client, handshake(t, AuthMessage{
		Type:       "subscribe",
		Credential: "42",
	})), ErrBadHandshake)
	require.ErrorIs(t, registry.HandleHandshake(client, handshake(t, AuthMessage{
		Type:       "auth",
		Credential: "wrong",
		Role:       "admin",
	})), ErrUnauthorized)

	require.Empty(t, registry.Admins())
	require.Empty(t, registry.FindByUser("42"))
}

func TestHandshakeGraceExpiryDropsConnection(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{HandshakeGrace: 20 * time.Millisecond})

	conn := &fakeConn{}
	registry.Hold(conn)
	require.Equal(t, 1, registry.Len())

	require.Eventually(t, func() bool {
		return registry.Len() == 0 && conn.Closed()
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{})

	conn := &fakeConn{}
	client, err := registry.Register(conn, Identity{UserID: "42"})
	require.NoError(t, err)

	registry.Unregister(client)
	registry.Unregister(client)
	registry.Unregister(nil)

	require.Empty(t, registry.FindByUser("42"))
	require.Equal(t, 0, registry.Len())
	require.True(t, conn.Closed())
}

func TestEnqueueDropsOldestWhenFull(t *testing.T) {
	client := newClient(&fakeConn{}, 2)

	require.Equal(t, 0, client.enqueue([]byte("a")))
	require.Equal(t, 0, client.enqueue([]byte("b")))
	require.Equal(t, 1, client.enqueue([]byte("c")))

	require.Equal(t, []byte("b"), <-client.queue)
	require.Equal(t, []byte("c"), <-client.queue)
	select {
	case payload := <-client.queue:
		t.Fatalf("unexpected payload %q", payload)
	default:
	}
}

func TestShutdownClosesEverything(t *testing.T) {
	registry := newTestRegistry(t, RegistryOptions{HandshakeGrace: time.Minute})

	user := &fakeConn{}
	admin := &fakeConn{}
	pending := &fakeConn{}
	_, err := registry.Register(user, Identity{UserID: "42"})
	require.NoError(t, err)
	_, err = registry.Register(admin, Identity{Admin: true})
	require.NoError(t, err)
	registry.Hold(pending)

	registry.Shutdown()

	require.Equal(t, 0, registry.Len())
	require.True(t, user.Closed())
	require.True(t, admin.Closed())
	require.True(t, pending.Closed())
}
