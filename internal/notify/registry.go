package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueSize      = 16
	defaultHandshakeGrace = 10 * time.Second
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadHandshake = errors.New("bad_handshake")
)

// Authenticator verifies a handshake credential and resolves it to an
// identity. Credential issuance lives outside the engine.
type Authenticator interface {
	Authenticate(credential, role string) (Identity, error)
}

// AuthMessage is the inbound handshake frame. It must arrive within the
// grace period or the connection is dropped.
type AuthMessage struct {
	Type       string `json:"type"`
	Credential string `json:"credential"`
	Role       string `json:"role"`
}

// Registry tracks live connections and their identities. A connection is
// held but unindexed until its handshake completes; multiple concurrent
// connections per identity are expected (browser tabs).
type Registry struct {
	log     *zap.Logger
	auth    Authenticator
	metrics *Metrics

	queueSize int
	grace     time.Duration

	mu      sync.RWMutex
	pending map[*Client]struct{}
	byUser  map[string]map[*Client]struct{}
	admins  map[*Client]struct{}
}

type RegistryOptions struct {
	QueueSize      int
	HandshakeGrace time.Duration
}

func NewRegistry(auth Authenticator, metrics *Metrics, log *zap.Logger, opts RegistryOptions) *Registry {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.HandshakeGrace <= 0 {
		opts.HandshakeGrace = defaultHandshakeGrace
	}
	return &Registry{
		log:       log.Named("notify.registry"),
		auth:      auth,
		metrics:   metrics,
		queueSize: opts.QueueSize,
		grace:     opts.HandshakeGrace,
		pending:   make(map[*Client]struct{}),
		byUser:    make(map[string]map[*Client]struct{}),
		admins:    make(map[*Client]struct{}),
	}
}

// Hold admits a connection that has not authenticated yet. The client is
// dropped if no valid handshake arrives within the grace period.
func (r *Registry) Hold(conn Conn) *Client {
	client := newClient(conn, r.queueSize)
	client.grace = time.AfterFunc(r.grace, func() {
		if _, authed := client.Identity(); !authed {
			r.log.Debug("handshake grace expired", zap.String("client", client.id))
			r.Unregister(client)
		}
	})

	r.mu.Lock()
	r.pending[client] = struct{}{}
	r.mu.Unlock()

	r.metrics.connections.Inc()
	go client.pump(r)
	return client
}

// Register admits a connection whose identity was established by the
// transport before the stream opened (the SSE path).
func (r *Registry) Register(conn Conn, identity Identity) (*Client, error) {
	if identity.zero() {
		return nil, ErrUnauthorized
	}
	client := newClient(conn, r.queueSize)
	client.identity = identity
	client.authed = true

	r.mu.Lock()
	r.index(client, identity)
	r.mu.Unlock()

	r.metrics.connections.Inc()
	go client.pump(r)
	return client, nil
}

// HandleHandshake consumes the auth frame of a held connection. Any
// failure leaves the client pending; the grace timer will collect it.
func (r *Registry) HandleHandshake(client *Client, raw []byte) error {
	var msg AuthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ErrBadHandshake
	}
	if msg.Type != "auth" {
		return ErrBadHandshake
	}

	identity, err := r.auth.Authenticate(msg.Credential, msg.Role)
	if err != nil {
		return ErrUnauthorized
	}

	client.mu.Lock()
	if client.authed {
		client.mu.Unlock()
		return nil
	}
	client.identity = identity
	client.authed = true
	client.mu.Unlock()

	if client.grace != nil {
		client.grace.Stop()
	}

	r.mu.Lock()
	if _, held := r.pending[client]; !held {
		// Already unregistered; a racing close beat the handshake.
		r.mu.Unlock()
		return ErrUnauthorized
	}
	delete(r.pending, client)
	r.index(client, identity)
	r.mu.Unlock()

	r.log.Debug("connection authenticated",
		zap.String("client", client.id),
		zap.String("user_id", identity.UserID),
		zap.Bool("admin", identity.Admin),
	)
	return nil
}

// index must be called with r.mu held.
func (r *Registry) index(client *Client, identity Identity) {
	if identity.Admin {
		r.admins[client] = struct{}{}
		return
	}
	set := r.byUser[identity.UserID]
	if set == nil {
		set = make(map[*Client]struct{})
		r.byUser[identity.UserID] = set
	}
	set[client] = struct{}{}
}

// Unregister removes a connection from every index and closes it. It is
// idempotent and safe to call from a close signal racing an in-flight
// broadcast.
func (r *Registry) Unregister(client *Client) {
	if client == nil {
		return
	}

	r.mu.Lock()
	removed := false
	if _, ok := r.pending[client]; ok {
		delete(r.pending, client)
		removed = true
	}
	if _, ok := r.admins[client]; ok {
		delete(r.admins, client)
		removed = true
	}
	identity, _ := client.Identity()
	if set, ok := r.byUser[identity.UserID]; ok {
		if _, ok := set[client]; ok {
			delete(set, client)
			removed = true
		}
		if len(set) == 0 {
			delete(r.byUser, identity.UserID)
		}
	}
	r.mu.Unlock()

	if removed {
		r.metrics.connections.Dec()
	}
	client.shutdown()
}

func (r *Registry) evict(client *Client, err error) {
	r.log.Debug("delivery failed, evicting connection",
		zap.String("client", client.id),
		zap.Error(err),
	)
	r.metrics.deliveryFailures.Inc()
	r.Unregister(client)
}

// FindByUser returns every live authenticated connection of a user.
func (r *Registry) FindByUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	return clients
}

// Admins returns every live admin console connection.
func (r *Registry) Admins() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.admins))
	for client := range r.admins {
		clients = append(clients, client)
	}
	return clients
}

// Len counts every held connection, authenticated or pending.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.pending) + len(r.admins)
	for _, set := range r.byUser {
		n += len(set)
	}
	return n
}

// Shutdown closes every connection; part of process teardown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.pending)+len(r.admins))
	for client := range r.pending {
		clients = append(clients, client)
	}
	for client := range r.admins {
		clients = append(clients, client)
	}
	for _, set := range r.byUser {
		for client := range set {
			clients = append(clients, client)
		}
	}
	r.pending = make(map[*Client]struct{})
	r.byUser = make(map[string]map[*Client]struct{})
	r.admins = make(map[*Client]struct{})
	r.mu.Unlock()

	for _, client := range clients {
		r.metrics.connections.Dec()
		client.shutdown()
	}
}
