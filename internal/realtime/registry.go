// Package realtime tracks live user connections and provides push and
// broadcast primitives over them.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldapp/herald/internal/metrics"
)

// Conn is the transport-agnostic outbound connection the registry
// manages. The registry never reads from the connection.
type Conn interface {
	WriteText(payload string) error
	IsOpen() bool
	Close() error
}

// Message is the JSON payload pushed to connected users.
type Message struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
}

// Registry maps each user to at most one live connection. It is an
// explicitly owned dependency: created at service start, closed at
// shutdown. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]Conn
	logger *zap.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]Conn),
		logger: logger,
	}
}

// Register associates a connection with a user. Last connection wins: a
// prior connection for the same user is replaced and explicitly closed so
// it does not leak.
func (r *Registry) Register(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	metrics.SetRealtimeConnections(len(r.conns))
	r.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
		r.logger.Info("replaced stale realtime connection",
			zap.String("user_id", userID.String()),
		)
	}

	r.logger.Info("user connected to realtime notifications",
		zap.String("user_id", userID.String()),
	)
}

// Unregister removes the user's connection if present.
func (r *Registry) Unregister(userID uuid.UUID) {
	r.mu.Lock()
	_, ok := r.conns[userID]
	delete(r.conns, userID)
	metrics.SetRealtimeConnections(len(r.conns))
	r.mu.Unlock()

	if ok {
		r.logger.Info("user disconnected from realtime notifications",
			zap.String("user_id", userID.String()),
		)
	}
}

// UnregisterConn removes the user's connection only if it is still the
// given one. The read loop of a replaced stale connection must not tear
// down its successor.
func (r *Registry) UnregisterConn(userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if ok && current == conn {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	metrics.SetRealtimeConnections(len(r.conns))
	r.mu.Unlock()

	if ok {
		r.logger.Info("user disconnected from realtime notifications",
			zap.String("user_id", userID.String()),
		)
	}
}

// Push sends a message to one user. It returns false, not an error, when
// the user has no live connection or the write fails; a failed write also
// unregisters the connection.
func (r *Registry) Push(userID uuid.UUID, msgType, message string) bool {
	r.mu.RLock()
	conn := r.conns[userID]
	r.mu.RUnlock()

	if conn == nil || !conn.IsOpen() {
		r.logger.Debug("no active realtime connection",
			zap.String("user_id", userID.String()),
		)
		return false
	}

	payload, err := json.Marshal(Message{
		Type:      msgType,
		Message:   message,
		Timestamp: time.Now().UTC(),
		UserID:    userID.String(),
	})
	if err != nil {
		return false
	}

	if err := conn.WriteText(string(payload)); err != nil {
		r.logger.Warn("realtime push failed, dropping connection",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		r.UnregisterConn(userID, conn)
		return false
	}

	return true
}

// Broadcast fans out a message to every connected user concurrently.
// Each push is independent: one failing recipient does not affect the
// others. Returns the number of successful deliveries.
func (r *Registry) Broadcast(msgType, message string) int {
	r.mu.RLock()
	userIDs := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		userIDs = append(userIDs, id)
	}
	r.mu.RUnlock()

	r.logger.Info("broadcasting realtime notification",
		zap.Int("connected_users", len(userIDs)),
	)

	var delivered int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range userIDs {
		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			if r.Push(userID, msgType, message) {
				mu.Lock()
				delivered++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	return int(delivered)
}

// ConnectedCount reports how many users have a live connection.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IsConnected reports whether the user has a live, open connection.
func (r *Registry) IsConnected(userID uuid.UUID) bool {
	r.mu.RLock()
	conn := r.conns[userID]
	r.mu.RUnlock()
	return conn != nil && conn.IsOpen()
}

// Close drains the registry at shutdown, closing every connection.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uuid.UUID]Conn)
	metrics.SetRealtimeConnections(0)
	r.mu.Unlock()

	for id, conn := range conns {
		_ = conn.Close()
		r.logger.Debug("closed realtime connection",
			zap.String("user_id", id.String()),
		)
	}
}
