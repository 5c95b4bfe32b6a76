package app

import (
	"context"
	"sync"

	"bytetalk/internal/chat/domain"
	"bytetalk/pkg/logger"
	"bytetalk/pkg/metrics"

	"go.uber.org/zap"
)

// Connection a live client socket that accepts server pushed events
type Connection interface {
	ID() string
	// Push 不可阻塞, 送出佇列滿時回傳錯誤
	Push(event domain.Event, data interface{}) error
}

// PresenceStore persists the online flag of a user
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Registry maps each online user to its single connection, last connection wins.
// Unregister removes the mapping unconditionally, so a stale socket closing after a re-login evicts the newer one.
type Registry struct {
	mu       sync.Mutex
	conns    map[string]Connection
	presence PresenceStore
}

// NewRegistry create a Registry, presence may be nil
func NewRegistry(presence PresenceStore) *Registry {
	return &Registry{
		conns:    make(map[string]Connection),
		presence: presence,
	}
}

// Register map userID to conn, broadcast presence then mark the user online
func (r *Registry) Register(ctx context.Context, userID string, conn Connection) {
	r.mu.Lock()
	if prev, ok := r.conns[userID]; ok && prev.ID() != conn.ID() {
		logger.Log.Info("connection replaced", zap.String("userID", userID), zap.String("prev", prev.ID()), zap.String("conn", conn.ID()))
	}
	r.conns[userID] = conn
	r.broadcastLocked()
	r.mu.Unlock()

	r.persist(ctx, userID, true)
}

// Unregister drop the mapping of userID, broadcast presence then mark the user offline
func (r *Registry) Unregister(ctx context.Context, userID string) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.broadcastLocked()
	r.mu.Unlock()

	r.persist(ctx, userID, false)
}

// Lookup get the connection of userID
func (r *Registry) Lookup(userID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// BroadcastOnlineUsers push the current online set to every connection
func (r *Registry) BroadcastOnlineUsers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked()
}

// broadcastLocked caller must hold r.mu, snapshots leave in mutation order
func (r *Registry) broadcastLocked() {
	online := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		online = append(online, userID)
	}
	metrics.OnlineUsers.Set(float64(len(online)))

	for userID, conn := range r.conns {
		if err := conn.Push(domain.EventGetOnlineUsers, online); err != nil {
			metrics.RelayEvents.WithLabelValues(string(domain.EventGetOnlineUsers), "dropped").Inc()
			logger.Log.Warn("presence push dropped", zap.String("userID", userID), zap.Error(err))
			continue
		}
		metrics.RelayEvents.WithLabelValues(string(domain.EventGetOnlineUsers), "delivered").Inc()
	}
}

// persist best effort, the in-memory registry is never rolled back
func (r *Registry) persist(ctx context.Context, userID string, online bool) {
	if r.presence == nil {
		return
	}
	if err := r.presence.SetOnline(ctx, userID, online); err != nil {
		logger.Log.Error("set online flag failed",
			zap.String("userID", userID),
			zap.Bool("online", online),
			zap.Error(err),
		)
	}
}
