// Package inmem holds map backed repositories for handler, websocket and feature tests.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"bytetalk/internal/chat/domain"
	"bytetalk/pkg"
)

// Store shared state of the in-memory repositories
type Store struct {
	mu            sync.Mutex
	users         map[string]domain.User
	messages      map[string]domain.Message
	notifications []domain.Notification
	// FailSetOnline makes SetOnline return an error
	FailSetOnline error
}

// NewStore create an empty Store
func NewStore() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		messages: make(map[string]domain.Message),
	}
}

// AddUser seed a user
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// User get a seeded user, false when missing
func (s *Store) User(id string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// Message get a stored message, false when missing
func (s *Store) Message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	return m, ok
}

// MessageRepository message repository view of the store
type MessageRepository struct{ *Store }

// UserRepository user repository view of the store
type UserRepository struct{ *Store }

// NotificationRepository notification repository view of the store
type NotificationRepository struct{ *Store }

// Create store msg
func (r MessageRepository) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[msg.ID] = cloneMessage(*msg)
	return nil
}

// FindByID get msg by id
func (r MessageRepository) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m = cloneMessage(m)
	return &m, nil
}

// FindConversation messages between two users, oldest first
func (r MessageRepository) FindConversation(_ context.Context, userA, userB string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Message{}
	for _, m := range r.messages {
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AdvanceStatus set status when the stored one is earlier
func (r MessageRepository) AdvanceStatus(_ context.Context, id string, status domain.MessageStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok || !status.IsAfter(m.Status) {
		return false, nil
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	r.messages[id] = m
	return true, nil
}

// AddDeletedBy add userID to deleted_by once
func (r MessageRepository) AddDeletedBy(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.DeletedBy = pkg.AppendIfNotExists(m.DeletedBy, userID)
	r.messages[id] = m
	return nil
}

// MarkDeletedForEveryone set the deleted for everyone flag
func (r MessageRepository) MarkDeletedForEveryone(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.IsDeletedForEveryone = true
	r.messages[id] = m
	return nil
}

// UpdateReactions replace the reactions
func (r MessageRepository) UpdateReactions(_ context.Context, id string, reactions []domain.Reaction) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	m.Reactions = append([]domain.Reaction{}, reactions...)
	r.messages[id] = m
	out := cloneMessage(m)
	return &out, nil
}

// FindByID get user by id
func (r UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.Password = ""
	return &u, nil
}

// FindOthers every user except excludeID
func (r UserRepository) FindOthers(_ context.Context, excludeID string) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.User{}
	for id, u := range r.users {
		if id == excludeID {
			continue
		}
		u.Password = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetOnline set the online flag
func (r UserRepository) SetOnline(_ context.Context, id string, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSetOnline != nil {
		return r.FailSetOnline
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.IsOnline = online
	r.users[id] = u
	return nil
}

// AddMutedConversation add peerID to the muted list
func (r UserRepository) AddMutedConversation(_ context.Context, id, peerID string) ([]string, error) {
	return r.updateMuted(id, func(list []string) []string {
		return pkg.AppendIfNotExists(list, peerID)
	})
}

// RemoveMutedConversation drop peerID from the muted list
func (r UserRepository) RemoveMutedConversation(_ context.Context, id, peerID string) ([]string, error) {
	return r.updateMuted(id, func(list []string) []string {
		kept := []string{}
		for _, v := range list {
			if v != peerID {
				kept = append(kept, v)
			}
		}
		return kept
	})
}

func (r UserRepository) updateMuted(id string, fn func([]string) []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u.MutedConversations = fn(u.MutedConversations)
	r.users[id] = u
	return append([]string{}, u.MutedConversations...), nil
}

// Create store n
func (r NotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, *n)
	return nil
}

// FindByUser notifications of userID, newest first
func (r NotificationRepository) FindByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Notification{}
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID == userID {
			out = append(out, r.notifications[i])
		}
	}
	return out, nil
}

// MarkAllRead mark every notification of userID as read
func (r NotificationRepository) MarkAllRead(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].UserID == userID {
			r.notifications[i].IsRead = true
		}
	}
	return nil
}

func cloneMessage(m domain.Message) domain.Message {
	m.DeletedBy = append([]string{}, m.DeletedBy...)
	m.Reactions = append([]domain.Reaction{}, m.Reactions...)
	return m
}
