package app

import (
	"context"
	"encoding/json"
	"sync"

	"bytetalk/internal/chat/domain"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/mock"
)

// MockMessageRepository mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) FindConversation(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMessageRepository) AdvanceStatus(ctx context.Context, id string, status domain.MessageStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) AddDeletedBy(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkDeletedForEveryone(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepository) UpdateReactions(ctx context.Context, id string, reactions []domain.Reaction) (*domain.Message, error) {
	args := m.Called(ctx, id, reactions)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserRepository mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindOthers(ctx context.Context, excludeID string) ([]domain.User, error) {
	args := m.Called(ctx, excludeID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) SetOnline(ctx context.Context, id string, online bool) error {
	args := m.Called(ctx, id, online)
	return args.Error(0)
}

func (m *MockUserRepository) AddMutedConversation(ctx context.Context, id, peerID string) ([]string, error) {
	args := m.Called(ctx, id, peerID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) RemoveMutedConversation(ctx context.Context, id, peerID string) ([]string, error) {
	args := m.Called(ctx, id, peerID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotificationRepository mock NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) FindByUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockDispatcher mock NotificationDispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockRelay mock EventRelay
type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Relay(ctx context.Context, event domain.Event, targetUserID string, payload interface{}) {
	m.Called(ctx, event, targetUserID, payload)
}

// MockRabbit mock database.RabbitRepo
type MockRabbit struct {
	mock.Mock
}

func (m *MockRabbit) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

// pushed one event seen by a fakeConn
type pushed struct {
	Event domain.Event
	Data  interface{}
}

// fakeConn records pushes, fails with err when set
type fakeConn struct {
	id     string
	mu     sync.Mutex
	events []pushed
	err    error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Push(event domain.Event, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, pushed{Event: event, Data: data})
	return nil
}

func (c *fakeConn) Events() []pushed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]pushed{}, c.events...)
}

func (c *fakeConn) Last() pushed {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return pushed{}
	}
	return c.events[len(c.events)-1]
}

// memBus in process EventBus, delivers synchronously to every subscriber
type memBus struct {
	mu       sync.Mutex
	handlers []func(channel string, payload []byte)
	fail     error
}

func (b *memBus) Publish(_ context.Context, channel string, message interface{}) error {
	if b.fail != nil {
		return b.fail
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	b.mu.Lock()
	handlers := append([]func(string, []byte){}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(channel, data)
	}
	return nil
}

func (b *memBus) PSubscribe(_ context.Context, _ string, handler func(channel string, payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}
