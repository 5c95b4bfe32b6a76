package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"bytetalk/internal/chat/domain"
	errprocess "bytetalk/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type messageMocks struct {
	msgRepo  *MockMessageRepository
	userRepo *MockUserRepository
	notifier *MockDispatcher
	relay    *MockRelay
}

func newMessageUseCase() (*MessageUseCase, messageMocks) {
	m := messageMocks{
		msgRepo:  new(MockMessageRepository),
		userRepo: new(MockUserRepository),
		notifier: new(MockDispatcher),
		relay:    new(MockRelay),
	}
	return NewMessageUseCase(m.msgRepo, m.userRepo, m.notifier, m.relay), m
}

func statusUpdate(messageID string, status domain.MessageStatus) interface{} {
	return mock.MatchedBy(func(u domain.StatusUpdate) bool {
		return u.MessageID == messageID && u.Status == status
	})
}

// 測試 SendMessage 寫入, 通知與轉送
func TestMessageUseCase_SendMessage(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.userRepo.On("FindByID", ctx, "b").Return(&domain.User{ID: "b", FullName: "Bob"}, nil)
	m.userRepo.On("FindByID", ctx, "a").Return(&domain.User{ID: "a", FullName: "Alice"}, nil)
	m.msgRepo.On("Create", ctx, mock.AnythingOfType("*domain.Message")).Return(nil)
	m.notifier.On("Dispatch", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "b" && n.Message == "New message from Alice" && n.Type == domain.NotificationMessage
	})).Return(nil)
	m.relay.On("Relay", ctx, domain.EventNewMessage, "b", mock.AnythingOfType("domain.Message")).Return()
	m.relay.On("Relay", ctx, domain.EventMessageStatusUpdated, "a", mock.AnythingOfType("domain.StatusUpdate")).Return()

	msg, err := uc.SendMessage(ctx, "a", "b", " hello ", "")
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, domain.StatusSent, msg.Status)
	assert.Empty(t, msg.DeletedBy)
	assert.False(t, msg.CreatedAt.IsZero())

	m.relay.AssertCalled(t, "Relay", ctx, domain.EventMessageStatusUpdated, "a", statusUpdate(msg.ID, domain.StatusSent))
	m.msgRepo.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
	m.relay.AssertExpectations(t)
}

func TestMessageUseCase_SendMessage_MutedSkipsNotification(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.userRepo.On("FindByID", ctx, "b").Return(&domain.User{ID: "b", MutedConversations: []string{"a"}}, nil)
	m.userRepo.On("FindByID", ctx, "a").Return(&domain.User{ID: "a", FullName: "Alice"}, nil)
	m.msgRepo.On("Create", ctx, mock.Anything).Return(nil)
	m.relay.On("Relay", ctx, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := uc.SendMessage(ctx, "a", "b", "", "https://img/1.png")
	require.NoError(t, err)

	m.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	m.relay.AssertCalled(t, "Relay", ctx, domain.EventNewMessage, "b", mock.Anything)
}

func TestMessageUseCase_SendMessage_NotificationFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.userRepo.On("FindByID", ctx, mock.Anything).Return(&domain.User{ID: "x"}, nil)
	m.msgRepo.On("Create", ctx, mock.Anything).Return(nil)
	m.notifier.On("Dispatch", ctx, mock.Anything).Return(errors.New("queue down"))
	m.relay.On("Relay", ctx, mock.Anything, mock.Anything, mock.Anything).Return()

	msg, err := uc.SendMessage(ctx, "a", "b", "hi", "")
	require.NoError(t, err)
	assert.NotNil(t, msg)
}

func TestMessageUseCase_SendMessage_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty body", func(t *testing.T) {
		uc, m := newMessageUseCase()
		_, err := uc.SendMessage(ctx, "a", "b", "  ", "")
		assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
		m.msgRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("receiver missing", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.userRepo.On("FindByID", ctx, "ghost").Return(nil, domain.ErrNotFound)
		_, err := uc.SendMessage(ctx, "a", "ghost", "hi", "")
		assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
	})

	t.Run("store failure", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.userRepo.On("FindByID", ctx, mock.Anything).Return(&domain.User{}, nil)
		m.msgRepo.On("Create", ctx, mock.Anything).Return(errors.New("write conflict"))
		_, err := uc.SendMessage(ctx, "a", "b", "hi", "")
		assert.Equal(t, errprocess.KindInternal, errprocess.KindOf(err))
		assert.Equal(t, "Internal server error", errprocess.Message(err))
		m.relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMessageUseCase_GetConversation(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()
	now := time.Now()

	m.msgRepo.On("FindConversation", ctx, "a", "b").Return([]domain.Message{
		{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "one", CreatedAt: now},
		{ID: "m2", SenderID: "b", ReceiverID: "a", Text: "two", DeletedBy: []string{"a"}, CreatedAt: now.Add(time.Second)},
		{ID: "m3", SenderID: "b", ReceiverID: "a", Text: "three", IsDeletedForEveryone: true, CreatedAt: now.Add(2 * time.Second)},
		{ID: "m4", SenderID: "b", ReceiverID: "a", Text: "four", IsDeletedForEveryone: true, DeletedBy: []string{"a"}, CreatedAt: now.Add(3 * time.Second)},
	}, nil)

	msgs, err := uc.GetConversation(ctx, "a", "b")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[1].ID)
	assert.Equal(t, domain.DeletedPlaceholder, msgs[1].Text)
}

func TestMessageUseCase_AddReaction(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	stored := &domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Reactions: []domain.Reaction{{UserID: "b", Emoji: "👍"}}}
	m.msgRepo.On("FindByID", ctx, "m1").Return(stored, nil)
	want := []domain.Reaction{{UserID: "b", Emoji: "❤️"}}
	m.msgRepo.On("UpdateReactions", ctx, "m1", want).Return(&domain.Message{ID: "m1", Reactions: want}, nil)

	msg, err := uc.AddReaction(ctx, "m1", "b", "❤️")
	require.NoError(t, err)
	assert.Equal(t, want, msg.Reactions)
	m.msgRepo.AssertExpectations(t)
}

func TestMessageUseCase_ReactionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty emoji", func(t *testing.T) {
		uc, _ := newMessageUseCase()
		_, err := uc.AddReaction(ctx, "m1", "b", "")
		assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
	})

	t.Run("missing message", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.msgRepo.On("FindByID", ctx, "nope").Return(nil, domain.ErrNotFound)
		_, err := uc.AddReaction(ctx, "nope", "b", "👍")
		assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
		_, err = uc.RemoveReaction(ctx, "nope", "b")
		assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
	})

	t.Run("hidden for the user", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", DeletedBy: []string{"b"}}, nil)
		_, err := uc.AddReaction(ctx, "m1", "b", "👍")
		assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(err))
	})
}

func TestMessageUseCase_RemoveReaction(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{
		ID:        "m1",
		Reactions: []domain.Reaction{{UserID: "a", Emoji: "😂"}, {UserID: "b", Emoji: "👍"}},
	}, nil)
	left := []domain.Reaction{{UserID: "a", Emoji: "😂"}}
	m.msgRepo.On("UpdateReactions", ctx, "m1", left).Return(&domain.Message{ID: "m1", Reactions: left}, nil)

	msg, err := uc.RemoveReaction(ctx, "m1", "b")
	require.NoError(t, err)
	assert.Equal(t, left, msg.Reactions)
}

func TestMessageUseCase_DeleteForMe(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()
	m.msgRepo.On("AddDeletedBy", ctx, "m1", "b").Return(nil)
	m.msgRepo.On("AddDeletedBy", ctx, "nope", "b").Return(domain.ErrNotFound)

	assert.NoError(t, uc.DeleteForMe(ctx, "m1", "b"))
	assert.Equal(t, errprocess.KindNotFound, errprocess.KindOf(uc.DeleteForMe(ctx, "nope", "b")))
}

func TestMessageUseCase_DeleteForEveryone(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()
	m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b"}, nil)
	m.msgRepo.On("MarkDeletedForEveryone", ctx, "m1").Return(nil)

	err := uc.DeleteForEveryone(ctx, "m1", "b")
	assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
	m.msgRepo.AssertNotCalled(t, "MarkDeletedForEveryone", ctx, "m1")

	assert.NoError(t, uc.DeleteForEveryone(ctx, "m1", "a"))
	m.msgRepo.AssertCalled(t, "MarkDeletedForEveryone", ctx, "m1")
}

func TestMessageUseCase_UpdateStatus_Forward(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: domain.StatusSent}, nil)
	m.msgRepo.On("AdvanceStatus", ctx, "m1", domain.StatusDelivered).Return(true, nil)
	m.relay.On("Relay", ctx, domain.EventMessageStatusUpdated, "a", statusUpdate("m1", domain.StatusDelivered)).Return()

	require.NoError(t, uc.UpdateStatus(ctx, "b", "m1", domain.StatusDelivered))
	m.msgRepo.AssertExpectations(t)
	m.relay.AssertExpectations(t)
}

func TestMessageUseCase_UpdateStatus_NeverRegresses(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: domain.StatusSeen}, nil)

	require.NoError(t, uc.UpdateStatus(ctx, "b", "m1", domain.StatusDelivered))
	require.NoError(t, uc.UpdateStatus(ctx, "b", "m1", domain.StatusSeen))

	m.msgRepo.AssertNotCalled(t, "AdvanceStatus", mock.Anything, mock.Anything, mock.Anything)
	m.relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageUseCase_UpdateStatus_LostRace(t *testing.T) {
	ctx := context.Background()
	uc, m := newMessageUseCase()

	m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: domain.StatusSent}, nil)
	m.msgRepo.On("AdvanceStatus", ctx, "m1", domain.StatusDelivered).Return(false, nil)

	require.NoError(t, uc.UpdateStatus(ctx, "b", "m1", domain.StatusDelivered))
	m.relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMessageUseCase_UpdateStatus_Rejected(t *testing.T) {
	ctx := context.Background()

	t.Run("missing message is a no-op", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.msgRepo.On("FindByID", ctx, "nope").Return(nil, domain.ErrNotFound)
		assert.NoError(t, uc.UpdateStatus(ctx, "b", "nope", domain.StatusSeen))
		m.relay.AssertNotCalled(t, "Relay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("only the receiver acknowledges", func(t *testing.T) {
		uc, m := newMessageUseCase()
		m.msgRepo.On("FindByID", ctx, "m1").Return(&domain.Message{ID: "m1", SenderID: "a", ReceiverID: "b", Status: domain.StatusSent}, nil)
		err := uc.UpdateStatus(ctx, "a", "m1", domain.StatusSeen)
		assert.Equal(t, errprocess.KindForbidden, errprocess.KindOf(err))
	})

	t.Run("sent is not a valid target", func(t *testing.T) {
		uc, _ := newMessageUseCase()
		err := uc.UpdateStatus(ctx, "b", "m1", domain.StatusSent)
		assert.Equal(t, errprocess.KindValidation, errprocess.KindOf(err))
	})
}
