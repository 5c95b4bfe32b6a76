package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"bytetalk/internal/chat/domain"
	"bytetalk/internal/chat/repository"
	errprocess "bytetalk/pkg/err"
	"bytetalk/pkg/logger"
	"bytetalk/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageUseCase 負責處理聊天訊息
type MessageUseCase struct {
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	notifier NotificationDispatcher
	relay    EventRelay
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	notifier NotificationDispatcher,
	relay EventRelay,
) *MessageUseCase {
	return &MessageUseCase{
		msgRepo:  msgRepo,
		userRepo: userRepo,
		notifier: notifier,
		relay:    relay,
	}
}

// SendMessage persist a message then notify and relay it
func (uc *MessageUseCase) SendMessage(ctx context.Context, senderID, receiverID, text, image string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return nil, errprocess.Validation("Message text or image is required")
	}

	receiver, err := uc.findUser(ctx, receiverID, "Receiver not found")
	if err != nil {
		return nil, err
	}
	sender, err := uc.findUser(ctx, senderID, "Sender not found")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	msg := &domain.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		Status:     domain.StatusSent,
		DeletedBy:  []string{},
		Reactions:  []domain.Reaction{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.msgRepo.Create(ctx, msg); err != nil {
		return nil, errprocess.Internal("create message", err)
	}

	// 通知失敗不影響訊息送出
	if receiver.HasMuted(senderID) {
		logger.Log.Debug("conversation muted, skip notification", zap.String("receiverID", receiverID), zap.String("senderID", senderID))
	} else if err := uc.notifier.Dispatch(ctx, domain.NewMessageNotification(receiverID, sender.FullName)); err != nil {
		logger.Log.Error("dispatch notification failed", zap.String("messageID", msg.ID), zap.Error(err))
	}

	uc.relay.Relay(ctx, domain.EventNewMessage, receiverID, msg.Render())
	uc.relay.Relay(ctx, domain.EventMessageStatusUpdated, senderID, domain.StatusUpdate{
		MessageID: msg.ID,
		Status:    domain.StatusSent,
	})
	return msg, nil
}

// GetConversation messages between viewer and peer, oldest first, as the viewer sees them
func (uc *MessageUseCase) GetConversation(ctx context.Context, viewerID, peerID string) ([]domain.Message, error) {
	all, err := uc.msgRepo.FindConversation(ctx, viewerID, peerID)
	if err != nil {
		return nil, errprocess.Internal("find conversation", err)
	}

	visible := make([]domain.Message, 0, len(all))
	for i := range all {
		if !all[i].VisibleTo(viewerID) {
			continue
		}
		visible = append(visible, all[i].Render())
	}
	return visible, nil
}

// AddReaction set the reaction of userID, replacing any earlier one
func (uc *MessageUseCase) AddReaction(ctx context.Context, messageID, userID, emoji string) (*domain.Message, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, errprocess.Validation("Emoji is required")
	}

	msg, err := uc.findVisible(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	msg.SetReaction(userID, emoji)
	return uc.saveReactions(ctx, msg)
}

// RemoveReaction drop the reaction of userID
func (uc *MessageUseCase) RemoveReaction(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	msg, err := uc.findVisible(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	msg.RemoveReaction(userID)
	return uc.saveReactions(ctx, msg)
}

// DeleteForMe hide the message from userID only
func (uc *MessageUseCase) DeleteForMe(ctx context.Context, messageID, userID string) error {
	err := uc.msgRepo.AddDeletedBy(ctx, messageID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return errprocess.NotFound("Message not found")
	}
	if err != nil {
		return errprocess.Internal("delete for me", err)
	}
	return nil
}

// DeleteForEveryone replace the message with a placeholder for both sides, sender only
func (uc *MessageUseCase) DeleteForEveryone(ctx context.Context, messageID, userID string) error {
	msg, err := uc.findMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return errprocess.Forbidden("You can only delete your own messages for everyone")
	}

	err = uc.msgRepo.MarkDeletedForEveryone(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		return errprocess.NotFound("Message not found")
	}
	if err != nil {
		return errprocess.Internal("delete for everyone", err)
	}
	return nil
}

// UpdateStatus advance the status of a message acknowledged by its receiver and tell the sender.
// Requests that are not strictly later than the stored status are ignored.
func (uc *MessageUseCase) UpdateStatus(ctx context.Context, actorID, messageID string, status domain.MessageStatus) error {
	if status != domain.StatusDelivered && status != domain.StatusSeen {
		return errprocess.Validation("invalid status " + string(status))
	}

	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.StatusTransitions.WithLabelValues(string(status), "missing").Inc()
		logger.Log.Info("status update for missing message", zap.String("messageID", messageID), zap.String("status", string(status)))
		return nil
	}
	if err != nil {
		return errprocess.Internal("find message", err)
	}
	if msg.ReceiverID != actorID {
		return errprocess.Forbidden("Only the receiver can acknowledge a message")
	}

	if !status.IsAfter(msg.Status) {
		uc.ignoreStatus(messageID, msg.Status, status)
		return nil
	}
	applied, err := uc.msgRepo.AdvanceStatus(ctx, messageID, status)
	if err != nil {
		return errprocess.Internal("advance status", err)
	}
	if !applied {
		// 併發的更新已經把狀態推到同樣或更後面
		uc.ignoreStatus(messageID, msg.Status, status)
		return nil
	}

	metrics.StatusTransitions.WithLabelValues(string(status), "applied").Inc()
	uc.relay.Relay(ctx, domain.EventMessageStatusUpdated, msg.SenderID, domain.StatusUpdate{
		MessageID: messageID,
		Status:    status,
	})
	return nil
}

func (uc *MessageUseCase) ignoreStatus(messageID string, current, requested domain.MessageStatus) {
	metrics.StatusTransitions.WithLabelValues(string(requested), "ignored").Inc()
	logger.Log.Debug("status transition ignored",
		zap.String("messageID", messageID),
		zap.String("current", string(current)),
		zap.String("requested", string(requested)),
	)
}

func (uc *MessageUseCase) findUser(ctx context.Context, userID, notFoundMsg string) (*domain.User, error) {
	user, err := uc.userRepo.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errprocess.NotFound(notFoundMsg)
	}
	if err != nil {
		return nil, errprocess.Internal("find user", err)
	}
	return user, nil
}

func (uc *MessageUseCase) findMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errprocess.NotFound("Message not found")
	}
	if err != nil {
		return nil, errprocess.Internal("find message", err)
	}
	return msg, nil
}

// findVisible a message hidden by delete-for-me is treated as missing for that user
func (uc *MessageUseCase) findVisible(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	msg, err := uc.findMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.VisibleTo(userID) {
		return nil, errprocess.NotFound("Message not found")
	}
	return msg, nil
}

func (uc *MessageUseCase) saveReactions(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	updated, err := uc.msgRepo.UpdateReactions(ctx, msg.ID, msg.Reactions)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errprocess.NotFound("Message not found")
	}
	if err != nil {
		return nil, errprocess.Internal("update reactions", err)
	}
	rendered := updated.Render()
	return &rendered, nil
}
