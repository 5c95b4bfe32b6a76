package app

import (
	"context"
	"errors"

	"bytetalk/internal/chat/domain"
	"bytetalk/internal/chat/repository"
	errprocess "bytetalk/pkg/err"
)

// UserUseCase sidebar users, notifications and muted conversations
type UserUseCase struct {
	userRepo  repository.UserRepository
	notifRepo repository.NotificationRepository
}

// NewUserUseCase init user use case
func NewUserUseCase(userRepo repository.UserRepository, notifRepo repository.NotificationRepository) *UserUseCase {
	return &UserUseCase{
		userRepo:  userRepo,
		notifRepo: notifRepo,
	}
}

// ListUsers every user except the caller
func (uc *UserUseCase) ListUsers(ctx context.Context, callerID string) ([]domain.User, error) {
	users, err := uc.userRepo.FindOthers(ctx, callerID)
	if err != nil {
		return nil, errprocess.Internal("find users", err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// Notifications the caller's notifications, newest first
func (uc *UserUseCase) Notifications(ctx context.Context, callerID string) ([]domain.Notification, error) {
	list, err := uc.notifRepo.FindByUser(ctx, callerID)
	if err != nil {
		return nil, errprocess.Internal("find notifications", err)
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// MarkNotificationsRead mark every unread notification of the caller as read
func (uc *UserUseCase) MarkNotificationsRead(ctx context.Context, callerID string) error {
	if err := uc.notifRepo.MarkAllRead(ctx, callerID); err != nil {
		return errprocess.Internal("mark notifications read", err)
	}
	return nil
}

// Mute stop notifications from peerID, returns the muted list
func (uc *UserUseCase) Mute(ctx context.Context, callerID, peerID string) ([]string, error) {
	if peerID == "" {
		return nil, errprocess.Validation("conversationUserId is required")
	}
	return uc.mapMuted(uc.userRepo.AddMutedConversation(ctx, callerID, peerID))
}

// Unmute resume notifications from peerID, returns the muted list
func (uc *UserUseCase) Unmute(ctx context.Context, callerID, peerID string) ([]string, error) {
	if peerID == "" {
		return nil, errprocess.Validation("conversationUserId is required")
	}
	return uc.mapMuted(uc.userRepo.RemoveMutedConversation(ctx, callerID, peerID))
}

func (uc *UserUseCase) mapMuted(muted []string, err error) ([]string, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errprocess.NotFound("User not found")
	}
	if err != nil {
		return nil, errprocess.Internal("update muted conversations", err)
	}
	return muted, nil
}
