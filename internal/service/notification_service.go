package service

import (
	"context"
	"errors"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// NotificationService exposes a user's in-app notification feed.
type NotificationService struct {
	store storage.Store
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store storage.Store) *NotificationService {
	return &NotificationService{store: store}
}

// ListNotifications retrieves the actor's notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, actorID string) ([]*models.Notification, error) {
	notifications, err := s.store.ListNotificationsByUser(ctx, actorID)
	if err != nil {
		return nil, Internal(err)
	}
	return notifications, nil
}

// MarkRead marks one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actorID, notificationID string) error {
	err := s.store.MarkNotificationRead(ctx, notificationID, actorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NotFound("notification %s not found", notificationID)
		}
		return Internal(err)
	}
	return nil
}
