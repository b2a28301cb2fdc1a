package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/wanderlyst/tripmatch/internal/models"
)

type stubNotificationService struct {
	NotifyTripMatchFunc  func(ctx context.Context, userID, friendID, destinationID uuid.UUID) error
	NotifyGroupAddedFunc func(ctx context.Context, userID, actorID, conversationID uuid.UUID) error
}

func (s *stubNotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	return []models.Notification{}, nil
}

func (s *stubNotificationService) Dismiss(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) DismissAll(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) UndismissedCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *stubNotificationService) NotifyTripMatch(ctx context.Context, userID, friendID, destinationID uuid.UUID) error {
	if s.NotifyTripMatchFunc != nil {
		return s.NotifyTripMatchFunc(ctx, userID, friendID, destinationID)
	}
	return nil
}

func (s *stubNotificationService) NotifyGroupAdded(ctx context.Context, userID, actorID, conversationID uuid.UUID) error {
	if s.NotifyGroupAddedFunc != nil {
		return s.NotifyGroupAddedFunc(ctx, userID, actorID, conversationID)
	}
	return nil
}
