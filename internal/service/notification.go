package service

import (
	"context"

	"stakelend-backend/internal/domain"
	"stakelend-backend/internal/repository"
)

type notificationService struct {
	notifications repository.NotificationRepository
}

func NewNotificationService(notifications repository.NotificationRepository) NotificationService {
	return &notificationService{notifications: notifications}
}

func (s *notificationService) Notify(ctx context.Context, accountID int64, title, message string, attrs map[string]string) error {
	return s.notifications.Create(ctx, &domain.Notification{
		AccountID:  accountID,
		Title:      title,
		Message:    message,
		Attributes: attrs,
	})
}

func (s *notificationService) List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Notification, int32, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.notifications.List(ctx, accountID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id, accountID int64) error {
	return s.notifications.MarkAsRead(ctx, id, accountID)
}
