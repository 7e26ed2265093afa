package service

import (
	"context"

	"prakriti-service/internal/messaging"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"

	"github.com/google/uuid"
)

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	sseHub           *messaging.SSEHub
}

func NewNotificationService(notificationRepo *repository.NotificationRepository, sseHub *messaging.SSEHub) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		sseHub:           sseHub,
	}
}

func (s *NotificationService) GetUserNotifications(ctx context.Context, userID uuid.UUID) (*model.NotificationListResponse, error) {
	notifications, err := s.notificationRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if notifications == nil {
		notifications = []model.Notification{}
	}

	unreadCount, err := s.notificationRepo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unreadCount,
	}, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.notificationRepo.MarkAsRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.notificationRepo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) RegisterClient(userID uuid.UUID) *messaging.SSEClient {
	return s.sseHub.RegisterClient(userID)
}

func (s *NotificationService) UnregisterClient(client *messaging.SSEClient) {
	s.sseHub.UnregisterClient(client)
}
