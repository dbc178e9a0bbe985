package usecase

import (
	"context"
	"errors"
	"fmt"

	"notifyhub/infrastructure/ws"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"

	"github.com/rs/zerolog"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100

	defaultNotificationType = "info"
)

var ErrInvalidNotification = errors.New("userId and title are required")

type NotificationUsecase interface {
	Create(ctx context.Context, req entity.CreateNotificationRequest) (entity.Notification, error)
	ListRecent(ctx context.Context, userId string, limit int) ([]entity.Notification, error)
	GetUnreadCount(ctx context.Context, userId string) (int64, error)
	MarkAsRead(ctx context.Context, userId, notificationId string) error
	MarkAllAsRead(ctx context.Context, userId string) (int64, error)
}

type notificationUsecase struct {
	notificationRepo repository.NotificationRepository
	dispatcher       ws.IDispatcher
	logger           zerolog.Logger
}

func NewNotificationUsecase(notificationRepo repository.NotificationRepository, dispatcher ws.IDispatcher, logger zerolog.Logger) NotificationUsecase {
	return &notificationUsecase{
		notificationRepo: notificationRepo,
		dispatcher:       dispatcher,
		logger:           logger,
	}
}

// NormalizeLimit applies the default page size and caps oversized requests.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Create persists the notification and pushes it to the recipient's open sockets.
func (u *notificationUsecase) Create(ctx context.Context, req entity.CreateNotificationRequest) (entity.Notification, error) {
	if req.UserId == "" || req.Title == "" {
		return entity.Notification{}, ErrInvalidNotification
	}
	if req.Type == "" {
		req.Type = defaultNotificationType
	}

	notification, err := u.notificationRepo.Create(ctx, entity.Notification{
		UserId:  req.UserId,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	})
	if err != nil {
		return entity.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	u.dispatcher.NotifyUser(notification.UserId, notification)
	return notification, nil
}

func (u *notificationUsecase) ListRecent(ctx context.Context, userId string, limit int) ([]entity.Notification, error) {
	return u.notificationRepo.ListRecent(ctx, userId, NormalizeLimit(limit))
}

func (u *notificationUsecase) GetUnreadCount(ctx context.Context, userId string) (int64, error) {
	return u.notificationRepo.CountUnread(ctx, userId)
}

func (u *notificationUsecase) MarkAsRead(ctx context.Context, userId, notificationId string) error {
	if err := u.notificationRepo.MarkAsRead(ctx, userId, notificationId); err != nil {
		return err
	}
	u.pushUnreadCount(ctx, userId)
	return nil
}

func (u *notificationUsecase) MarkAllAsRead(ctx context.Context, userId string) (int64, error) {
	n, err := u.notificationRepo.MarkAllAsRead(ctx, userId)
	if err != nil {
		return 0, err
	}
	u.pushUnreadCount(ctx, userId)
	return n, nil
}

// pushUnreadCount keeps the user's other tabs in sync after a read.
func (u *notificationUsecase) pushUnreadCount(ctx context.Context, userId string) {
	count, err := u.notificationRepo.CountUnread(ctx, userId)
	if err != nil {
		u.logger.Warn().Err(err).Str("userId", userId).Msg("Failed to refresh unread count")
		return
	}
	u.dispatcher.SendToUser(userId, ws.Payload{
		"type":        "unread_count",
		"unreadCount": count,
	})
}
