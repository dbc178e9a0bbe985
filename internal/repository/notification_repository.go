package repository

import (
	"context"
	"errors"
	"time"

	"notifyhub/infrastructure/db"
	"notifyhub/internal/entity"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	Create(ctx context.Context, notification entity.Notification) (entity.Notification, error)
	ListRecent(ctx context.Context, userId string, limit int) ([]entity.Notification, error)
	CountUnread(ctx context.Context, userId string) (int64, error)
	MarkAsRead(ctx context.Context, userId, notificationId string) error
	MarkAllAsRead(ctx context.Context, userId string) (int64, error)
}

type notificationRepository struct {
	db  *mongo.Database
	now func() time.Time
}

func NewNotificationRepository(db *mongo.Database) NotificationRepository {
	return &notificationRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *notificationRepository) Create(ctx context.Context, notification entity.Notification) (entity.Notification, error) {
	collection := r.db.Collection(db.NotificationsCollection)
	notification.Id = uuid.New().String()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = r.now().UTC()
	}

	_, err := collection.InsertOne(ctx, notification)
	if err != nil {
		return entity.Notification{}, err
	}

	return notification, nil
}

// ListRecent returns the user's notifications, newest first.
func (r *notificationRepository) ListRecent(ctx context.Context, userId string, limit int) ([]entity.Notification, error) {
	collection := r.db.Collection(db.NotificationsCollection)
	filter := bson.M{"userId": userId}

	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	notifications := make([]entity.Notification, 0)
	err = cursor.All(ctx, &notifications)
	if err != nil {
		return nil, err
	}

	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userId string) (int64, error) {
	collection := r.db.Collection(db.NotificationsCollection)
	filter := bson.M{"userId": userId, "isRead": false}

	return collection.CountDocuments(ctx, filter)
}

// MarkAsRead is scoped to the owner so one user cannot mark another's notification.
func (r *notificationRepository) MarkAsRead(ctx context.Context, userId, notificationId string) error {
	collection := r.db.Collection(db.NotificationsCollection)
	filter := bson.M{"_id": notificationId, "userId": userId}
	update := bson.M{
		"$set": bson.M{
			"isRead": true,
			"readAt": r.now().UTC(),
		},
	}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userId string) (int64, error) {
	collection := r.db.Collection(db.NotificationsCollection)
	filter := bson.M{"userId": userId, "isRead": false}
	update := bson.M{
		"$set": bson.M{
			"isRead": true,
			"readAt": r.now().UTC(),
		},
	}

	res, err := collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}

	return res.ModifiedCount, nil
}
