package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/orebase/mine-maintenance/internal/models"
)

// NotificationCollection defines the interface for notification storage.
type NotificationCollection interface {
	InsertNotification(ctx context.Context, notification models.Notification) error
	InsertNotifications(ctx context.Context, notifications []models.Notification) error
	FindNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// MongoNotificationCollection implements NotificationCollection for MongoDB
type MongoNotificationCollection struct {
	Collection *mongo.Collection
}

// InsertNotification stores a single notification.
func (c *MongoNotificationCollection) InsertNotification(ctx context.Context, notification models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	_, err := c.Collection.InsertOne(ctx, notification)
	return err
}

// InsertNotifications stores a batch of notifications.
func (c *MongoNotificationCollection) InsertNotifications(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(notifications))
	now := time.Now().UTC()
	for _, n := range notifications {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		docs = append(docs, n)
	}
	_, err := c.Collection.InsertMany(ctx, docs)
	return err
}

// FindNotificationsByUser returns a user's notifications, newest first.
func (c *MongoNotificationCollection) FindNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var notifications []models.Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkNotificationRead flags a notification as read.
func (c *MongoNotificationCollection) MarkNotificationRead(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	now := time.Now().UTC()
	res, err := c.Collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"is_read": true, "read_at": now}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
