package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType categorizes notifications for filtering.
type NotificationType string

const (
	NotificationReportSubmitted NotificationType = "report_submitted"
	NotificationReportStatus    NotificationType = "report_status"
	NotificationJobAssigned     NotificationType = "job_assigned"
	NotificationJobCompleted    NotificationType = "job_completed"
)

// NotificationPriority is the urgency of a notification.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification is a message delivered to a single user. Delivery is
// best-effort; the workflow never fails because a notification could not be
// stored or published.
type Notification struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID            string               `bson:"user_id" json:"user_id"`
	Type              NotificationType     `bson:"type" json:"type"`
	Title             string               `bson:"title" json:"title"`
	Message           string               `bson:"message" json:"message"`
	Priority          NotificationPriority `bson:"priority" json:"priority"`
	IsRead            bool                 `bson:"is_read" json:"is_read"`
	ReadAt            *time.Time           `bson:"read_at,omitempty" json:"read_at,omitempty"`
	RelatedEntityType string               `bson:"related_entity_type,omitempty" json:"related_entity_type,omitempty"`
	RelatedEntityID   string               `bson:"related_entity_id,omitempty" json:"related_entity_id,omitempty"`
	CreatedAt         time.Time            `bson:"created_at" json:"created_at"`
}
