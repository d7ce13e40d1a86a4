package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/orebase/mine-maintenance/internal/db"
	"github.com/orebase/mine-maintenance/internal/models"
)

const publishTimeout = 2 * time.Second

// Notifier delivers notifications. Each notification is persisted and then
// published on MQTT so connected clients see it immediately. Delivery is
// fire-and-forget: failures are logged, never returned to the workflow.
type Notifier struct {
	store  db.NotificationCollection
	client mqtt.Client
}

// NewNotifier creates a notifier. A nil MQTT client degrades to store-only
// delivery.
func NewNotifier(store db.NotificationCollection, client mqtt.Client) *Notifier {
	return &Notifier{store: store, client: client}
}

// ConnectBroker connects to the MQTT broker at the given address.
func ConnectBroker(broker string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("mine-maintenance-notifier").
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}
	return client, nil
}

// Notify delivers one notification.
func (n *Notifier) Notify(ctx context.Context, notification models.Notification) {
	if err := n.store.InsertNotification(ctx, notification); err != nil {
		log.WithFields(log.Fields{
			"user_id": notification.UserID,
			"type":    notification.Type,
		}).WithError(err).Error("failed to store notification")
	}
	n.publish(notification)
}

// NotifyAll delivers a batch of notifications, one per recipient.
func (n *Notifier) NotifyAll(ctx context.Context, notifications []models.Notification) {
	if len(notifications) == 0 {
		return
	}
	if err := n.store.InsertNotifications(ctx, notifications); err != nil {
		log.WithField("count", len(notifications)).WithError(err).Error("failed to store notifications")
	}
	for _, notification := range notifications {
		n.publish(notification)
	}
}

func (n *Notifier) publish(notification models.Notification) {
	if n.client == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		log.WithError(err).Error("failed to marshal notification")
		return
	}
	topic := fmt.Sprintf("maintenance/notifications/%s", notification.UserID)
	token := n.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		log.WithFields(log.Fields{
			"topic": topic,
		}).WithError(token.Error()).Warn("failed to publish notification")
	}
}
