// Package notify delivers booking notifications to requesters.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Events carried in TemplateData.Event
const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
)

// TemplateData is what the mail templates render
type TemplateData struct {
	Event           string  `json:"event"`
	BookingID       string  `json:"booking_id"`
	PropertyID      string  `json:"property_id"`
	PropertyTitle   string  `json:"property_title"`
	Status          string  `json:"status"`
	PreviousStatus  string  `json:"previous_status,omitempty"`
	PaymentStatus   string  `json:"payment_status"`
	CheckInDate     string  `json:"check_in_date,omitempty"`
	CheckOutDate    string  `json:"check_out_date,omitempty"`
	AppointmentDate string  `json:"appointment_date,omitempty"`
	AgentName       string  `json:"agent_name,omitempty"`
	AgentPhone      string  `json:"agent_phone,omitempty"`
	TotalAmount     float64 `json:"total_amount"`
	Currency        string  `json:"currency"`
}

// Notifier sends a best-effort message to a requester
type Notifier interface {
	Notify(ctx context.Context, recipientEmail string, data TemplateData) error
}

// Message is the envelope published for the mail worker
type Message struct {
	To     string       `json:"to"`
	Data   TemplateData `json:"data"`
	SentAt time.Time    `json:"sent_at"`
}

// RedisNotifier publishes notifications on a Redis channel consumed by the mail worker
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis using a redis:// URL
func NewRedisNotifier(ctx context.Context, url, channel string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisNotifierWithClient(client, channel), nil
}

// NewRedisNotifierWithClient wraps an existing client
func NewRedisNotifierWithClient(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Notify publishes the message. A message nobody is subscribed to is still a success.
func (n *RedisNotifier) Notify(ctx context.Context, recipientEmail string, data TemplateData) error {
	if recipientEmail == "" {
		return fmt.Errorf("recipient email is required")
	}

	payload, err := json.Marshal(Message{To: recipientEmail, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// LogNotifier writes notifications to the log; used when Redis is not configured
type LogNotifier struct {
	logger *logrus.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(ctx context.Context, recipientEmail string, data TemplateData) error {
	n.logger.WithFields(logrus.Fields{
		"to":         recipientEmail,
		"event":      data.Event,
		"booking_id": data.BookingID,
		"status":     data.Status,
	}).Info("Notification (log only)")
	return nil
}
