package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hexabank/account-service/internal/domain"
)

// ActivityRecordedEvent is the payload published for every committed ledger
// entry. Timestamps are ISO 8601.
type ActivityRecordedEvent struct {
	EventID                string `json:"eventId"`
	EventType              string `json:"eventType"`
	EventTimestamp         string `json:"eventTimestamp"`
	ActivityID             int64  `json:"activityId"`
	AccountID              int64  `json:"accountId"`
	ActivityType           string `json:"activityType"`
	Amount                 int64  `json:"amount"`
	Fee                    int64  `json:"fee"`
	BalanceAfter           int64  `json:"balanceAfter"`
	ReferenceAccountID     *int64 `json:"referenceAccountId,omitempty"`
	ReferenceAccountNumber string `json:"referenceAccountNumber,omitempty"`
	TransactionID          string `json:"transactionId,omitempty"`
	Timestamp              string `json:"timestamp"`
}

// RabbitMQPublisher implements domain.EventPublisher on a topic exchange.
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the topic exchange.
func NewRabbitMQPublisher(url, exchange, routingKey string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishActivityRecorded publishes a committed ledger entry as a persistent
// JSON message.
func (p *RabbitMQPublisher) PublishActivityRecorded(ctx context.Context, activity *domain.Activity) error {
	event := ActivityRecordedEvent{
		EventID:        uuid.New().String(),
		EventType:      "activity.recorded",
		EventTimestamp: time.Now().UTC().Format(time.RFC3339),
		ActivityID:     activity.ID,
		AccountID:      activity.AccountID,
		ActivityType:   string(activity.Type),
		Amount:         activity.Amount,
		Fee:            activity.Fee,
		BalanceAfter:   activity.BalanceAfter,
		Timestamp:      activity.CreatedAt.UTC().Format(time.RFC3339),
	}
	if activity.ReferenceAccountID != nil {
		event.ReferenceAccountID = activity.ReferenceAccountID
	}
	if activity.ReferenceAccountNumber != nil {
		event.ReferenceAccountNumber = *activity.ReferenceAccountNumber
	}
	if activity.TransactionID != nil {
		event.TransactionID = *activity.TransactionID
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
