package event

import (
	"claims-service/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DecisionPublisher publishes terminal claim decisions to RabbitMQ.
type DecisionPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

// NewDecisionPublisher creates a new claim decision event publisher
func NewDecisionPublisher(conn *RabbitMQConnection) *DecisionPublisher {
	return &DecisionPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

// PublishDecision publishes a claim decision event to the
// claim_decision_events queue.
func (p *DecisionPublisher) PublishDecision(ctx context.Context, claimID uuid.UUID, decision models.WorkflowAction, amount float64) error {
	// Ensure the queue exists
	_, err := p.conn.Channel.QueueDeclare(
		ClaimDecisionQueue, // queue name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	event := ClaimDecisionEvent{
		ClaimID:        claimID.String(),
		Decision:       string(decision),
		ApprovedAmount: amount,
		DecidedAt:      time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal claim decision event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",                 // exchange
		ClaimDecisionQueue, // routing key (queue name)
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish claim decision event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Claim decision event published",
		"queue", ClaimDecisionQueue,
		"claim_id", event.ClaimID,
		"decision", event.Decision,
	)

	return nil
}

// HealthCheck returns the health status of the publisher
func (p *DecisionPublisher) HealthCheck() PublisherHealthStatus {
	isHealthy := p.conn != nil && p.conn.Connection != nil && !p.conn.Connection.IsClosed()

	return PublisherHealthStatus{
		IsHealthy:         isHealthy,
		MessagesPublished: p.messagesPublished,
		MessagesFailed:    p.messagesFailed,
		LastPublishTime:   p.lastPublishTime,
		Queue:             ClaimDecisionQueue,
	}
}

// PublisherHealthStatus represents the health status of the publisher
type PublisherHealthStatus struct {
	IsHealthy         bool      `json:"is_healthy"`
	MessagesPublished int64     `json:"messages_published"`
	MessagesFailed    int64     `json:"messages_failed"`
	LastPublishTime   time.Time `json:"last_publish_time"`
	Queue             string    `json:"queue"`
}
