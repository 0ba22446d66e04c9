package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// CompletionNotification - сообщение о завершенном прогоне генерации книги.
type CompletionNotification struct {
	TaskID    string    `json:"task_id"`
	BookID    string    `json:"book_id,omitempty"`
	Status    string    `json:"status"` // completed | failed
	Title     string    `json:"title,omitempty"`
	PageCount int       `json:"page_count,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier отправляет уведомление о завершении прогона. Ровно одно
// уведомление на прогон, и при успехе, и при падении.
type Notifier interface {
	Notify(ctx context.Context, payload CompletionNotification) error
}

// rabbitMQNotifier публикует уведомления в очередь RabbitMQ.
type rabbitMQNotifier struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier создает Notifier поверх открытого канала RabbitMQ.
// Канал закрывается снаружи, вместе с соединением.
func NewRabbitMQNotifier(ch *amqp.Channel, queueName string, logger *zap.Logger) (Notifier, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось объявить очередь уведомлений '%s': %w", queueName, err)
	}
	logger.Info("Очередь уведомлений объявлена", zap.String("queue", queueName))

	return &rabbitMQNotifier{channel: ch, queueName: queueName, logger: logger}, nil
}

// Notify публикует уведомление в очередь.
func (n *rabbitMQNotifier) Notify(ctx context.Context, payload CompletionNotification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	err = n.channel.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        "storybook-server",
			MessageId:    payload.TaskID + "-notif",
		},
	)
	if err != nil {
		n.logger.Error("Ошибка публикации уведомления",
			zap.String("task_id", payload.TaskID), zap.Error(err))
		return fmt.Errorf("ошибка публикации уведомления для TaskID %s: %w", payload.TaskID, err)
	}

	n.logger.Info("Уведомление отправлено",
		zap.String("task_id", payload.TaskID),
		zap.String("queue", n.queueName),
		zap.String("status", payload.Status))
	return nil
}

// NoopNotifier - заглушка, когда RabbitMQ не сконфигурирован.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, CompletionNotification) error { return nil }
