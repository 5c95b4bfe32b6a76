package app

import (
	"context"
	"encoding/json"
	"time"

	"bytetalk/internal/chat/domain"
	"bytetalk/internal/chat/repository"
	"bytetalk/pkg/database"
	"bytetalk/pkg/logger"

	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// NotificationDispatcher hands a notification over for storage
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) error
}

type directDispatcher struct {
	repo repository.NotificationRepository
}

// NewDirectDispatcher write notifications inline
func NewDirectDispatcher(repo repository.NotificationRepository) NotificationDispatcher {
	return &directDispatcher{repo: repo}
}

func (d *directDispatcher) Dispatch(ctx context.Context, n *domain.Notification) error {
	return d.repo.Create(ctx, n)
}

type queueDispatcher struct {
	rabbit database.RabbitRepo
	queue  string
}

// NewQueueDispatcher publish notifications to a rabbitmq queue, written later by NotificationConsumer
func NewQueueDispatcher(rabbit database.RabbitRepo, queue string) NotificationDispatcher {
	return &queueDispatcher{rabbit: rabbit, queue: queue}
}

func (d *queueDispatcher) Dispatch(ctx context.Context, n *domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return d.rabbit.Publish("", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID,
		Timestamp:    n.CreatedAt,
		Body:         body,
	})
}

// NotificationConsumer 消費 notification queue 並寫入資料庫
type NotificationConsumer struct {
	channel    *amqp.Channel
	queueName  string
	repo       repository.NotificationRepository
	retryDelay time.Duration
}

// NewNotificationConsumer 建構 NotificationConsumer
func NewNotificationConsumer(ch *amqp.Channel, queueName string, repo repository.NotificationRepository) *NotificationConsumer {
	return &NotificationConsumer{
		channel:    ch,
		queueName:  queueName,
		repo:       repo,
		retryDelay: 5 * time.Second,
	}
}

// StartConsumer 持續消費直到 ctx 結束或 channel 關閉
func (c *NotificationConsumer) StartConsumer(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // autoAck, 手動確認
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	logger.Log.Info("notification consumer started", zap.String("queue", c.queueName))
	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Warn("notification queue channel closed")
				return nil
			}
			c.handle(ctx, d)
		case <-ctx.Done():
			logger.Log.Info("notification consumer stopped")
			return nil
		}
	}
}

func (c *NotificationConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		// 格式錯誤重送也無效, 直接丟棄
		logger.Log.Error("notification decode failed", zap.Error(err))
		if err := d.Nack(false, false); err != nil {
			logger.Log.Error("nack failed", zap.Error(err))
		}
		return
	}

	err := c.repo.Create(ctx, &n)
	if mongo.IsDuplicateKeyError(err) {
		// 重送的訊息已經寫入過
		err = nil
	}
	if err != nil {
		logger.Log.Error("notification write failed, requeue", zap.String("notificationID", n.ID), zap.Error(err))
		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
		}
		if err := d.Nack(false, true); err != nil {
			logger.Log.Error("nack failed", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logger.Log.Error("ack failed", zap.Error(err))
	}
}
