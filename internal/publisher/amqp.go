// Package publisher 将入库后的文章推送到 RabbitMQ，供下游服务消费
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/SentimentHub/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// DefaultQueue 默认队列名
const DefaultQueue = "sentiment_articles"

// Message 队列中每条消息的结构
type Message struct {
	ID          uint      `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Link        string    `json:"link"`
	SourceName  string    `json:"source_name"`
	Sentiment   string    `json:"sentiment"`
	CollectedAt time.Time `json:"collected_at"`
}

// NewMessage 将存储层记录转换为消息
func NewMessage(a storage.Article) Message {
	return Message{
		ID:          a.ID,
		Title:       a.Title,
		Summary:     a.Summary,
		Link:        a.Link,
		SourceName:  a.SourceName,
		Sentiment:   string(a.Sentiment),
		CollectedAt: a.CollectedAt,
	}
}

// channel 抽象 amqp.Channel 中用到的方法，便于测试
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
	log   logrus.FieldLogger
}

// NewAMQPPublisher 连接 RabbitMQ 并声明持久化队列
func NewAMQPPublisher(url, queue string, log logrus.FieldLogger) (*AMQPPublisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("publisher: connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("publisher: open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("publisher: declare queue %s: %w", queue, err)
	}

	log.WithField("queue", queue).Info("rabbitmq publisher ready")
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue, log: log}, nil
}

// Publish 逐条发布文章；遇到第一个错误即返回
func (p *AMQPPublisher) Publish(ctx context.Context, articles []storage.Article) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := json.Marshal(NewMessage(a))
		if err != nil {
			return fmt.Errorf("publisher: marshal article %d: %w", a.ID, err)
		}
		err = p.ch.Publish("", p.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    a.CollectedAt,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publisher: publish article %d: %w", a.ID, err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"queue":    p.queue,
		"articles": len(articles),
	}).Debug("articles published")
	return nil
}

// Close 关闭通道与连接
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		firstErr = p.ch.Close()
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
