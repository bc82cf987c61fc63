package kafka

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer      *Producer
	topic         string
	originalTopic string
	now           func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
// Пустой topic означает cart.notifications.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicNotifications
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// NewDLQPublisher создаёт паблишер в cart.dlq; originalTopic попадает
// в заголовок x-original-topic для последующего репроцессинга.
func NewDLQPublisher(producer *Producer, originalTopic string) *OutboxTopicPublisher {
	if originalTopic == "" {
		originalTopic = TopicNotifications
	}
	publisher := NewOutboxPublisher(producer, TopicDeadLetterQueue)
	publisher.originalTopic = originalTopic
	return publisher
}

// Topic возвращает топик, в который пишет паблишер.
func (p *OutboxTopicPublisher) Topic() string {
	return p.topic
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	// Ключом служит корзина, чтобы её уведомления попадали в одну партицию.
	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	headers := map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
	}
	if p.originalTopic != "" {
		headers[HeaderOriginalTopic] = p.originalTopic
	}

	if err := p.producer.PublishEvent(p.topic, key, NewEnvelope(event, p.now()), headers); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOutboxPublish, err)
	}
	return nil
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
