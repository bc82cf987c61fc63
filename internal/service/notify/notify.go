// Package notify содержит реализации domain.Notifier: логирование,
// публикацию через outbox, рассылку в несколько получателей и запись в память.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
)

// LogNotifier пишет уведомления в лог.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier поверх logrus.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &LogNotifier{logger: logger}
}

// Notify логирует сообщение с уровнем warning.
func (n *LogNotifier) Notify(message string) {
	n.logger.WithField("notification", message).Warn("cart operation rejected")
}

// OutboxNotifier складывает уведомления в transactional outbox,
// откуда их забирает outbox.Worker.
type OutboxNotifier struct {
	repo    domain.OutboxRepository
	cartKey string
	logger  *log.Entry
	now     func() time.Time
}

// NewOutboxNotifier создаёт notifier, публикующий события через outbox.
func NewOutboxNotifier(repo domain.OutboxRepository, cartKey string, logger *log.Entry) *OutboxNotifier {
	if logger == nil {
		logger = log.WithField("component", "outbox-notifier")
	}
	return &OutboxNotifier{
		repo:    repo,
		cartKey: cartKey,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Notify ставит событие в outbox. Ошибки только логируются.
func (n *OutboxNotifier) Notify(message string) {
	notification := domain.Notification{
		ID:         uuid.NewString(),
		CartKey:    n.cartKey,
		Message:    message,
		OccurredAt: n.now(),
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		n.logger.WithError(err).Warn("failed to marshal notification")
		return
	}

	if _, err := n.repo.Enqueue(domain.OutboxMessage{
		ID:            notification.ID,
		AggregateType: domain.NotificationAggregateType,
		AggregateID:   n.cartKey,
		EventType:     domain.NotificationEventType,
		Payload:       payload,
	}); err != nil {
		n.logger.WithError(err).WithField("notification", message).Warn("failed to enqueue notification")
	}
}

// Fanout рассылает каждое уведомление всем получателям по порядку.
type Fanout []domain.Notifier

// Notify вызывает Notify у всех не-nil получателей.
func (f Fanout) Notify(message string) {
	for _, n := range f {
		if n != nil {
			n.Notify(message)
		}
	}
}

// Recorder запоминает полученные уведомления. Безопасен для конкурентного использования.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// NewRecorder создаёт пустой Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Notify сохраняет сообщение.
func (r *Recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages возвращает копию всех сообщений в порядке поступления.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Len возвращает количество записанных сообщений.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

// Reset очищает записанные сообщения.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = (*OutboxNotifier)(nil)
	_ domain.Notifier = Fanout(nil)
	_ domain.Notifier = (*Recorder)(nil)
)
