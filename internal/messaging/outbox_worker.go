package messaging

import (
	"context"
	"sync"
	"time"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/repository"

	"github.com/sirupsen/logrus"
)

// OutboxConfig tunes the outbox worker.
type OutboxConfig struct {
	Interval           time.Duration
	BatchSize          int
	CleanupInterval    time.Duration
	PublishedRetention time.Duration
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
	if c.PublishedRetention <= 0 {
		c.PublishedRetention = 24 * time.Hour
	}
	return c
}

// OutboxWorker publishes committed outbox rows to the broker.
type OutboxWorker struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	cfg        OutboxConfig
	metrics    *metrics.Metrics
	log        *logrus.Entry
	done       chan struct{}
	wg         sync.WaitGroup
}

func NewOutboxWorker(outboxRepo *repository.OutboxRepository, publisher Publisher, cfg OutboxConfig, m *metrics.Metrics, log *logger.Logger) *OutboxWorker {
	return &OutboxWorker{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		cfg:        cfg.withDefaults(),
		metrics:    m,
		log:        log.Component("outbox"),
		done:       make(chan struct{}),
	}
}

func (w *OutboxWorker) Start() {
	w.wg.Add(2)
	go w.processLoop()
	go w.cleanupLoop()
	w.log.Info("started")
}

func (w *OutboxWorker) processLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(context.Background()); err != nil {
				w.log.WithError(err).Error("process batch")
			}
		}
	}
}

// ProcessBatch publishes one batch of pending messages and returns how many
// were published. Rows stay locked until the batch commits.
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := w.outboxRepo.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	messages, err := w.outboxRepo.ClaimPending(ctx, tx, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	published := 0
	for _, msg := range messages {
		if err := w.publisher.Publish(ctx, msg.RoutingKey, msg.ID.String(), msg.Payload); err != nil {
			w.log.WithError(err).WithField("message_id", msg.ID).Warn("publish failed")
			w.metrics.OutboxFailed.Inc()
			if err := w.outboxRepo.MarkAsFailed(ctx, tx, msg.ID, err.Error()); err != nil {
				return published, err
			}
			continue
		}

		if err := w.outboxRepo.MarkAsPublished(ctx, tx, msg.ID); err != nil {
			return published, err
		}
		w.metrics.OutboxPublished.Inc()
		published++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return published, nil
}

func (w *OutboxWorker) cleanupLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			deleted, err := w.outboxRepo.DeletePublished(context.Background(), w.cfg.PublishedRetention)
			if err != nil {
				w.log.WithError(err).Error("cleanup")
			} else if deleted > 0 {
				w.log.WithField("deleted", deleted).Info("cleaned old messages")
			}
		}
	}
}

func (w *OutboxWorker) Stop() {
	close(w.done)
	w.wg.Wait()
	w.log.Info("stopped")
}
