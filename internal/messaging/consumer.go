package messaging

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/metrics"
	"prakriti-service/internal/model"
	"prakriti-service/internal/repository"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const consumerRetryWait = 5 * time.Second

// DeliverySource opens a delivery stream for a queue.
type DeliverySource interface {
	ConsumeQueue(queueName string) (<-chan amqp.Delivery, error)
}

// ScoreBoard receives point increments for the leaderboard cache. An
// awardID that was already applied must not count again.
type ScoreBoard interface {
	IncrementScoreOnce(ctx context.Context, awardID string, userID uuid.UUID, points int) (bool, error)
}

// RetryConfig controls redelivery-free retries of a failing handler.
type RetryConfig struct {
	Attempts     uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

type handlerFunc func(ctx context.Context, body []byte) error

// NotificationConsumer turns lifecycle events into user notifications.
type NotificationConsumer struct {
	source           DeliverySource
	notificationRepo *repository.NotificationRepository
	sseHub           *SSEHub
	scores           ScoreBoard
	metrics          *metrics.Metrics
	retry            RetryConfig
	log              *logrus.Entry
	handlers         map[string]handlerFunc
	done             chan struct{}
	wg               sync.WaitGroup
}

func NewNotificationConsumer(source DeliverySource, notificationRepo *repository.NotificationRepository, sseHub *SSEHub,
	scores ScoreBoard, rc RetryConfig, m *metrics.Metrics, log *logger.Logger) *NotificationConsumer {
	c := &NotificationConsumer{
		source:           source,
		notificationRepo: notificationRepo,
		sseHub:           sseHub,
		scores:           scores,
		metrics:          m,
		retry:            rc.withDefaults(),
		log:              log.Component("consumer"),
		done:             make(chan struct{}),
	}
	c.handlers = map[string]handlerFunc{
		QueueComplaintCreated:   c.handleComplaintCreated,
		QueueComplaintAssigned:  c.handleComplaintAssigned,
		QueueComplaintStatus:    c.handleComplaintStatus,
		QueueSubmissionVerified: c.handleSubmissionVerified,
		QueueRewardAwarded:      c.handleRewardAwarded,
	}
	return c
}

func (c *NotificationConsumer) Start() {
	for _, qc := range QueueConfigs {
		c.wg.Add(1)
		go c.consumeQueue(qc.QueueName, c.handlers[qc.QueueName])
	}
	c.log.Info("consumers started")
}

func (c *NotificationConsumer) consumeQueue(queueName string, handler handlerFunc) {
	defer c.wg.Done()
	log := c.log.WithField("queue", queueName)

	for {
		select {
		case <-c.done:
			log.Info("stopping")
			return
		default:
		}

		msgs, err := c.source.ConsumeQueue(queueName)
		if err != nil {
			log.WithError(err).Warn("consume failed, retrying")
			select {
			case <-c.done:
				return
			case <-time.After(consumerRetryWait):
			}
			continue
		}

		log.Info("listening for messages")
		c.processQueue(queueName, msgs, handler)
	}
}

func (c *NotificationConsumer) processQueue(queueName string, msgs <-chan amqp.Delivery, handler handlerFunc) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.WithField("queue", queueName).Warn("channel closed, reconnecting")
				return
			}
			c.processMessageWithRetry(context.Background(), queueName, msg, handler)
		}
	}
}

func messageID(msg amqp.Delivery) string {
	if msg.MessageId != "" {
		return msg.MessageId
	}
	return fmt.Sprintf("%x", sha256.Sum256(msg.Body))
}

// processMessageWithRetry runs handler with backoff. A message that keeps
// failing is nacked without requeue so the broker dead-letters it.
func (c *NotificationConsumer) processMessageWithRetry(ctx context.Context, queueName string, msg amqp.Delivery, handler handlerFunc) {
	id := messageID(msg)
	log := c.log.WithFields(logrus.Fields{"queue": queueName, "message_id": id})

	processed, err := c.notificationRepo.IsMessageProcessed(ctx, id)
	if err != nil {
		log.WithError(err).Warn("idempotency check failed")
	}
	if processed {
		log.Debug("already processed")
		msg.Ack(false)
		return
	}

	err = retry.Do(
		func() error {
			return handler(ctx, msg.Body)
		},
		retry.Context(ctx),
		retry.Attempts(c.retry.Attempts),
		retry.Delay(c.retry.InitialDelay),
		retry.MaxDelay(c.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithField("attempt", n+1).Warn("retry")
		}),
	)
	if err != nil {
		log.WithError(err).Error("failed, sending to DLQ")
		msg.Nack(false, false)
		return
	}

	if err := c.notificationRepo.MarkMessageProcessed(ctx, id); err != nil {
		log.WithError(err).Warn("mark processed failed")
	}
	msg.Ack(false)
}

func decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return retry.Unrecoverable(fmt.Errorf("bad json: %w", err))
	}
	return nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, retry.Unrecoverable(fmt.Errorf("bad %s %q: %w", field, value, err))
	}
	return id, nil
}

func humanize(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

func (c *NotificationConsumer) notify(ctx context.Context, event string, n *model.Notification) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	if err := c.notificationRepo.Create(ctx, n); err != nil {
		return err
	}
	c.metrics.NotificationsCreated.WithLabelValues(event).Inc()
	c.sseHub.SendToUser(n)
	return nil
}

func (c *NotificationConsumer) handleComplaintCreated(ctx context.Context, body []byte) error {
	var ev ComplaintCreatedEvent
	if err := decode(body, &ev); err != nil {
		return err
	}
	complaintID, err := parseID("complaint_id", ev.ComplaintID)
	if err != nil {
		return err
	}
	reporterID, err := parseID("reporter_id", ev.ReporterID)
	if err != nil {
		return err
	}

	return c.notify(ctx, RoutingKeyComplaintCreated, &model.Notification{
		UserID:      reporterID,
		ComplaintID: &complaintID,
		Title:       "Complaint received",
		Message:     fmt.Sprintf("Your complaint %q was received with %s priority.", ev.Title, ev.Priority),
	})
}

func (c *NotificationConsumer) handleComplaintAssigned(ctx context.Context, body []byte) error {
	var ev ComplaintAssignedEvent
	if err := decode(body, &ev); err != nil {
		return err
	}
	complaintID, err := parseID("complaint_id", ev.ComplaintID)
	if err != nil {
		return err
	}
	reporterID, err := parseID("reporter_id", ev.ReporterID)
	if err != nil {
		return err
	}

	return c.notify(ctx, RoutingKeyComplaintAssigned, &model.Notification{
		UserID:      reporterID,
		ComplaintID: &complaintID,
		Title:       "Complaint assigned",
		Message:     fmt.Sprintf("Your complaint %q was assigned to %s.", ev.Title, ev.Department),
	})
}

func (c *NotificationConsumer) handleComplaintStatus(ctx context.Context, body []byte) error {
	var ev ComplaintStatusEvent
	if err := decode(body, &ev); err != nil {
		return err
	}
	complaintID, err := parseID("complaint_id", ev.ComplaintID)
	if err != nil {
		return err
	}
	reporterID, err := parseID("reporter_id", ev.ReporterID)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("Your complaint %q is now %s.", ev.Title, humanize(ev.NewStatus))
	if ev.Description != "" {
		msg += " " + ev.Description
	}
	return c.notify(ctx, RoutingKeyComplaintStatus, &model.Notification{
		UserID:      reporterID,
		ComplaintID: &complaintID,
		Title:       "Complaint status updated",
		Message:     msg,
	})
}

func (c *NotificationConsumer) handleSubmissionVerified(ctx context.Context, body []byte) error {
	var ev SubmissionVerifiedEvent
	if err := decode(body, &ev); err != nil {
		return err
	}
	taskID, err := parseID("task_id", ev.TaskID)
	if err != nil {
		return err
	}
	userID, err := parseID("user_id", ev.UserID)
	if err != nil {
		return err
	}

	title := "Submission verified"
	if ev.Status == string(model.SubmissionRejected) {
		title = "Submission rejected"
	}
	msg := fmt.Sprintf("Your submission for %q was %s.", ev.TaskTitle, ev.Status)
	if ev.Feedback != "" {
		msg += " Feedback: " + ev.Feedback
	}
	return c.notify(ctx, RoutingKeySubmissionVerified, &model.Notification{
		UserID:  userID,
		TaskID:  &taskID,
		Title:   title,
		Message: msg,
	})
}

func (c *NotificationConsumer) handleRewardAwarded(ctx context.Context, body []byte) error {
	var ev RewardAwardedEvent
	if err := decode(body, &ev); err != nil {
		return err
	}
	userID, err := parseID("user_id", ev.UserID)
	if err != nil {
		return err
	}
	sourceID, err := parseID("source_id", ev.SourceID)
	if err != nil {
		return err
	}

	n := &model.Notification{
		UserID: userID,
		Title:  "Points earned",
	}
	switch model.RewardSource(ev.Source) {
	case model.SourceComplaint:
		n.ComplaintID = &sourceID
		n.Message = fmt.Sprintf("You earned %d points for a resolved complaint.", ev.Points)
	default:
		n.Message = fmt.Sprintf("You earned %d points for a verified task.", ev.Points)
	}
	if err := c.notify(ctx, RoutingKeyRewardAwarded, n); err != nil {
		return err
	}

	// Keyed by source, not message id, so a redelivery after a failed
	// MarkMessageProcessed or a republished outbox row is still applied once.
	// The cache is rebuildable from Postgres; a miss here is not retried.
	if c.scores != nil {
		awardID := ev.Source + ":" + sourceID.String()
		if _, err := c.scores.IncrementScoreOnce(ctx, awardID, userID, ev.Points); err != nil {
			c.log.WithError(err).WithField("user_id", userID).Warn("leaderboard increment failed")
		}
	}
	return nil
}

func (c *NotificationConsumer) Stop() {
	close(c.done)
	c.wg.Wait()
	c.log.Info("consumers stopped")
}
