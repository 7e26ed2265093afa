package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"prakriti-service/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName    = "prakriti.events"
	DLXExchangeName = "prakriti.events.dlx"

	QueueComplaintCreated   = "queue.complaint_created"
	QueueComplaintAssigned  = "queue.complaint_assigned"
	QueueComplaintStatus    = "queue.complaint_status"
	QueueSubmissionVerified = "queue.submission_verified"
	QueueRewardAwarded      = "queue.reward_awarded"

	reconnectDelay = 5 * time.Second
	publishTimeout = 5 * time.Second
	prefetchCount  = 10
	dlqMessageTTL  = int64(86400000) // 24h
)

type QueueConfig struct {
	QueueName     string
	RoutingKey    string
	DLQName       string
	DLQRoutingKey string
}

func queueConfig(queue, routingKey string) QueueConfig {
	return QueueConfig{
		QueueName:     queue,
		RoutingKey:    routingKey,
		DLQName:       queue + ".dlq",
		DLQRoutingKey: "dlq." + routingKey,
	}
}

// QueueConfigs lists the queues the notification consumer reads. Events
// without a queue here (task.created, task.submission.created) are routed
// by the exchange to whichever external consumers bind them.
var QueueConfigs = []QueueConfig{
	queueConfig(QueueComplaintCreated, RoutingKeyComplaintCreated),
	queueConfig(QueueComplaintAssigned, RoutingKeyComplaintAssigned),
	queueConfig(QueueComplaintStatus, RoutingKeyComplaintStatus),
	queueConfig(QueueSubmissionVerified, RoutingKeySubmissionVerified),
	queueConfig(QueueRewardAwarded, RoutingKeyRewardAwarded),
}

// Publisher sends one message to the events exchange.
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	mu      sync.RWMutex
	done    chan struct{}
	log     *logger.Logger
}

func NewRabbitMQ(url string, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		url:  url,
		done: make(chan struct{}),
		log:  log,
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	go rmq.handleReconnect()

	return rmq, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return err
	}

	r.conn = conn
	r.channel = ch
	r.log.Component("rabbitmq").Info("connected with DLQ configuration")
	return nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	for _, name := range []string{ExchangeName, DLXExchangeName} {
		err := ch.ExchangeDeclare(
			name,
			"topic",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("exchange declare %s: %w", name, err)
		}
	}

	for _, qc := range QueueConfigs {
		_, err := ch.QueueDeclare(
			qc.DLQName,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			amqp.Table{"x-message-ttl": dlqMessageTTL},
		)
		if err != nil {
			return fmt.Errorf("dlq declare %s: %w", qc.DLQName, err)
		}

		if err := ch.QueueBind(qc.DLQName, qc.DLQRoutingKey, DLXExchangeName, false, nil); err != nil {
			return fmt.Errorf("dlq bind %s: %w", qc.DLQName, err)
		}

		_, err = ch.QueueDeclare(
			qc.QueueName,
			true,
			false,
			false,
			false,
			amqp.Table{
				"x-dead-letter-exchange":    DLXExchangeName,
				"x-dead-letter-routing-key": qc.DLQRoutingKey,
			},
		)
		if err != nil {
			return fmt.Errorf("queue declare %s: %w", qc.QueueName, err)
		}

		if err := ch.QueueBind(qc.QueueName, qc.RoutingKey, ExchangeName, false, nil); err != nil {
			return fmt.Errorf("bind %s->%s: %w", qc.QueueName, qc.RoutingKey, err)
		}
	}
	return nil
}

func (r *RabbitMQ) handleReconnect() {
	log := r.log.Component("rabbitmq")
	for {
		r.mu.RLock()
		closed := r.conn.NotifyClose(make(chan *amqp.Error, 1))
		r.mu.RUnlock()

		select {
		case <-r.done:
			return
		case err := <-closed:
			if err != nil {
				log.WithError(err).Warn("disconnected")
			}

			r.mu.Lock()
			for {
				select {
				case <-r.done:
					r.mu.Unlock()
					return
				default:
				}
				if err := r.connect(); err != nil {
					log.WithError(err).Error("reconnect failed")
					time.Sleep(reconnectDelay)
					continue
				}
				break
			}
			r.mu.Unlock()
		}
	}
}

// Publish sends a persistent JSON message. messageID lets consumers
// deduplicate redeliveries.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil {
		return fmt.Errorf("channel not available")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := r.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (r *RabbitMQ) ConsumeQueue(queueName string) (<-chan amqp.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.channel == nil {
		return nil, fmt.Errorf("channel not available")
	}

	msgs, err := r.channel.Consume(
		queueName,
		"",    // consumer tag
		false, // manual ack for retry support
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queueName, err)
	}
	return msgs, nil
}

func (r *RabbitMQ) Close() {
	close(r.done)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
	r.log.Component("rabbitmq").Info("connection closed")
}
