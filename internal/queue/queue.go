package queue

import (
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

const (
	BuildQueue   = "build_queue"
	ScoreQueue   = "score_queue"
	PublishQueue = "publish_queue"

	EventsExchange = "dglink_events"
)

// Queues lists every work queue the worker consumes.
var Queues = []string{BuildQueue, ScoreQueue, PublishQueue}

// RetryDelay is how long a failed message waits in the retry queue before
// it is dead-lettered back onto its work queue.
var RetryDelay = 10 * time.Second

// Publisher is the part of *amqp091.Channel used to send messages.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func Init(url string) *amqp091.Connection {
	conn, err := amqp091.Dial(url)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

// SetupQueues declares every queue together with its dead letter queue
// and its delayed retry queue, plus the events exchange.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	if err := ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		return err
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			logger.Error("QueueDeclare failed", "queue", name, "err", err)
			return err
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			logger.Error("QueueDeclare failed", "queue", dlqName, "err", err)
			return err
		}

		retryName := name + "_retry"
		if _, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(RetryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		); err != nil {
			logger.Error("QueueDeclare failed", "queue", retryName, "err", err)
			return err
		}
	}
	return nil
}

func PublishFIFO(p Publisher, queueName string, data []byte) error {
	return p.Publish("", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

// PublishTopic announces an event on the events exchange.
func PublishTopic(p Publisher, topic string, data []byte) error {
	return p.Publish(EventsExchange, topic, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}
