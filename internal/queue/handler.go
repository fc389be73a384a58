package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/pipeline"
	"github.com/OFFIS-RIT/dglink/pkg/similarity"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

// MaxRetries is how often a failing message is retried before it goes to
// the dead letter queue.
var MaxRetries = 10

const retriesHeader = "x-retries"

// Handler runs the jobs of the work queues.
type Handler struct {
	Pipeline *pipeline.Pipeline
	Storage  store.ArtifactStorage
	// Projects is asked for the project list when a build job names none.
	Projects loader.ProjectLister
	// Sink is optional; publish jobs fail without one.
	Sink     store.GraphSink
	Score    similarity.Options
	Snapshot string
	Events   Publisher
}

// Handle runs the job in body according to the queue it came from.
func (h *Handler) Handle(ctx context.Context, queueName string, body []byte) error {
	msg, err := DecodeJobMsg(body)
	if err != nil {
		return err
	}

	var event JobEvent
	switch queueName {
	case BuildQueue:
		event, err = h.build(ctx, msg)
	case ScoreQueue:
		event, err = h.score(ctx, msg)
	case PublishQueue:
		event, err = h.publish(ctx, msg)
	default:
		return fmt.Errorf("unknown queue %s", queueName)
	}
	if err != nil {
		return err
	}

	event.CorrelationID = msg.CorrelationID
	event.Queue = queueName
	h.announce(event)
	return nil
}

func (h *Handler) build(ctx context.Context, msg JobMsg) (JobEvent, error) {
	ids := msg.ProjectIDs
	if len(ids) == 0 {
		if h.Projects == nil {
			return JobEvent{}, fmt.Errorf("build job %s names no projects", msg.CorrelationID)
		}
		var err error
		if ids, err = h.Projects.Projects(ctx); err != nil {
			return JobEvent{}, fmt.Errorf("failed to list projects: %w", err)
		}
	}

	res, err := h.Pipeline.Build(ctx, ids)
	if err != nil {
		return JobEvent{}, err
	}
	if err := pipeline.Snapshot(ctx, h.Storage, res.Graph, res.Statuses); err != nil {
		return JobEvent{}, err
	}
	return JobEvent{Nodes: res.Graph.Nodes.Len(), Edges: res.Graph.Edges.Len(), Statuses: len(res.Statuses)}, nil
}

func (h *Handler) score(ctx context.Context, msg JobMsg) (JobEvent, error) {
	opts := h.Score
	if msg.Cutoff != nil {
		opts.Cutoff = *msg.Cutoff
	}
	preds, err := pipeline.Score(ctx, h.Storage, opts)
	if err != nil {
		return JobEvent{}, err
	}
	return JobEvent{Predictions: len(preds)}, nil
}

func (h *Handler) publish(ctx context.Context, msg JobMsg) (JobEvent, error) {
	if h.Sink == nil {
		return JobEvent{}, fmt.Errorf("no graph sink configured")
	}
	name := msg.Snapshot
	if name == "" {
		name = h.Snapshot
	}
	return JobEvent{}, pipeline.Publish(ctx, h.Storage, h.Sink, name)
}

func (h *Handler) announce(event JobEvent) {
	if h.Events == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("[Queue] Failed to marshal event", "err", err)
		return
	}
	if err := PublishTopic(h.Events, "job."+event.Queue+".done", data); err != nil {
		logger.Error("[Queue] Failed to publish event", "correlation_id", event.CorrelationID, "err", err)
	}
}

// HandleFailure routes a failed delivery to the retry queue, or to the dead
// letter queue once MaxRetries is reached. The delivery is acked after the
// copy was published and requeued if publishing fails.
func HandleFailure(p Publisher, msg amqp091.Delivery, queueName string) {
	retries := retryCount(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= MaxRetries {
		target = queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", target)
	} else {
		headers[retriesHeader] = int32(retries + 1)
	}

	pubErr := p.Publish("", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if pubErr != nil {
		logger.Error("Failed to publish failed message", "queue", target, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func retryCount(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
