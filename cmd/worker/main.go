package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dglink/internal/app"
	"github.com/OFFIS-RIT/dglink/internal/config"
	"github.com/OFFIS-RIT/dglink/internal/queue"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.InitLogger(cfg, "worker")
	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	defer a.Close()

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		logger.Fatal("Could not open artifact storage", "err", err)
	}
	repo, err := a.Repository(ctx)
	if err != nil {
		logger.Fatal("Could not open repository", "err", err)
	}
	p, err := a.Pipeline(repo)
	if err != nil {
		logger.Fatal("Could not configure extractors", "err", err)
	}
	scoreOpts, err := a.ScoreOptions()
	if err != nil {
		logger.Fatal("Could not load similarity weights", "err", err)
	}
	sink, err := a.Sink(ctx)
	if err != nil {
		logger.Fatal("Could not open graph sink", "err", err)
	}

	// Init rabbitmq
	conn := queue.Init(cfg.RabbitMQURL)
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	handler := &queue.Handler{
		Pipeline: p,
		Storage:  st,
		Projects: repo,
		Sink:     sink,
		Score:    scoreOpts,
		Snapshot: cfg.SnapshotName,
		Events:   ch,
	}

	// One consumer channel with prefetch 1: builds, scoring and publishing
	// all rewrite the same artifacts, so only one job runs at a time.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}
	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				qName+"_consumer",
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("Listening for messages", "queues", queue.Queues)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				if err := handler.Handle(ctx, qm.queueName, qm.msg.Body); err != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", err)
					queue.HandleFailure(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				d := time.Since(startTime)
				logger.Info(
					"Processing time",
					"duration", fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60),
				)
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
