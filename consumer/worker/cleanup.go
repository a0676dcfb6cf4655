package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-media-service/cleanup"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/media"
)

const maxRetries = 3

// Sweep runs a cleanup sweep.
type Sweep interface {
	Run(ctx context.Context, opts cleanup.Options) (*cleanup.Report, error)
}

type CleanupConsumer struct {
	channel    *amqp.Channel
	sweeper    Sweep
	logger     media.Logger
	retryDelay time.Duration
}

func NewCleanupConsumer(channel *amqp.Channel, sweeper Sweep, logger media.Logger) *CleanupConsumer {
	return &CleanupConsumer{
		channel:    channel,
		sweeper:    sweeper,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

func (c *CleanupConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.CleanupQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register cleanup consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Cleanup Consumer] Started listening for cleanup jobs on queue: %s", produce.CleanupQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Cleanup Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Cleanup Consumer] Channel closed")
					return
				}
				c.handle(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *CleanupConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var job produce.CleanupJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Cleanup Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	opts := cleanup.Options{Orphaned: job.Orphaned, Missing: job.Missing, Unused: job.Unused, DryRun: job.DryRun}
	c.logger.InfoWithContextf(ctx, "[Cleanup Consumer] Received job from %s (orphaned=%t missing=%t unused=%t dry_run=%t)",
		job.RequestedBy, opts.Orphaned, opts.Missing, opts.Unused, opts.DryRun)

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var report *cleanup.Report
		report, err = c.sweeper.Run(ctx, opts)
		if err == nil {
			for _, line := range report.Summary() {
				c.logger.InfoWithContextf(ctx, "[Cleanup Consumer] %s", line)
			}
			_ = msg.Ack(false)
			return
		}
		if errors.Is(err, cleanup.ErrNoOperation) {
			c.logger.WarningWithContextf(ctx, "[Cleanup Consumer] Dropping job without operation")
			_ = msg.Nack(false, false)
			return
		}

		c.logger.ErrorWithContextf(ctx, err, "[Cleanup Consumer] Attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * c.retryDelay)
		}
	}

	// A later scheduled sweep covers whatever this one missed.
	c.logger.ErrorWithContextf(ctx, err, "[Cleanup Consumer] Failed after %d attempts, dropping job", maxRetries)
	_ = msg.Nack(false, false)
}
