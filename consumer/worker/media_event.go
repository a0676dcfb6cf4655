package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/media"
)

// PathIndex answers whether a stored path is still referenced.
type PathIndex interface {
	PathInUse(ctx context.Context, disk, path string) (bool, error)
}

// MediaEventConsumer follows the media event stream. Deleting a record only
// makes a best-effort attempt at removing its file; this consumer retries
// that removal for files that survived.
type MediaEventConsumer struct {
	channel    *amqp.Channel
	disks      media.Disks
	paths      PathIndex
	logger     media.Logger
	retryDelay time.Duration
}

func NewMediaEventConsumer(channel *amqp.Channel, disks media.Disks, paths PathIndex, logger media.Logger) *MediaEventConsumer {
	return &MediaEventConsumer{
		channel:    channel,
		disks:      disks,
		paths:      paths,
		logger:     logger,
		retryDelay: 2 * time.Second,
	}
}

func (c *MediaEventConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.MediaEventsQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register media event consumer: %w", err)
	}

	c.logger.InfoWithContextf(ctx, "[Media Event Consumer] Started listening on queue: %s", produce.MediaEventsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.InfoWithContextf(ctx, "[Media Event Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.WarningWithContextf(ctx, "[Media Event Consumer] Channel closed")
					return
				}
				c.handle(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *MediaEventConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	var event produce.MediaEventMessage
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.ErrorWithContextf(ctx, err, "[Media Event Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	c.logger.InfoWithContextf(ctx, "[Media Event Consumer] %s %s/%s %s (media_id=%s, disk=%s, path=%s)",
		event.Type, event.OwnerType, event.OwnerID, event.Collection, event.MediaID, event.Disk, event.Path)

	if event.Type != media.EventDeleted {
		_ = msg.Ack(false)
		return
	}

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = c.reap(ctx, event.Disk, event.Path)
		if err == nil {
			_ = msg.Ack(false)
			return
		}

		c.logger.ErrorWithContextf(ctx, err, "[Media Event Consumer] Attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * c.retryDelay)
		}
	}

	c.logger.ErrorWithContextf(ctx, err, "[Media Event Consumer] Failed after %d attempts, requeueing message", maxRetries)
	_ = msg.Nack(false, true)
}

// reap removes the file of a deleted record unless it is gone already or
// another record took over the path.
func (c *MediaEventConsumer) reap(ctx context.Context, diskName, path string) error {
	if diskName == "" || path == "" {
		return nil
	}
	disk, err := c.disks.Disk(diskName)
	if err != nil {
		c.logger.WarningWithContextf(ctx, "[Media Event Consumer] Skipping %s on unknown disk %s", path, diskName)
		return nil
	}

	exists, err := disk.Exists(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to check %s on disk %s: %w", path, diskName, err)
	}
	if !exists {
		return nil
	}

	inUse, err := c.paths.PathInUse(ctx, diskName, path)
	if err != nil {
		return fmt.Errorf("failed to check references to %s: %w", path, err)
	}
	if inUse {
		return nil
	}

	if err := disk.Delete(ctx, path); err != nil {
		return fmt.Errorf("failed to delete %s on disk %s: %w", path, diskName, err)
	}
	c.logger.InfoWithContextf(ctx, "[Media Event Consumer] Removed leftover file %s on disk %s", path, diskName)
	return nil
}
