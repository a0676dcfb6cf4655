package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	CleanupQueue      = "media.cleanup"
	CleanupRoutingKey = "media.cleanup"
)

// CleanupJobMessage asks a worker to run a cleanup sweep.
type CleanupJobMessage struct {
	Orphaned    bool   `json:"orphaned"`
	Missing     bool   `json:"missing"`
	Unused      bool   `json:"unused"`
	DryRun      bool   `json:"dry_run"`
	RequestedBy string `json:"requested_by"`
	Timestamp   int64  `json:"timestamp"`
}

type CleanupService struct {
	publisher Publisher
}

// InitCleanupService expects the media exchange to be declared already.
func InitCleanupService(channel *amqp.Channel) *CleanupService {
	declareBoundQueue(channel, CleanupQueue, MediaExchange, CleanupRoutingKey)
	return NewCleanupService(channel)
}

func NewCleanupService(publisher Publisher) *CleanupService {
	return &CleanupService{publisher: publisher}
}

func (s *CleanupService) PublishCleanupJob(ctx context.Context, job CleanupJobMessage) error {
	job.Timestamp = time.Now().Unix()

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal cleanup job: %w", err)
	}

	return s.publisher.PublishWithContext(
		ctx,
		MediaExchange,
		CleanupRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
