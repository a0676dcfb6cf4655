package produce

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-media-service/media"
)

const (
	MediaExchange    = "media.exchange"
	MediaEventsQueue = "media.events"
)

// MediaEventMessage is published after a media record is created, updated or
// deleted. The routing key is the event type.
type MediaEventMessage struct {
	Type       string `json:"type"`
	MediaID    string `json:"media_id"`
	OwnerType  string `json:"owner_type"`
	OwnerID    string `json:"owner_id"`
	Collection string `json:"collection"`
	Extension  string `json:"extension"`
	Disk       string `json:"disk"`
	Path       string `json:"path"`
	Size       *int64 `json:"size,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type MediaEventService struct {
	publisher Publisher
}

func InitMediaEventService(channel *amqp.Channel) *MediaEventService {
	err := channel.ExchangeDeclare(
		MediaExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Media exchange: " + err.Error())
	}

	declareBoundQueue(channel, MediaEventsQueue, MediaExchange,
		media.EventCreated, media.EventUpdated, media.EventDeleted)

	return NewMediaEventService(channel)
}

func NewMediaEventService(publisher Publisher) *MediaEventService {
	return &MediaEventService{publisher: publisher}
}

func (s *MediaEventService) PublishMediaEvent(ctx context.Context, event media.Event) error {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	message := MediaEventMessage{
		Type:       event.Type,
		MediaID:    event.Media.ID.String(),
		OwnerType:  event.Media.OwnerType,
		OwnerID:    event.Media.OwnerID,
		Collection: event.Media.Collection,
		Extension:  event.Media.Extension,
		Disk:       event.Media.Disk,
		Path:       event.Media.Path,
		Size:       event.Media.Size,
		Timestamp:  occurred.Unix(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal media event: %w", err)
	}

	return s.publisher.PublishWithContext(
		ctx,
		MediaExchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    occurred,
		},
	)
}
