package produce

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp.Channel the services publish through.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type Produce struct {
	MediaEvents *MediaEventService
	Cleanup     *CleanupService
}

var produceInstance *Produce

func InitProduce(channel *amqp.Channel) *Produce {
	if produceInstance != nil {
		return produceInstance
	}

	mediaEvents := InitMediaEventService(channel)
	if mediaEvents == nil {
		panic("Failed to initialize Media event service")
	}

	cleanup := InitCleanupService(channel)
	if cleanup == nil {
		panic("Failed to initialize Cleanup service")
	}

	produceInstance = &Produce{
		MediaEvents: mediaEvents,
		Cleanup:     cleanup,
	}

	return produceInstance
}

func GetProduce() *Produce {
	if produceInstance == nil {
		panic("Produce not initialized. Call InitProduce() first.")
	}
	return produceInstance
}

func declareBoundQueue(channel *amqp.Channel, queue, exchange string, routingKeys ...string) {
	_, err := channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare " + queue + " queue: " + err.Error())
	}

	for _, key := range routingKeys {
		if err := channel.QueueBind(queue, key, exchange, false, nil); err != nil {
			panic("Failed to bind " + queue + " queue: " + err.Error())
		}
	}
}
