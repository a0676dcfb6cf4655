package produce

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/media"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	sent []published
}

func (f *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestPublishMediaEvent(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewMediaEventService(pub)
	size := int64(512)
	id := uuid.New()

	err := svc.PublishMediaEvent(context.Background(), media.Event{
		Type: media.EventUpdated,
		Media: entity.Media{
			ID: id, OwnerType: "User", OwnerID: "7", Collection: "avatar",
			Extension: "webp", Disk: "public", Path: "user/avatar/a.webp", Size: &size,
		},
		OccurredAt: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)

	sent := pub.sent[0]
	assert.Equal(t, MediaExchange, sent.exchange)
	assert.Equal(t, media.EventUpdated, sent.key)
	assert.Equal(t, uint8(amqp.Persistent), sent.msg.DeliveryMode)

	var msg MediaEventMessage
	require.NoError(t, json.Unmarshal(sent.msg.Body, &msg))
	assert.Equal(t, id.String(), msg.MediaID)
	assert.Equal(t, "user/avatar/a.webp", msg.Path)
	assert.Equal(t, int64(1700000000), msg.Timestamp)
	require.NotNil(t, msg.Size)
	assert.Equal(t, size, *msg.Size)
}

func TestPublishCleanupJob(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewCleanupService(pub)

	require.NoError(t, svc.PublishCleanupJob(context.Background(), CleanupJobMessage{Missing: true, DryRun: true}))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, CleanupRoutingKey, pub.sent[0].key)

	var job CleanupJobMessage
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &job))
	assert.True(t, job.Missing)
	assert.True(t, job.DryRun)
	assert.False(t, job.Orphaned)
	assert.NotZero(t, job.Timestamp)
}
