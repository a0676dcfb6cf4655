package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/cleanup"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/infra/produce"
	"github.com/tnqbao/gau-media-service/media"
)

type ackRecorder struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acks++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}
func (a *ackRecorder) Reject(uint64, bool) error { return nil }

func delivery(t *testing.T, ack *ackRecorder, payload any) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func discardLogger() *infra.LoggerClient {
	return infra.NewLoggerClient(slog.NewTextHandler(io.Discard, nil))
}

type stubSweep struct {
	calls []cleanup.Options
	errs  []error
}

func (s *stubSweep) Run(_ context.Context, opts cleanup.Options) (*cleanup.Report, error) {
	s.calls = append(s.calls, opts)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &cleanup.Report{DryRun: opts.DryRun}, nil
}

func TestCleanupConsumerRunsJob(t *testing.T) {
	sweep := &stubSweep{}
	c := NewCleanupConsumer(nil, sweep, discardLogger())
	ack := &ackRecorder{}

	c.handle(context.Background(), delivery(t, ack, produce.CleanupJobMessage{Missing: true, DryRun: true}))

	require.Len(t, sweep.calls, 1)
	assert.Equal(t, cleanup.Options{Missing: true, DryRun: true}, sweep.calls[0])
	assert.Equal(t, 1, ack.acks)
}

func TestCleanupConsumerRetriesThenDrops(t *testing.T) {
	boom := errors.New("db down")
	sweep := &stubSweep{errs: []error{boom, boom, boom}}
	c := NewCleanupConsumer(nil, sweep, discardLogger())
	c.retryDelay = 0
	ack := &ackRecorder{}

	c.handle(context.Background(), delivery(t, ack, produce.CleanupJobMessage{Orphaned: true}))

	assert.Len(t, sweep.calls, maxRetries)
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.False(t, ack.requeue)
}

func TestCleanupConsumerRecoversOnRetry(t *testing.T) {
	sweep := &stubSweep{errs: []error{errors.New("timeout"), nil}}
	c := NewCleanupConsumer(nil, sweep, discardLogger())
	c.retryDelay = 0
	ack := &ackRecorder{}

	c.handle(context.Background(), delivery(t, ack, produce.CleanupJobMessage{Unused: true}))

	assert.Len(t, sweep.calls, 2)
	assert.Equal(t, 1, ack.acks)
}

func TestCleanupConsumerDropsEmptyAndMalformedJobs(t *testing.T) {
	sweep := &stubSweep{errs: []error{cleanup.ErrNoOperation}}
	c := NewCleanupConsumer(nil, sweep, discardLogger())
	ack := &ackRecorder{}

	c.handle(context.Background(), delivery(t, ack, produce.CleanupJobMessage{}))
	assert.Len(t, sweep.calls, 1)
	assert.Equal(t, 1, ack.nacks)

	c.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{")})
	assert.Len(t, sweep.calls, 1)
	assert.Equal(t, 2, ack.nacks)
	assert.False(t, ack.requeue)
}

type stubPaths map[string]bool

func (s stubPaths) PathInUse(_ context.Context, disk, path string) (bool, error) {
	return s[disk+":"+path], nil
}

func newEventConsumer(t *testing.T, paths stubPaths) (*MediaEventConsumer, *infra.LocalDisk, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	disk := infra.NewLocalDiskFs(fs, "")
	disks := infra.NewDiskManager(map[string]media.Disk{"public": disk})
	c := NewMediaEventConsumer(nil, disks, paths, discardLogger())
	c.retryDelay = 0
	return c, disk, fs
}

func TestMediaEventConsumerReapsLeftoverFile(t *testing.T) {
	c, disk, fs := newEventConsumer(t, stubPaths{})
	ctx := context.Background()
	require.NoError(t, disk.Put(ctx, "user/avatar/a.webp", bytes.NewBufferString("x"), 1, ""))
	ack := &ackRecorder{}

	c.handle(ctx, delivery(t, ack, produce.MediaEventMessage{Type: media.EventDeleted, Disk: "public", Path: "user/avatar/a.webp"}))

	assert.Equal(t, 1, ack.acks)
	ok, _ := afero.Exists(fs, "user/avatar/a.webp")
	assert.False(t, ok)
}

func TestMediaEventConsumerKeepsReferencedFile(t *testing.T) {
	c, disk, fs := newEventConsumer(t, stubPaths{"public:user/avatar/a.webp": true})
	ctx := context.Background()
	require.NoError(t, disk.Put(ctx, "user/avatar/a.webp", bytes.NewBufferString("x"), 1, ""))
	ack := &ackRecorder{}

	c.handle(ctx, delivery(t, ack, produce.MediaEventMessage{Type: media.EventDeleted, Disk: "public", Path: "user/avatar/a.webp"}))

	assert.Equal(t, 1, ack.acks)
	ok, _ := afero.Exists(fs, "user/avatar/a.webp")
	assert.True(t, ok)
}

func TestMediaEventConsumerAcksOtherEvents(t *testing.T) {
	c, disk, fs := newEventConsumer(t, stubPaths{})
	ctx := context.Background()
	require.NoError(t, disk.Put(ctx, "user/avatar/a.webp", bytes.NewBufferString("x"), 1, ""))
	ack := &ackRecorder{}

	c.handle(ctx, delivery(t, ack, produce.MediaEventMessage{Type: media.EventCreated, Disk: "public", Path: "user/avatar/a.webp"}))
	c.handle(ctx, delivery(t, ack, produce.MediaEventMessage{Type: media.EventDeleted, Disk: "missing", Path: "x.png"}))

	assert.Equal(t, 2, ack.acks)
	ok, _ := afero.Exists(fs, "user/avatar/a.webp")
	assert.True(t, ok)
}
