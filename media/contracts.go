package media

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/tnqbao/gau-media-service/entity"
)

// Owner is implemented by any record type that can own media collections.
type Owner interface {
	MediaOwnerType() string
	MediaOwnerID() string
	MediaCollections() map[string]entity.CollectionConfig
}

// OwnerRef is a plain Owner value, handy when the owning record lives in
// another service and only its identity and collection table are known.
type OwnerRef struct {
	Type        string
	ID          string
	Collections map[string]entity.CollectionConfig
}

func (o OwnerRef) MediaOwnerType() string { return o.Type }
func (o OwnerRef) MediaOwnerID() string   { return o.ID }
func (o OwnerRef) MediaCollections() map[string]entity.CollectionConfig {
	return o.Collections
}

// Disk is a byte-oriented storage backend addressed by relative path.
type Disk interface {
	Exists(ctx context.Context, path string) (bool, error)
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, path string) error
	Size(ctx context.Context, path string) (int64, error)
	SetVisibility(ctx context.Context, path string, visibility entity.Visibility) error
	URL(ctx context.Context, path string) (string, error)
	AllFiles(ctx context.Context, dir string) ([]string, error)
}

// Disks resolves a logical disk name to its backend.
type Disks interface {
	Disk(name string) (Disk, error)
	Names() []string
}

// Store persists media records. Upsert and Update return the record as it
// was before the write, or nil when the record is new.
type Store interface {
	Upsert(ctx context.Context, m *entity.Media) (*entity.Media, error)
	Update(ctx context.Context, m *entity.Media) (*entity.Media, error)
	FindByCollection(ctx context.Context, ownerType, ownerID, collection string) ([]entity.Media, error)
	FindByOwner(ctx context.Context, ownerType, ownerID string) ([]entity.Media, error)
	Delete(ctx context.Context, m *entity.Media) error
}

// ImageOptions describe one re-encoding of a source image.
type ImageOptions struct {
	Width     int
	Height    int
	Fit       entity.Fit
	Quality   int
	Extension string
}

// ImageProcessor decodes, transforms and re-encodes images.
type ImageProcessor interface {
	Decode(r io.Reader) (image.Image, error)
	Encode(w io.Writer, img image.Image, opts ImageOptions) error
	CanEncode(ext string) bool
}

// Event types published after a media record is committed.
const (
	EventCreated = "media.created"
	EventUpdated = "media.updated"
	EventDeleted = "media.deleted"
)

type Event struct {
	Type       string       `json:"type"`
	Media      entity.Media `json:"media"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type EventPublisher interface {
	PublishMediaEvent(ctx context.Context, event Event) error
}

// Logger is the subset of the service logger the engine needs.
type Logger interface {
	InfoWithContextf(ctx context.Context, format string, args ...any)
	WarningWithContextf(ctx context.Context, format string, args ...any)
	ErrorWithContextf(ctx context.Context, err error, format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) InfoWithContextf(context.Context, string, ...any)         {}
func (nopLogger) WarningWithContextf(context.Context, string, ...any)      {}
func (nopLogger) ErrorWithContextf(context.Context, error, string, ...any) {}

type nopPublisher struct{}

func (nopPublisher) PublishMediaEvent(context.Context, Event) error { return nil }
