package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-media-service/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Reconciler keeps media records and the bytes they point to in step.
//
// Physical deletes it performs are best-effort: a failure is logged and
// counted but never returned, since the record store is authoritative.
type Reconciler struct {
	store   Store
	disks   Disks
	events  EventPublisher
	logger  Logger
	metrics *instruments
}

func NewReconciler(store Store, disks Disks, events EventPublisher, logger Logger) *Reconciler {
	if events == nil {
		events = nopPublisher{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Reconciler{
		store:   store,
		disks:   disks,
		events:  events,
		logger:  logger,
		metrics: newInstruments(),
	}
}

// Persist upserts the record of a written artifact, keyed by owner,
// collection and extension.
func (r *Reconciler) Persist(ctx context.Context, owner Owner, collection string, art Artifact, metadata map[string]any) (*entity.Media, error) {
	record := &entity.Media{
		ID:         uuid.New(),
		OwnerType:  owner.MediaOwnerType(),
		OwnerID:    owner.MediaOwnerID(),
		Collection: collection,
		Path:       strings.TrimLeft(art.Path, "/"),
		Extension:  NormalizeExtension(art.Extension),
		Disk:       art.Disk,
		Size:       r.readSize(ctx, art.Disk, art.Path),
	}
	if len(metadata) > 0 {
		record.Metadata = metadata
	}

	prev, err := r.store.Upsert(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist media record %s/%s: %w", collection, record.Extension, err)
	}

	if prev == nil {
		r.publish(ctx, EventCreated, record)
		return record, nil
	}

	r.OnRecordSuperseded(ctx, prev, record)
	r.publish(ctx, EventUpdated, record)
	return record, nil
}

// Update saves a directly mutated record and removes the old bytes when its
// path or disk changed.
func (r *Reconciler) Update(ctx context.Context, record *entity.Media) error {
	record.Path = strings.TrimLeft(record.Path, "/")
	record.Extension = NormalizeExtension(record.Extension)

	prev, err := r.store.Update(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to update media record %s: %w", record.ID, err)
	}
	r.OnRecordSuperseded(ctx, prev, record)
	r.publish(ctx, EventUpdated, record)
	return nil
}

// OnRecordSuperseded must be called after a record update commits. It deletes
// the old physical object when the record moved to another path or disk.
func (r *Reconciler) OnRecordSuperseded(ctx context.Context, old, updated *entity.Media) {
	if old == nil || updated == nil || !updated.Moved(old) {
		return
	}
	if old.Path == "" || old.Disk == "" {
		return
	}
	if err := r.deletePhysical(ctx, old.Disk, old.Path); err != nil {
		r.logger.ErrorWithContextf(ctx, err, "[Media Reconciler] Failed to delete old media file %s on disk %s (media_id=%s)",
			old.Path, old.Disk, updated.ID)
	}
}

// OnRecordRemoved must be called after a record delete commits. It deletes
// the physical object of the record.
func (r *Reconciler) OnRecordRemoved(ctx context.Context, record *entity.Media) {
	if record == nil {
		return
	}
	if err := r.deletePhysical(ctx, record.Disk, record.Path); err != nil {
		r.logger.ErrorWithContextf(ctx, err, "[Media Reconciler] Failed to delete media file %s on disk %s (media_id=%s)",
			record.Path, record.Disk, record.ID)
	}
}

// Remove deletes one record and then its bytes.
func (r *Reconciler) Remove(ctx context.Context, record *entity.Media) error {
	if err := r.store.Delete(ctx, record); err != nil {
		return fmt.Errorf("failed to delete media record %s: %w", record.ID, err)
	}
	r.OnRecordRemoved(ctx, record)
	r.publish(ctx, EventDeleted, record)
	return nil
}

// ClearCollection removes every record of a collection, or only those with the
// given extensions when any are passed. It returns how many were removed.
func (r *Reconciler) ClearCollection(ctx context.Context, owner Owner, collection string, extensions ...string) (int, error) {
	records, err := r.store.FindByCollection(ctx, owner.MediaOwnerType(), owner.MediaOwnerID(), collection)
	if err != nil {
		return 0, fmt.Errorf("failed to list media collection %s: %w", collection, err)
	}

	filter := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		if n := NormalizeExtension(ext); n != "" {
			filter[n] = struct{}{}
		}
	}

	removed := 0
	for i := range records {
		if len(filter) > 0 {
			if _, ok := filter[records[i].Extension]; !ok {
				continue
			}
		}
		if err := r.Remove(ctx, &records[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// OwnerDeleted cascades a permanent owner delete to every media record of the
// owner. Soft deletes (force=false) leave the media in place.
func (r *Reconciler) OwnerDeleted(ctx context.Context, owner Owner, force bool) (int, error) {
	if !force {
		return 0, nil
	}
	records, err := r.store.FindByOwner(ctx, owner.MediaOwnerType(), owner.MediaOwnerID())
	if err != nil {
		return 0, fmt.Errorf("failed to list media of %s %s: %w", owner.MediaOwnerType(), owner.MediaOwnerID(), err)
	}
	removed := 0
	for i := range records {
		if err := r.Remove(ctx, &records[i]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *Reconciler) readSize(ctx context.Context, diskName, path string) *int64 {
	disk, err := r.disks.Disk(diskName)
	if err != nil {
		r.logger.WarningWithContextf(ctx, "[Media Reconciler] Disk %s not resolvable while reading size of %s: %v", diskName, path, err)
		return nil
	}
	exists, err := disk.Exists(ctx, path)
	if err != nil || !exists {
		r.logger.WarningWithContextf(ctx, "[Media Reconciler] Written file %s not found on disk %s (err=%v)", path, diskName, err)
		return nil
	}
	size, err := disk.Size(ctx, path)
	if err != nil {
		r.logger.WarningWithContextf(ctx, "[Media Reconciler] Failed to read size of %s on disk %s: %v", path, diskName, err)
		return nil
	}
	return &size
}

func (r *Reconciler) deletePhysical(ctx context.Context, diskName, path string) error {
	path = strings.TrimLeft(path, "/")
	err := r.tryDelete(ctx, diskName, path)
	if err != nil {
		r.metrics.cleanupFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("media.disk", diskName)))
	}
	return err
}

func (r *Reconciler) tryDelete(ctx context.Context, diskName, path string) error {
	disk, err := r.disks.Disk(diskName)
	if err != nil {
		return cleanupError("delete file", err, "resolve disk %s", diskName)
	}
	exists, err := disk.Exists(ctx, path)
	if err != nil {
		return cleanupError("delete file", err, "check %s", path)
	}
	if !exists {
		return nil
	}
	if err := disk.Delete(ctx, path); err != nil {
		return cleanupError("delete file", err, "delete %s", path)
	}
	return nil
}

func (r *Reconciler) publish(ctx context.Context, eventType string, record *entity.Media) {
	event := Event{Type: eventType, Media: *record, OccurredAt: time.Now()}
	if err := r.events.PublishMediaEvent(ctx, event); err != nil {
		r.logger.WarningWithContextf(ctx, "[Media Reconciler] Failed to publish %s for media %s: %v", eventType, record.ID, err)
	}
}
