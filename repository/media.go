package repository

import (
	"context"
	"errors"
	"path"

	"github.com/tnqbao/gau-media-service/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Upsert inserts m or replaces the record with the same owner, collection and
// extension. On replace m takes over the existing ID and creation time and the
// previous state is returned.
func (r *MediaRepository) Upsert(ctx context.Context, m *entity.Media) (*entity.Media, error) {
	var prev *entity.Media
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.Media
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_type = ? AND owner_id = ? AND collection = ? AND extension = ?",
				m.OwnerType, m.OwnerID, m.Collection, m.Extension).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(m).Error
		}
		if err != nil {
			return err
		}

		prev = &existing
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		return tx.Save(m).Error
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

// Update saves m and returns the record as it was before.
func (r *MediaRepository) Update(ctx context.Context, m *entity.Media) (*entity.Media, error) {
	var prev entity.Media
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", m.ID).First(&prev).Error; err != nil {
			return err
		}
		m.CreatedAt = prev.CreatedAt
		return tx.Save(m).Error
	})
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

func (r *MediaRepository) FindByID(ctx context.Context, id string) (*entity.Media, error) {
	var m entity.Media
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) FindByCollection(ctx context.Context, ownerType, ownerID, collection string) ([]entity.Media, error) {
	var records []entity.Media
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND collection = ?", ownerType, ownerID, collection).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *MediaRepository) FindByOwner(ctx context.Context, ownerType, ownerID string) ([]entity.Media, error) {
	var records []entity.Media
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *MediaRepository) Delete(ctx context.Context, m *entity.Media) error {
	return r.db.WithContext(ctx).Delete(&entity.Media{}, "id = ?", m.ID).Error
}

func (r *MediaRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Media{}).Count(&count).Error
	return count, err
}

// EachChunk walks every record in primary key order, size records at a time.
// Returning an error from fn stops the walk.
func (r *MediaRepository) EachChunk(ctx context.Context, size int, fn func([]entity.Media) error) error {
	var batch []entity.Media
	result := r.db.WithContext(ctx).FindInBatches(&batch, size, func(_ *gorm.DB, _ int) error {
		chunk := make([]entity.Media, len(batch))
		copy(chunk, batch)
		return fn(chunk)
	})
	return result.Error
}

// Disks lists the distinct disks referenced by records.
func (r *MediaRepository) Disks(ctx context.Context) ([]string, error) {
	var disks []string
	err := r.db.WithContext(ctx).Model(&entity.Media{}).Distinct("disk").Order("disk").Pluck("disk", &disks).Error
	return disks, err
}

// PathsOnDisk returns the set of stored paths on disk.
func (r *MediaRepository) PathsOnDisk(ctx context.Context, disk string) (map[string]struct{}, error) {
	var paths []string
	err := r.db.WithContext(ctx).Model(&entity.Media{}).Where("disk = ?", disk).Pluck("path", &paths).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, nil
}

// DirectoriesOnDisk returns the distinct parent directories of the paths
// stored on disk.
func (r *MediaRepository) DirectoriesOnDisk(ctx context.Context, disk string) ([]string, error) {
	paths, err := r.PathsOnDisk(ctx, disk)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var dirs []string
	for p := range paths {
		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

// PathInUse reports whether any record still points at path on disk.
func (r *MediaRepository) PathInUse(ctx context.Context, disk, path string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Media{}).Where("disk = ? AND path = ?", disk, path).Count(&count).Error
	return count > 0, err
}
