package repository

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

type OwnerRepository struct {
	db *gorm.DB
}

func NewOwnerRepository(db *gorm.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// Exists reports whether table holds a row whose key column equals id.
func (r *OwnerRepository) Exists(ctx context.Context, table, key, id string) (bool, error) {
	if !identifierPattern.MatchString(table) || !identifierPattern.MatchString(key) {
		return false, fmt.Errorf("invalid owner table %q or key %q", table, key)
	}
	var count int64
	err := r.db.WithContext(ctx).Table(table).Where(fmt.Sprintf("%s = ?", key), id).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
