package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Media is one stored artifact of a collection. The tuple
// (OwnerType, OwnerID, Collection, Extension) identifies it.
type Media struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerType  string            `json:"owner_type" gorm:"type:varchar(255);not null;index:idx_media_owner_collection,priority:1"`
	OwnerID    string            `json:"owner_id" gorm:"type:varchar(255);not null;index:idx_media_owner_collection,priority:2"`
	Collection string            `json:"collection" gorm:"type:varchar(255);not null;index:idx_media_owner_collection,priority:3"`
	Path       string            `json:"path" gorm:"type:varchar(1024);not null"`
	Extension  string            `json:"extension" gorm:"type:varchar(32);not null;index:idx_media_owner_collection,priority:4"`
	Disk       string            `json:"disk" gorm:"type:varchar(255);not null;index"`
	Size       *int64            `json:"size"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt  time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	URL string `json:"url,omitempty" gorm:"-"` // resolved from the disk on read
}

func (Media) TableName() string {
	return "media"
}

// Moved reports whether the physical object of m lives somewhere else than prev.
func (m *Media) Moved(prev *Media) bool {
	if prev == nil {
		return false
	}
	return m.Path != prev.Path || m.Disk != prev.Disk
}
