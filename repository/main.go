package repository

import (
	"github.com/tnqbao/gau-media-service/infra"
	"gorm.io/gorm"
)

type Repository struct {
	MediaRepo *MediaRepository
	OwnerRepo *OwnerRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = NewRepository(infra.Postgres.DB)
	return repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		MediaRepo: NewMediaRepository(db),
		OwnerRepo: NewOwnerRepository(db),
	}
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}
