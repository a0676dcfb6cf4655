package infra_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/glebarez/sqlite"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/infra"
	"github.com/tnqbao/gau-media-service/media"
	"github.com/tnqbao/gau-media-service/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAvatarVariantsAreCoveredTo200(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.Media{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	fs := afero.NewMemMapFs()
	library := media.NewLibrary(media.Config{
		Disks:   infra.NewDiskManager(map[string]media.Disk{"public": infra.NewLocalDiskFs(fs, "http://cdn")}),
		Store:   repository.NewMediaRepository(db),
		Images:  infra.NewImageProcessor(),
		TempDir: t.TempDir(),
	})

	var buf bytes.Buffer
	photo := imaging.New(4000, 3000, color.NRGBA{R: 180, G: 90, B: 40, A: 255})
	require.NoError(t, imaging.Encode(&buf, photo, imaging.JPEG))
	src := filepath.Join(t.TempDir(), "me.jpg")
	require.NoError(t, os.WriteFile(src, buf.Bytes(), 0o600))

	owner := media.OwnerRef{Type: "User", ID: "7", Collections: map[string]entity.CollectionConfig{
		"avatar": {
			Kind:   entity.KindImage,
			Width:  200,
			Height: 200,
			Fit:    entity.FitCover,
			Extensions: entity.ExtensionList{
				{Extension: "webp", Quality: 80},
				{Extension: "jpg"},
			},
		},
	}}

	records, err := library.Attach(owner, media.NewUpload(src, "me.jpg", "image/jpeg")).
		ToCollection(context.Background(), "avatar")
	require.NoError(t, err)
	require.Len(t, records, 2)

	formats := map[string]string{"webp": "webp", "jpg": "jpeg"}
	for _, rec := range records {
		assert.Regexp(t, `^user/avatar/[0-9A-Z]{26}\.`+rec.Extension+`$`, rec.Path)

		data, err := afero.ReadFile(fs, rec.Path)
		require.NoError(t, err)
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, formats[rec.Extension], format)
		assert.Equal(t, 200, cfg.Width)
		assert.Equal(t, 200, cfg.Height)
		require.NotNil(t, rec.Size)
		assert.EqualValues(t, len(data), *rec.Size)
	}
}
