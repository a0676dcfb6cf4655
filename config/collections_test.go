package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/entity"
)

const sampleCollections = `
User:
  table: users
  collections:
    avatar:
      type: image
      width: 200
      height: 200
      fit: cover
      extensions:
        webp: 80
        jpg:
    invoice:
      type: file
      disk: private
      visibility: private
post:
  table: posts
  key: uuid
  collections:
    gallery:
      extensions: [png, webp]
`

func TestParseCollections(t *testing.T) {
	registry, err := ParseCollections([]byte(sampleCollections))
	require.NoError(t, err)

	user, ok := registry.Owner("USER")
	require.True(t, ok)
	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "id", user.Key)

	avatar := user.Collections["avatar"]
	assert.Equal(t, entity.KindImage, avatar.Kind)
	assert.Equal(t, entity.FitCover, avatar.Fit)
	assert.Equal(t, entity.ExtensionList{{Extension: "webp", Quality: 80}, {Extension: "jpg"}}, avatar.Extensions)
	assert.Equal(t, "public", avatar.DiskName())
	assert.Equal(t, "private", user.Collections["invoice"].DiskName())

	post, ok := registry.Owner("post")
	require.True(t, ok)
	assert.Equal(t, "uuid", post.Key)
	assert.Equal(t, entity.ExtensionList{{Extension: "png"}, {Extension: "webp"}}, post.Collections["gallery"].Extensions)

	_, ok = registry.Owner("comment")
	assert.False(t, ok)
}

func TestLoadCollectionsMissingFile(t *testing.T) {
	registry, err := LoadCollections(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Empty(t, registry)
}

func TestLoadCollectionsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collections.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user: [unterminated"), 0o600))

	_, err := LoadCollections(path)
	assert.Error(t, err)
}

func TestParseDiskMap(t *testing.T) {
	disks := ParseDiskMap(" public=local, media = MINIO ,s3,")
	assert.Equal(t, map[string]string{"public": "local", "media": "minio", "s3": "s3"}, disks)
}

func TestLoadEnvConfigDefaults(t *testing.T) {
	t.Setenv("MEDIA_DISKS", "")
	t.Setenv("MEDIA_FETCH_TIMEOUT", "5")
	t.Setenv("MEDIA_PRESIGN_EXPIRY", "nope")

	cfg := LoadEnvConfig()
	assert.Equal(t, map[string]string{"public": "local"}, cfg.Media.Disks)
	assert.Equal(t, "5s", cfg.Media.FetchTimeout.String())
	assert.Equal(t, "1h0m0s", cfg.Media.PresignExpiry.String())
	assert.Equal(t, "collections.yaml", cfg.Media.CollectionsFile)
}
