package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tnqbao/gau-media-service/config"
)

func diskConfig(disks, buckets string) *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.Minio.Bucket = "media"
	cfg.S3.Bucket = "media-s3"
	cfg.Media.Disks = config.ParseDiskMap(disks)
	cfg.Media.DiskBuckets = config.ParseDiskMap(buckets)
	return cfg
}

func TestDiskKeyspaceSeparatesSharedBucket(t *testing.T) {
	cfg := diskConfig("public=minio,private=minio", "")

	public := DiskKeyspace(cfg, "public", DriverMinio)
	private := DiskKeyspace(cfg, "private", DriverMinio)

	assert.Equal(t, Keyspace{Driver: DriverMinio, Bucket: "media", Prefix: "public"}, public)
	assert.Equal(t, "private/uploads/a.pdf", private.Key("/uploads//a.pdf"))
	assert.Equal(t, "public/uploads/", public.ListPrefix("uploads"))
	assert.Equal(t, "public/", public.ListPrefix(""))
	assert.Equal(t, "uploads/a.png", public.Path("public/uploads/a.png"))
	assert.False(t, public.Overlaps(private))
	assert.NoError(t, checkKeyspaces(cfg))
}

func TestDiskKeyspaceDedicatedBucket(t *testing.T) {
	cfg := diskConfig("public=minio,archive=s3", "archive=cold-archive")

	archive := DiskKeyspace(cfg, "archive", DriverS3)
	assert.Equal(t, Keyspace{Driver: DriverS3, Bucket: "cold-archive"}, archive)
	assert.Equal(t, "uploads/a.pdf", archive.Key("uploads/a.pdf"))
	assert.Equal(t, "uploads/a.pdf", archive.Path("uploads/a.pdf"))
	assert.NoError(t, checkKeyspaces(cfg))
}

func TestInitDisksRejectsOverlappingKeyspaces(t *testing.T) {
	cases := map[string]*config.EnvConfig{
		"dedicated bucket equals shared bucket": diskConfig("public=minio,private=minio", "private=media"),
		"two disks own one bucket":              diskConfig("a=s3,b=s3", "a=shared,b=shared"),
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := InitDisks(context.Background(), cfg, nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "share the same")
		})
	}
}

func TestKeyspaceOverlaps(t *testing.T) {
	base := Keyspace{Driver: DriverMinio, Bucket: "media", Prefix: "media"}

	assert.True(t, base.Overlaps(Keyspace{Driver: DriverMinio, Bucket: "media", Prefix: "media/private"}))
	assert.False(t, base.Overlaps(Keyspace{Driver: DriverMinio, Bucket: "media", Prefix: "media-private"}))
	assert.False(t, base.Overlaps(Keyspace{Driver: DriverS3, Bucket: "media", Prefix: "media"}))
	assert.False(t, base.Overlaps(Keyspace{Driver: DriverMinio, Bucket: "other"}))
}

func TestURLCacheTTLStaysBelowPresignExpiry(t *testing.T) {
	cfg := &config.EnvConfig{}
	cfg.Redis.URLTTL = 2 * time.Hour
	cfg.Media.PresignExpiry = time.Hour
	assert.Equal(t, 30*time.Minute, URLCacheTTL(cfg))

	cfg.Redis.URLTTL = 10 * time.Minute
	assert.Equal(t, 10*time.Minute, URLCacheTTL(cfg))

	cfg.Media.PresignExpiry = 0
	cfg.Redis.URLTTL = 2 * time.Hour
	assert.Equal(t, 2*time.Hour, URLCacheTTL(cfg))
}
