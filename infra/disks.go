package infra

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
	"github.com/tnqbao/gau-media-service/media"
)

const (
	DriverLocal = "local"
	DriverMinio = "minio"
	DriverS3    = "s3"
)

// DiskManager resolves logical disk names to configured backends.
type DiskManager struct {
	disks map[string]media.Disk
}

func NewDiskManager(disks map[string]media.Disk) *DiskManager {
	return &DiskManager{disks: disks}
}

// Keyspace is where a disk keeps its objects: a bucket and a key prefix
// inside it.
type Keyspace struct {
	Driver string
	Bucket string
	Prefix string
}

// DiskKeyspace resolves the keyspace of an object store disk. A disk with a
// dedicated bucket in MEDIA_DISK_BUCKETS owns that bucket. Other disks share
// the driver's bucket under a prefix named after the disk.
func DiskKeyspace(cfg *config.EnvConfig, name, driver string) Keyspace {
	ks := Keyspace{Driver: driver}
	if bucket := cfg.Media.DiskBuckets[name]; bucket != "" {
		ks.Bucket = bucket
		return ks
	}
	switch driver {
	case DriverMinio:
		ks.Bucket = cfg.Minio.Bucket
	case DriverS3:
		ks.Bucket = cfg.S3.Bucket
	}
	ks.Prefix = clean(name)
	return ks
}

// Overlaps reports whether one keyspace can list or overwrite keys of the other.
func (k Keyspace) Overlaps(other Keyspace) bool {
	if k.Driver != other.Driver || k.Bucket != other.Bucket {
		return false
	}
	if k.Prefix == "" || other.Prefix == "" || k.Prefix == other.Prefix {
		return true
	}
	return strings.HasPrefix(k.Prefix+"/", other.Prefix+"/") || strings.HasPrefix(other.Prefix+"/", k.Prefix+"/")
}

// Key maps a disk path to its object key.
func (k Keyspace) Key(p string) string {
	p = clean(p)
	if k.Prefix == "" {
		return p
	}
	if p == "" {
		return k.Prefix
	}
	return k.Prefix + "/" + p
}

// ListPrefix is the object prefix that lists everything under dir.
func (k Keyspace) ListPrefix(dir string) string {
	if key := k.Key(dir); key != "" {
		return key + "/"
	}
	return ""
}

// Path maps an object key back to a disk path.
func (k Keyspace) Path(key string) string {
	if k.Prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, k.Prefix+"/")
}

// URLCacheTTL is MEDIA_URL_CACHE_TTL capped at half the presign expiry, so
// a cached presigned URL stays valid for a while after it is served.
func URLCacheTTL(cfg *config.EnvConfig) time.Duration {
	ttl := cfg.Redis.URLTTL
	if limit := cfg.Media.PresignExpiry / 2; limit > 0 && ttl > limit {
		ttl = limit
	}
	return ttl
}

// checkKeyspaces fails when two object store disks would share keys.
func checkKeyspaces(cfg *config.EnvConfig) error {
	names := make([]string, 0, len(cfg.Media.Disks))
	for name, driver := range cfg.Media.Disks {
		if driver == DriverMinio || driver == DriverS3 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for i, a := range names {
		ka := DiskKeyspace(cfg, a, cfg.Media.Disks[a])
		for _, b := range names[i+1:] {
			if ka.Overlaps(DiskKeyspace(cfg, b, cfg.Media.Disks[b])) {
				return fmt.Errorf("disks %s and %s share the same %s bucket keys", a, b, ka.Driver)
			}
		}
	}
	return nil
}

// InitDisks builds every disk named in MEDIA_DISKS. minio and redis may be
// nil when no disk needs them; without redis URLs are not cached.
func InitDisks(ctx context.Context, cfg *config.EnvConfig, minio *MinioClient, redis *RedisClient) (*DiskManager, error) {
	if err := checkKeyspaces(cfg); err != nil {
		return nil, err
	}

	urlTTL := URLCacheTTL(cfg)

	disks := make(map[string]media.Disk, len(cfg.Media.Disks))
	for name, driver := range cfg.Media.Disks {
		var disk media.Disk
		switch driver {
		case DriverLocal:
			root := path.Join(cfg.Local.Root, name)
			disk = NewLocalDisk(root, cfg.Local.BaseURL+"/"+url.PathEscape(name))
		case DriverMinio:
			if minio == nil {
				return nil, fmt.Errorf("disk %s uses minio but MinIO is not configured", name)
			}
			ks := DiskKeyspace(cfg, name, driver)
			if err := minio.EnsureBucket(ctx, ks.Bucket); err != nil {
				return nil, fmt.Errorf("disk %s: %w", name, err)
			}
			publicURL := cfg.Minio.PublicURL
			if _, dedicated := cfg.Media.DiskBuckets[name]; dedicated {
				publicURL = ""
			}
			disk = NewMinioDisk(minio, ks, publicURL, cfg.Media.PresignExpiry)
		case DriverS3:
			s3Disk, err := NewS3Disk(ctx, cfg, DiskKeyspace(cfg, name, driver))
			if err != nil {
				return nil, fmt.Errorf("disk %s: %w", name, err)
			}
			disk = s3Disk
		default:
			return nil, fmt.Errorf("disk %s has unknown driver %q", name, driver)
		}

		if redis != nil {
			disk = NewCachedDisk(name, disk, redis, urlTTL)
		}
		disks[name] = disk
	}
	return NewDiskManager(disks), nil
}

func (m *DiskManager) Disk(name string) (media.Disk, error) {
	disk, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("disk %s is not configured", name)
	}
	return disk, nil
}

func (m *DiskManager) Names() []string {
	names := make([]string, 0, len(m.disks))
	for name := range m.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// URLCache stores resolved URLs by key.
type URLCache interface {
	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedDisk caches URL lookups of the wrapped disk. Writes, deletes and
// visibility changes drop the cached entry.
type CachedDisk struct {
	media.Disk
	name  string
	cache URLCache
	ttl   time.Duration
}

func NewCachedDisk(name string, disk media.Disk, cache URLCache, ttl time.Duration) *CachedDisk {
	return &CachedDisk{Disk: disk, name: name, cache: cache, ttl: ttl}
}

func (d *CachedDisk) key(p string) string {
	return "media:url:" + d.name + ":" + clean(p)
}

func (d *CachedDisk) URL(ctx context.Context, p string) (string, error) {
	if cached, err := d.cache.GetString(ctx, d.key(p)); err == nil && cached != "" {
		return cached, nil
	}
	u, err := d.Disk.URL(ctx, p)
	if err != nil {
		return "", err
	}
	_ = d.cache.SetString(ctx, d.key(p), u, d.ttl)
	return u, nil
}

func (d *CachedDisk) Put(ctx context.Context, p string, r io.Reader, size int64, contentType string) error {
	if err := d.Disk.Put(ctx, p, r, size, contentType); err != nil {
		return err
	}
	_ = d.cache.Delete(ctx, d.key(p))
	return nil
}

func (d *CachedDisk) Delete(ctx context.Context, p string) error {
	if err := d.Disk.Delete(ctx, p); err != nil {
		return err
	}
	_ = d.cache.Delete(ctx, d.key(p))
	return nil
}

func (d *CachedDisk) SetVisibility(ctx context.Context, p string, visibility entity.Visibility) error {
	if err := d.Disk.SetVisibility(ctx, p, visibility); err != nil {
		return err
	}
	_ = d.cache.Delete(ctx, d.key(p))
	return nil
}
