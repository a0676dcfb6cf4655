package infra

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
)

const visibilityTag = "visibility"

type MinioClient struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Endpoint string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, cfg.Minio.UseSSL)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	return &MinioClient{
		Admin:    madminClient,
		Client:   minioClient,
		Endpoint: endpoint,
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioClient) EnsureBucket(ctx context.Context, bucketName string) error {
	if bucketName == "" {
		return fmt.Errorf("bucketName cannot be empty")
	}

	exists, err := m.Client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.Client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Health reports whether the MinIO deployment answers admin requests and
// how many of its servers are online.
func (m *MinioClient) Health(ctx context.Context) (online int, total int, err error) {
	info, err := m.Admin.ServerInfo(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get MinIO server info: %w", err)
	}
	for _, server := range info.Servers {
		total++
		if server.State == "online" {
			online++
		}
	}
	return online, total, nil
}

// MinioDisk stores media under its keyspace. Visibility is kept as an object
// tag; private objects are served through presigned URLs.
type MinioDisk struct {
	client        *MinioClient
	bucket        string
	keys          Keyspace
	publicURL     string
	presignExpiry time.Duration
}

func NewMinioDisk(client *MinioClient, keys Keyspace, publicURL string, presignExpiry time.Duration) *MinioDisk {
	if publicURL == "" {
		publicURL = "http://" + client.Endpoint + "/" + keys.Bucket
	}
	return &MinioDisk{
		client:        client,
		bucket:        keys.Bucket,
		keys:          keys,
		publicURL:     strings.TrimRight(publicURL, "/"),
		presignExpiry: presignExpiry,
	}
}

func (d *MinioDisk) Exists(ctx context.Context, path string) (bool, error) {
	_, err := d.client.Client.StatObject(ctx, d.bucket, d.keys.Key(path), minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func (d *MinioDisk) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	_, err := d.client.Client.PutObject(ctx, d.bucket, d.keys.Key(path), r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserTags:    map[string]string{visibilityTag: string(entity.VisibilityPublic)},
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (d *MinioDisk) Delete(ctx context.Context, path string) error {
	if err := d.client.Client.RemoveObject(ctx, d.bucket, d.keys.Key(path), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (d *MinioDisk) Size(ctx context.Context, path string) (int64, error) {
	info, err := d.client.Client.StatObject(ctx, d.bucket, d.keys.Key(path), minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}
	return info.Size, nil
}

func (d *MinioDisk) SetVisibility(ctx context.Context, path string, visibility entity.Visibility) error {
	t, err := tags.NewTags(map[string]string{visibilityTag: string(visibility)}, true)
	if err != nil {
		return fmt.Errorf("failed to build object tags: %w", err)
	}
	if err := d.client.Client.PutObjectTagging(ctx, d.bucket, d.keys.Key(path), t, minio.PutObjectTaggingOptions{}); err != nil {
		return fmt.Errorf("failed to tag object: %w", err)
	}
	return nil
}

func (d *MinioDisk) URL(ctx context.Context, path string) (string, error) {
	key := d.keys.Key(path)
	t, err := d.client.Client.GetObjectTagging(ctx, d.bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil && !isMinioNotFound(err) {
		return "", fmt.Errorf("failed to read object tags: %w", err)
	}
	if t != nil && t.ToMap()[visibilityTag] == string(entity.VisibilityPrivate) {
		u, err := d.client.Client.PresignedGetObject(ctx, d.bucket, key, d.presignExpiry, url.Values{})
		if err != nil {
			return "", fmt.Errorf("failed to presign object: %w", err)
		}
		return u.String(), nil
	}
	return d.publicURL + (&url.URL{Path: "/" + key}).EscapedPath(), nil
}

func (d *MinioDisk) AllFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := d.keys.ListPrefix(dir)
	var files []string
	for object := range d.client.Client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		files = append(files, d.keys.Path(object.Key))
	}
	return files, nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchObject"
}
