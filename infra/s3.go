package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tnqbao/gau-media-service/config"
	"github.com/tnqbao/gau-media-service/entity"
)

const allUsersGroup = "http://acs.amazonaws.com/groups/global/AllUsers"

// S3Disk stores media under its keyspace in an S3 compatible bucket.
// Visibility maps to canned object ACLs.
type S3Disk struct {
	client        *s3.Client
	uploader      *manager.Uploader
	presigner     *s3.PresignClient
	bucket        string
	keys          Keyspace
	publicURL     string
	presignExpiry time.Duration
}

func NewS3Disk(ctx context.Context, cfg *config.EnvConfig, keys Keyspace) (*S3Disk, error) {
	if keys.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is not configured")
	}

	opts := []func(*awscfg.LoadOptions) error{awscfg.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, "")))
	}
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	publicURL := cfg.S3.PublicURL
	if publicURL == "" || keys.Bucket != cfg.S3.Bucket {
		if cfg.S3.Endpoint != "" {
			publicURL = strings.TrimRight(cfg.S3.Endpoint, "/") + "/" + keys.Bucket
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", keys.Bucket, cfg.S3.Region)
		}
	}

	return &S3Disk{
		client:        client,
		uploader:      manager.NewUploader(client),
		presigner:     s3.NewPresignClient(client),
		bucket:        keys.Bucket,
		keys:          keys,
		publicURL:     strings.TrimRight(publicURL, "/"),
		presignExpiry: cfg.Media.PresignExpiry,
	}, nil
}

func (d *S3Disk) Exists(ctx context.Context, path string) (bool, error) {
	_, err := d.head(ctx, path)
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func (d *S3Disk) Put(ctx context.Context, path string, r io.Reader, _ int64, contentType string) error {
	_, err := d.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.keys.Key(path)),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

func (d *S3Disk) Delete(ctx context.Context, path string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keys.Key(path)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (d *S3Disk) Size(ctx context.Context, path string) (int64, error) {
	out, err := d.head(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (d *S3Disk) SetVisibility(ctx context.Context, path string, visibility entity.Visibility) error {
	acl := types.ObjectCannedACLPublicRead
	if visibility == entity.VisibilityPrivate {
		acl = types.ObjectCannedACLPrivate
	}
	_, err := d.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keys.Key(path)),
		ACL:    acl,
	})
	if err != nil {
		return fmt.Errorf("failed to set object acl: %w", err)
	}
	return nil
}

func (d *S3Disk) URL(ctx context.Context, path string) (string, error) {
	key := d.keys.Key(path)
	public, err := d.isPublic(ctx, key)
	if err != nil {
		return "", err
	}
	if public {
		return d.publicURL + (&url.URL{Path: "/" + key}).EscapedPath(), nil
	}

	req, err := d.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(d.presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return req.URL, nil
}

func (d *S3Disk) AllFiles(ctx context.Context, dir string) ([]string, error) {
	prefix := d.keys.ListPrefix(dir)
	var files []string
	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			files = append(files, d.keys.Path(aws.ToString(obj.Key)))
		}
	}
	return files, nil
}

func (d *S3Disk) head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	return d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.keys.Key(path)),
	})
}

func (d *S3Disk) isPublic(ctx context.Context, key string) (bool, error) {
	out, err := d.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read object acl: %w", err)
	}
	for _, grant := range out.Grants {
		if grant.Grantee != nil && aws.ToString(grant.Grantee.URI) == allUsersGroup &&
			(grant.Permission == types.PermissionRead || grant.Permission == types.PermissionFullControl) {
			return true, nil
		}
	}
	return false, nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
