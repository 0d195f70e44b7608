package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// MinioStore is the S3-compatible ObjectStore backend. Object storage has
// no directory cursor, so the tree operations collapse to key-prefix
// manipulation with the same outward semantics as the FTP backend.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *logrus.Logger
}

// MinioConfig carries the connection settings for the S3 backend.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinioStore connects to the endpoint and ensures the bucket exists.
func NewMinioStore(cfg MinioConfig, publicBase string, logger *logrus.Logger) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket check %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: publicBase,
		logger:     logger,
	}, nil
}

func (s *MinioStore) UploadObject(ctx context.Context, p AssetPath, data []byte) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(p.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, p.String(), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", p, err)
	}

	s.logger.WithFields(logrus.Fields{
		"path": p.String(),
		"size": len(data),
	}).Info("minio: object uploaded")

	return JoinPublicURL(s.publicBase, p), nil
}

func (s *MinioStore) DeleteObject(ctx context.Context, p AssetPath) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}

	if _, err := s.client.StatObject(ctx, s.bucket, p.String(), minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, p.String(), minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove %s: %w", p, err)
	}

	s.logger.WithField("path", p.String()).Info("minio: object deleted")
	return true, nil
}

func (s *MinioStore) DeleteTree(ctx context.Context, tenant string) (bool, error) {
	if err := ValidateTenant(tenant); err != nil {
		return false, err
	}

	prefix := Namespace + "/" + tenant + "/"
	removed := 0

	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return false, &TreeDeleteError{Tenant: tenant, Op: "list", Err: obj.Err}
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return false, &TreeDeleteError{Tenant: tenant, Op: "remove " + obj.Key, Err: err}
		}
		removed++
	}

	if removed == 0 {
		return false, nil
	}

	s.logger.WithFields(logrus.Fields{
		"tenant":  tenant,
		"objects": removed,
	}).Info("minio: tenant tree deleted")

	return true, nil
}

func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket check %q: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}
