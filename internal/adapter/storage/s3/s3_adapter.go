package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/citylistings/listing-service/internal/listing/domain"
	"github.com/citylistings/listing-service/internal/platform/logger"
)

// S3Storage stores listing photos in an S3-compatible bucket. Only bare
// object keys leave this package as stable identifiers; clients are handed
// time-limited signed URLs minted on demand.
type S3Storage struct {
	client *minio.Client
	bucket string
	logger *logger.Logger
}

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func NewS3Storage(cfg Config, log *logger.Logger) (*S3Storage, error) {
	log.Info("Initializing S3 storage", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "use_ssl", cfg.UseSSL)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		log.Error("S3Storage: failed to create client", "endpoint", cfg.Endpoint, "error", err)
		return nil, fmt.Errorf("create s3 client for %s: %w", cfg.Endpoint, err)
	}

	err = client.MakeBucket(context.Background(), cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
	if err != nil {
		exists, existsErr := client.BucketExists(context.Background(), cfg.Bucket)
		if existsErr != nil || !exists {
			log.Error("S3Storage: failed to make or verify bucket", "bucket", cfg.Bucket, "error", err)
			return nil, fmt.Errorf("make/verify bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		logger: log,
	}, nil
}

// Upload re-encodes the payload to bounded webp and stores it under a fresh
// key scoped to the listing, or to the owner for unattached uploads.
func (s *S3Storage) Upload(ctx context.Context, scope domain.PhotoScope, data []byte) (string, error) {
	encoded, err := reencodeImage(data)
	if err != nil {
		s.logger.Warn("S3Storage.Upload: unsupported payload", "error", err)
		return "", err
	}

	var objectKey string
	if scope.ListingID != "" {
		objectKey = fmt.Sprintf("listings/%s/%s.webp", scope.ListingID, uuid.NewString())
	} else {
		objectKey = fmt.Sprintf("photos/user-%s/%s.webp", scope.OwnerID, uuid.NewString())
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(encoded), int64(len(encoded)), minio.PutObjectOptions{
		ContentType: "image/webp",
	})
	if err != nil {
		s.logger.Error("S3Storage.Upload: PutObject failed", "bucket", s.bucket, "key", objectKey, "error", err)
		return "", &domain.StorageError{Op: "storage.upload", Err: err}
	}

	s.logger.Info("S3Storage.Upload: object stored", "bucket", s.bucket, "key", objectKey, "size_bytes", len(encoded))
	return objectKey, nil
}

func (s *S3Storage) SignedURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		s.logger.Error("S3Storage.SignedURL: presign failed", "key", objectKey, "error", err)
		return "", &domain.StorageError{Op: "storage.sign_url", Err: err}
	}
	return signed.String(), nil
}

// SignedURLs signs the keys concurrently. Keys that fail to sign are logged
// and omitted from the result; one bad key never fails the batch.
func (s *S3Storage) SignedURLs(ctx context.Context, objectKeys []string, ttl time.Duration) map[string]string {
	urls := make(map[string]string, len(objectKeys))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, key := range objectKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
			if err != nil {
				s.logger.Warn("S3Storage.SignedURLs: presign failed, omitting key", "key", key, "error", err)
				return
			}
			mu.Lock()
			urls[key] = signed.String()
			mu.Unlock()
		}(key)
	}
	wg.Wait()
	return urls
}

// Delete is tolerant of already-gone objects so retried cleanups stay
// idempotent.
func (s *S3Storage) Delete(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		s.logger.Error("S3Storage.Delete: RemoveObject failed", "key", objectKey, "error", err)
		return &domain.StorageError{Op: "storage.delete", Err: err}
	}
	return nil
}

// ExtractKey recovers the bare object key from a signed URL. Bare keys pass
// through unchanged, so callers may submit either form.
func (s *S3Storage) ExtractKey(rawurl string) (string, error) {
	if !strings.HasPrefix(rawurl, "http://") && !strings.HasPrefix(rawurl, "https://") {
		if rawurl == "" {
			return "", domain.ErrInvalidObjectURL
		}
		return rawurl, nil
	}

	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", domain.ErrInvalidObjectURL
	}
	key := strings.TrimPrefix(parsed.Path, "/")
	// Path-style endpoints carry the bucket as the first path segment.
	key = strings.TrimPrefix(key, s.bucket+"/")
	if key == "" {
		return "", domain.ErrInvalidObjectURL
	}
	return key, nil
}
