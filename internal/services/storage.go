package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sergiovlezh/documents-manager/internal/config"
)

// BlobInfo describes a stored blob as reported by the store.
type BlobInfo struct {
	Key         string
	Filename    string
	ContentType string
	Size        int64
}

// BlobStore keeps file bytes. Keys are opaque to callers.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, size int64, filename, contentType string) (BlobInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, BlobInfo, error)
	Delete(ctx context.Context, key string) error
}

const originalFilenameMeta = "Original-Filename"

type StorageService struct {
	client *minio.Client
	bucket string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, err
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, err
		}
	}

	return &StorageService{
		client: client,
		bucket: cfg.MinIOBucket,
	}, nil
}

// Put stores r under a fresh key. The original filename travels as object
// metadata so reads can report it.
func (s *StorageService) Put(ctx context.Context, r io.Reader, size int64, filename, contentType string) (BlobInfo, error) {
	key := NewStorageKey(filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			originalFilenameMeta: url.QueryEscape(filename),
		},
	})
	if err != nil {
		return BlobInfo{}, fmt.Errorf("put object %s: %w", key, err)
	}

	return BlobInfo{
		Key:         key,
		Filename:    filename,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

func (s *StorageService) Get(ctx context.Context, key string) (io.ReadCloser, BlobInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, BlobInfo{}, notFoundError("blob %s not found", key)
		}
		return nil, BlobInfo{}, fmt.Errorf("stat object %s: %w", key, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, BlobInfo{}, fmt.Errorf("get object %s: %w", key, err)
	}

	return obj, blobInfoFromStat(stat), nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func blobInfoFromStat(stat minio.ObjectInfo) BlobInfo {
	raw := stat.UserMetadata[originalFilenameMeta]
	if raw == "" {
		raw = stat.Metadata.Get("X-Amz-Meta-" + originalFilenameMeta)
	}
	filename, err := url.QueryUnescape(raw)
	if err != nil || filename == "" {
		filename = filepath.Base(stat.Key)
	}
	return BlobInfo{
		Key:         stat.Key,
		Filename:    filename,
		ContentType: stat.ContentType,
		Size:        stat.Size,
	}
}

// NewStorageKey builds a unique object key that keeps the file extension.
func NewStorageKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("documents/%s%s", uuid.New().String(), ext)
}
