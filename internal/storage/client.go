// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Object-storage client for the shared-data bridge

package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/quantfold/rdagent-runner/internal/config"
)

// Client wraps a MinIO-compatible object store with file and directory
// transfer operations against a single bucket.
type Client struct {
	mc     *minio.Client
	bucket string
	log    *zap.Logger
}

// NewClient connects to the configured endpoint.
func NewClient(cfg config.StorageConfig, log *zap.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object-store client for %s: %w", cfg.Endpoint, err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket, log: log}, nil
}

// UploadFile uploads one local file to remotePath within the bucket.
func (c *Client) UploadFile(ctx context.Context, localPath, remotePath string) error {
	key := normalizeKey(remotePath)
	_, err := c.mc.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", localPath, key, err)
	}
	c.log.Debug("uploaded object", zap.String("key", key))
	return nil
}

// DownloadFile downloads one object to localPath, creating parent
// directories as needed.
func (c *Client) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}
	key := normalizeKey(remotePath)
	if err := c.mc.FGetObject(ctx, c.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	c.log.Debug("downloaded object", zap.String("key", key))
	return nil
}

// UploadDirectory uploads every regular file under localDir to
// remotePrefix, preserving relative paths.
func (c *Client) UploadDirectory(ctx context.Context, localDir, remotePrefix string) error {
	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		return c.UploadFile(ctx, p, path.Join(remotePrefix, filepath.ToSlash(rel)))
	})
}

// DownloadDirectory downloads every object under remotePrefix into
// localDir, preserving relative paths.
func (c *Client) DownloadDirectory(ctx context.Context, remotePrefix, localDir string) error {
	prefix := normalizeKey(remotePrefix)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	count := 0
	for object := range c.mc.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return fmt.Errorf("failed to list objects under %s: %w", prefix, object.Err)
		}
		rel := strings.TrimPrefix(object.Key, prefix)
		if rel == "" {
			continue
		}
		if err := c.DownloadFile(ctx, object.Key, filepath.Join(localDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
		count++
	}

	c.log.Info("directory download complete",
		zap.String("prefix", prefix), zap.Int("objects", count))
	return nil
}

// normalizeKey strips the leading slash object keys must not carry.
func normalizeKey(remotePath string) string {
	return strings.TrimPrefix(remotePath, "/")
}
