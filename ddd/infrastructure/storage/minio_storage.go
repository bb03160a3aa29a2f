package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"sermon-publisher/ddd/domain/gateway"
	"sermon-publisher/internal/resource"
	"sermon-publisher/pkg/logger"
)

// MinioStorage 已发布视频和缩略图的 MinIO 归档
type MinioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioStorage(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

// NewMinioStorageFromResource 资源未开启时返回 nil，调用方跳过归档
func NewMinioStorageFromResource(r *resource.MinioResource) gateway.ArtifactStorage {
	if r == nil || !r.Opened() {
		return nil
	}
	return NewMinioStorage(r.Client(), r.Bucket())
}

var _ gateway.ArtifactStorage = (*MinioStorage)(nil)

// ArchiveArtifact 上传本地文件，返回对象 key
func (s *MinioStorage) ArchiveArtifact(ctx context.Context, localPath, objectKey, contentType string) (string, error) {
	objectKey = strings.TrimLeft(objectKey, "/")
	if contentType == "" {
		contentType = ContentTypeFor(objectKey)
	}
	info, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("object_key", objectKey).Error("Archive artifact failed")
		return "", fmt.Errorf("archive %s: %w", localPath, err)
	}
	logger.FromContext(ctx).WithField("object_key", objectKey).WithField("size", info.Size).Info("Artifact archived")
	return objectKey, nil
}

// RemoveArtifact 删除已归档对象，对象不存在不算错误
func (s *MinioStorage) RemoveArtifact(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, strings.TrimLeft(objectKey, "/"), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return fmt.Errorf("remove artifact from minio failed: %w", err)
	}
	return nil
}

// ContentTypeFor 根据文件扩展名获取内容类型
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}
