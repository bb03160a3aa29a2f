package gateway

import (
	"context"
	"path"
	"path/filepath"
)

// ArtifactStorage 已发布产物归档
type ArtifactStorage interface {
	// ArchiveArtifact 上传本地文件，返回对象 key
	ArchiveArtifact(ctx context.Context, localPath, objectKey, contentType string) (string, error)
	// RemoveArtifact 删除已归档对象
	RemoveArtifact(ctx context.Context, objectKey string) error
}

// ArtifactKey 归档对象 key：videos/{videoID}/{文件名}
func ArtifactKey(videoID, localPath string) string {
	return path.Join("videos", videoID, filepath.Base(localPath))
}
