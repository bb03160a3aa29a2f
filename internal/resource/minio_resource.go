package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"sermon-publisher/pkg/assert"
	"sermon-publisher/pkg/config"
	"sermon-publisher/pkg/logger"
	"sermon-publisher/pkg/manager"
)

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource 已发布视频的归档桶
type MinioResource struct {
	client *minio.Client
	bucket string
}

func DefaultMinioResource() *MinioResource {
	assert.NotCircular()
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	assert.NotNil(singletonMinioResource)
	return singletonMinioResource
}

func (r *MinioResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	client, err := openArchiveBucket(context.Background(), cfg.Minio)
	if err != nil {
		panic(err.Error())
	}
	r.client, r.bucket = client, cfg.Minio.BucketName
	logger.Info("Artifact archive bucket ready", map[string]interface{}{
		"endpoint": cfg.Minio.Endpoint,
		"bucket":   r.bucket,
	})
}

// openArchiveBucket 连接 MinIO，桶不存在时创建
func openArchiveBucket(ctx context.Context, cfg config.MinioConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("minio endpoint and bucket_name are required when minio.enabled=true")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{})
		// 多个实例同时启动时可能已被其他实例创建
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}
	return client, nil
}

// Opened 归档未开启时为 false
func (r *MinioResource) Opened() bool {
	return r.client != nil
}

func (r *MinioResource) Client() *minio.Client {
	return r.client
}

func (r *MinioResource) Bucket() string {
	return r.bucket
}

// Close minio-go 没有需要释放的连接
func (r *MinioResource) Close() {}

type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string {
	return "minioResource"
}

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	cfg := config.GetGlobalConfig()
	if cfg == nil || !cfg.Minio.Enabled {
		return nil
	}
	return DefaultMinioResource()
}
