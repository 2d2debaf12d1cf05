package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nuvyx/config"
	"nuvyx/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadExpiry is how long presigned upload URLs stay valid.
const UploadExpiry = time.Hour

// Gateway 封装对象存储的预签名和列举操作
type Gateway struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewGateway 初始化 MinIO 客户端并确保存储桶存在
func NewGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("MinIO gateway ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.Duration("urlExpiry", cfg.StreamURLExpiry))
	return newGateway(client, cfg.MinioBucket, cfg.StreamURLExpiry), nil
}

func newGateway(client *minio.Client, bucket string, expiry time.Duration) *Gateway {
	return &Gateway{client: client, bucket: bucket, expiry: expiry}
}

// Expiry is how long presigned URLs stay valid.
func (g *Gateway) Expiry() time.Duration {
	return g.expiry
}

// PresignStream 生成用于播放的预签名 GET 链接
func (g *Gateway) PresignStream(ctx context.Context, key string) (string, error) {
	return g.presign(ctx, key, nil)
}

// PresignDownload 生成带附件文件名的预签名链接
func (g *Gateway) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", ContentDisposition(filename))
	return g.presign(ctx, key, params)
}

func (g *Gateway) presign(ctx context.Context, key string, params url.Values) (string, error) {
	u, err := g.client.PresignedGetObject(ctx, g.bucket, key, g.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// PresignUpload 生成管理员上传用的预签名 PUT 链接
func (g *Gateway) PresignUpload(ctx context.Context, key string) (string, error) {
	u, err := g.client.PresignedPutObject(ctx, g.bucket, key, UploadExpiry)
	if err != nil {
		return "", fmt.Errorf("presign upload %s: %w", key, err)
	}
	return u.String(), nil
}

// RemoveObject 删除对象；对象不存在时 MinIO 也返回成功
func (g *Gateway) RemoveObject(ctx context.Context, key string) error {
	if err := g.client.RemoveObject(ctx, g.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	logger.Info("removed object", logger.String("bucket", g.bucket), logger.String("key", key))
	return nil
}

// UploadKey names a new object: a random prefix, then filename with whitespace runs replaced
// by underscores.
func UploadKey(filename string) string {
	return uuid.NewString() + "-" + strings.Join(strings.Fields(filename), "_")
}

// ContentDisposition builds an attachment header value; quotes in the name are dropped.
func ContentDisposition(filename string) string {
	filename = strings.ReplaceAll(filename, `"`, "")
	return fmt.Sprintf(`attachment; filename="%s"`, filename)
}
