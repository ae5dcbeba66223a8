package minio

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"backend/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinioProvider struct {
	client    *minio.Client
	bucket    string
	maxSize   int64
	logger    *zap.Logger
	publicURL string
}

type UploadedFile struct {
	Name        string `json:"file_name"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"mime_type"`
	ObjectName  string `json:"object_name"`
}

func NewMinioProvider(cfg *config.Config, logger *zap.Logger) (*MinioProvider, error) {
	endpoint := cfg.MinioURL
	secure := false
	if strings.HasPrefix(endpoint, "https://") {
		secure = true
	}
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")

	if _, err := url.Parse("//" + endpoint); err != nil {
		return nil, fmt.Errorf("failed to parse minio URL: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioUser, cfg.MinioPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	publicURL := cfg.MinioPublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://%s/%s", endpoint, cfg.MinioBucket)
	}

	provider := &MinioProvider{
		client:    client,
		bucket:    cfg.MinioBucket,
		maxSize:   cfg.MaxAttachmentSize,
		logger:    logger,
		publicURL: publicURL,
	}

	if err := provider.ensureBucket(); err != nil {
		return nil, err
	}

	return provider, nil
}

func (m *MinioProvider) ensureBucket() error {
	ctx := context.Background()

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		m.logger.Info("Created MinIO bucket", zap.String("bucket", m.bucket))
	}

	if err := m.setBucketPolicy(ctx); err != nil {
		m.logger.Warn("Failed to set bucket policy", zap.Error(err))
	}

	return nil
}

func (m *MinioProvider) setBucketPolicy(ctx context.Context) error {
	policy := `{
		"Version": "2012-10-17",
		"Statement": [
			{
				"Sid": "PublicReadGetObject",
				"Effect": "Allow",
				"Principal": "*",
				"Action": ["s3:GetObject"],
				"Resource": ["arn:aws:s3:::` + m.bucket + `/*"]
			}
		]
	}`
	return m.client.SetBucketPolicy(ctx, m.bucket, policy)
}

// UploadTmp stores an incoming attachment under the tmp/ prefix. Objects
// stay there until the message referencing them is sent, at which point
// they are promoted via ConfirmTmpObject.
func (m *MinioProvider) UploadTmp(file *multipart.FileHeader) (*UploadedFile, error) {
	if file.Size > m.maxSize {
		return nil, fmt.Errorf("file size exceeds maximum allowed size of %d MiB", m.maxSize/(1024*1024))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tmpObjectName := "tmp/" + GenerateObjectName(file.Filename)

	_, err = m.client.PutObject(context.Background(), m.bucket, tmpObjectName, src, file.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	m.logger.Info("Attachment uploaded to tmp",
		zap.String("filename", file.Filename),
		zap.String("object_name", tmpObjectName),
		zap.Int64("size", file.Size),
	)

	return &UploadedFile{
		Name:        file.Filename,
		URL:         m.publicURL + "/" + tmpObjectName,
		Size:        file.Size,
		ContentType: contentType,
		ObjectName:  tmpObjectName,
	}, nil
}

// ConfirmTmpObject promotes a tmp object to its permanent location and
// returns the permanent object name and public URL.
func (m *MinioProvider) ConfirmTmpObject(tmpObjectName string) (string, string, error) {
	if !strings.HasPrefix(tmpObjectName, "tmp/") {
		return tmpObjectName, m.publicURL + "/" + tmpObjectName, nil
	}

	permanentObjectName := strings.TrimPrefix(tmpObjectName, "tmp/")

	_, err := m.client.CopyObject(context.Background(),
		minio.CopyDestOptions{Bucket: m.bucket, Object: permanentObjectName},
		minio.CopySrcOptions{Bucket: m.bucket, Object: tmpObjectName},
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to copy object: %w", err)
	}

	if err := m.DeleteFile(tmpObjectName); err != nil {
		m.logger.Warn("Failed to delete tmp file", zap.Error(err))
	}

	return permanentObjectName, m.publicURL + "/" + permanentObjectName, nil
}

// DeleteTmpFilesOlderThan removes tmp objects never referenced by a sent
// message.
func (m *MinioProvider) DeleteTmpFilesOlderThan(maxAge time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	objectsCh := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    "tmp/",
		Recursive: true,
	})

	for object := range objectsCh {
		if object.Err != nil {
			return object.Err
		}

		if time.Since(object.LastModified) > maxAge {
			if err := m.DeleteFile(object.Key); err != nil {
				m.logger.Warn("Failed to delete old tmp file",
					zap.String("object", object.Key),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

func (m *MinioProvider) DeleteFile(objectName string) error {
	err := m.client.RemoveObject(context.Background(), m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (m *MinioProvider) GetPublicURL() string {
	return m.publicURL
}

func GenerateObjectName(filename string) string {
	timestamp := time.Now().Format("2006/01/02")
	ext := filepath.Ext(filename)
	return fmt.Sprintf("%s/%s%s", timestamp, uuid.New().String(), ext)
}
