package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/akolanti/TenderRAG/internal/config"
	"github.com/akolanti/TenderRAG/internal/domain/kbErrors"
	"github.com/akolanti/TenderRAG/internal/rag/index"
	"github.com/akolanti/TenderRAG/pkg/logger_i"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore keeps documents as <bucket>/<kb>/<name> in any S3 compatible store.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *logger_i.Logger
}

func NewMinioStore(ctx context.Context, s config.StorageSettings) (*MinioStore, error) {
	logger := logger_i.NewLogger("MinioDocStore")
	client, err := minio.New(s.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.MinioAccessKey, s.MinioSecretKey, ""),
		Secure: s.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	bucket := s.MinioBucket
	if bucket == "" {
		bucket = config.MinioBucket
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		logger.Info("creating bucket", "bucket", bucket)
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: bucket, logger: logger}, nil
}

func (s *MinioStore) Put(ctx context.Context, kbId, name string, data []byte) error {
	name, err := CleanName(name)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, objectKey(kbId, name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, kbId, name string) ([]byte, error) {
	name, err := CleanName(name)
	if err != nil {
		return nil, err
	}
	object, err := s.client.GetObject(ctx, s.bucket, objectKey(kbId, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(kbId, name, err)
	}
	defer object.Close()
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, s.mapErr(kbId, name, err)
	}
	return data, nil
}

func (s *MinioStore) mapErr(kbId, name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return &kbErrors.NotFoundError{Kind: "document", Id: kbId + "/" + name}
	}
	return fmt.Errorf("download %s: %w", name, err)
}

func (s *MinioStore) List(ctx context.Context, kbId string) ([]string, error) {
	prefix := index.SafeId(kbId) + "/"
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
