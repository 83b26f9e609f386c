package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"google.golang.org/api/option"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderOSS   = "oss"
	StorageProviderLocal = "local"
)

// ArtifactStore keeps generated files (salary statements, site QR codes) and returns a reference to them.
type ArtifactStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

// NewArtifactStore builds the store selected by STORAGE_PROVIDER.
func NewArtifactStore() (ArtifactStore, error) {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
		if bucket == "" {
			return nil, errors.New("GCS_BUCKET is required")
		}
		return &GCSStore{Bucket: bucket}, nil
	case StorageProviderOSS:
		return NewOSSStore(
			os.Getenv("ALI_OSS_ENDPOINT"),
			os.Getenv("ALI_OSS_ACCESS_KEY"),
			os.Getenv("ALI_OSS_SECRET_KEY"),
			os.Getenv("ALI_OSS_BUCKET"),
		)
	case StorageProviderLocal:
		dir := strings.TrimSpace(os.Getenv("LOCAL_ARTIFACT_DIR"))
		if dir == "" {
			dir = "artifacts"
		}
		return &LocalStore{Dir: dir}, nil
	}
	return nil, fmt.Errorf("unsupported STORAGE_PROVIDER %q", GetStorageProvider())
}

/* Google Cloud Storage */

type GCSStore struct {
	Bucket string
}

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func (s *GCSStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", s.Bucket, objectName), nil
}

/* Alibaba Cloud OSS */

type OSSStore struct {
	bucket *oss.Bucket
	name   string
}

func NewOSSStore(endpoint, accessKey, secretKey, bucketName string) (*OSSStore, error) {
	if endpoint == "" || accessKey == "" || secretKey == "" || bucketName == "" {
		return nil, errors.New("ALI_OSS_ENDPOINT, ALI_OSS_ACCESS_KEY, ALI_OSS_SECRET_KEY and ALI_OSS_BUCKET are required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %q: %w", bucketName, err)
	}
	return &OSSStore{bucket: bucket, name: bucketName}, nil
}

func (s *OSSStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	if err := s.bucket.PutObject(objectName, bytes.NewReader(data), oss.ContentType(contentType), oss.WithContext(ctx)); err != nil {
		return "", err
	}
	return fmt.Sprintf("oss://%s/%s", s.name, objectName), nil
}

/* local filesystem (development) */

type LocalStore struct {
	Dir string
}

func (s *LocalStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	clean := filepath.Clean("/" + objectName)
	path := filepath.Join(s.Dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(path), nil
}
