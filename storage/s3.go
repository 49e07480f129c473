package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"remedial_go/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ObjectStore is the blob storage used for export and log archives
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

var ErrNotConfigured = errors.New("object storage not configured")

type StorageService struct {
	client *s3.Client
	bucket string
}

// NewStorageService creates an S3 client from the default AWS credential chain
func NewStorageService(ctx context.Context) (*StorageService, error) {
	if config.AppConfig == nil || config.AppConfig.S3BucketName == "" {
		return nil, ErrNotConfigured
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(config.AppConfig.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %v", err)
	}

	return &StorageService{
		client: s3.NewFromConfig(cfg),
		bucket: config.AppConfig.S3BucketName,
	}, nil
}

// Put uploads body under key
func (s *StorageService) Put(ctx context.Context, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %v", err)
	}
	return nil
}

// Get downloads key; the caller closes the reader
func (s *StorageService) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %v", err)
	}
	return result.Body, nil
}

// ObjectKey builds "<folder>/<yyyy>/<mm>/<uuid>_<file name>"
func ObjectKey(folder, fileName string, at time.Time) string {
	name := strings.ReplaceAll(filepath.Base(fileName), " ", "_")
	return fmt.Sprintf("%s/%d/%02d/%s_%s", strings.Trim(folder, "/"), at.Year(), at.Month(), uuid.NewString(), name)
}

// MemoryStore keeps objects in process memory. Used when S3 is not configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
	PutErr  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, body []byte) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	m.types[key] = contentType
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Keys lists stored keys
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

func (m *MemoryStore) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[key]
}
