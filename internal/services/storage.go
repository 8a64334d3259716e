package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/innovasus/innovasus/internal/config"
)

// ErrStorage wraps any blob storage failure. Callers treat it as "the whole
// operation failed"; no database row may reference a key that was not saved.
var ErrStorage = errors.New("storage error")

// SaveInput describes a file to be stored.
type SaveInput struct {
	Content     []byte
	Filename    string
	ContentType string
	Prefix      string // logical folder, e.g. "articles", "slips", "media"
}

// Storage is the blob store for uploaded files. Implementations never
// interpret file bytes.
type Storage interface {
	// Save stores the file and returns a stable key.
	Save(ctx context.Context, in SaveInput) (string, error)
	// Open returns a reader for the stored file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the stored file. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a browser-reachable URL for the key.
	URL(key string) string
}

var reIllegalFilenameChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeFilename strips characters that are unsafe in storage keys.
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}
	return reIllegalFilenameChars.ReplaceAllString(filename, "_")
}

func storageKey(prefix, filename string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, uuid.New().String(), SanitizeFilename(filename))
}

// NewStorage builds the storage backend selected by config.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "s3":
		return NewS3Storage(cfg)
	case "local", "":
		return NewLocalStorage(cfg.LocalRoot)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// --- S3 ---

// S3Storage stores files in an S3-compatible bucket (AWS, DO Spaces, MinIO).
type S3Storage struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func NewS3Storage(cfg *config.StorageConfig) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Storage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

func (s *S3Storage) Save(ctx context.Context, in SaveInput) (string, error) {
	if len(in.Content) == 0 {
		return "", fmt.Errorf("%w: no bytes of data were provided for %q", ErrStorage, in.Filename)
	}

	key := storageKey(in.Prefix, in.Filename)

	put := func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      &s.bucket,
			Key:         &key,
			Body:        bytes.NewReader(in.Content),
			ContentType: &in.ContentType,
		})
		return err
	}

	err := put()
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "NoSuchBucket" {
			if _, cerr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &s.bucket}); cerr != nil {
				return "", fmt.Errorf("%w: create bucket: %v", ErrStorage, cerr)
			}
			err = put()
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", ErrStorage, err)
	}

	return key, nil
}

func (s *S3Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get object: %v", ErrStorage, err)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("%w: delete object: %v", ErrStorage, err)
	}
	return nil
}

func (s *S3Storage) URL(key string) string {
	return s.publicURL + "/" + key
}

// --- Local disk ---

// LocalStorage stores files under a directory root. Used in development and
// for single-node deployments.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "uploads"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &LocalStorage{root: root}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	// Reject traversal; keys are always generated but the serving handler
	// passes user input here.
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: invalid key %q", ErrStorage, key)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorage) Save(ctx context.Context, in SaveInput) (string, error) {
	if len(in.Content) == 0 {
		return "", fmt.Errorf("%w: no bytes of data were provided for %q", ErrStorage, in.Filename)
	}

	key := storageKey(in.Prefix, in.Filename)
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := os.WriteFile(path, in.Content, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}

	return key, nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *LocalStorage) URL(key string) string {
	return "/files/" + key
}
