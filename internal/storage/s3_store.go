package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/config"
)

// RemoteStore keeps compressed dumps somewhere other machines can reach
type RemoteStore interface {
	Upload(ctx context.Context, key, localPath string) (int64, error)
	Download(ctx context.Context, key, localPath string) (int64, error)
}

// S3API is the part of the S3 client the store uses
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ RemoteStore = (*S3Store)(nil)

// S3Store is a RemoteStore backed by an S3 bucket
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
	Logger *logrus.Logger
}

// NewS3Store creates a store for the configured bucket. Credentials come from
// the default AWS chain. A custom endpoint selects an S3 compatible store.
func NewS3Store(ctx context.Context, rc config.RemoteConfig, logger *logrus.Logger) (*S3Store, error) {
	if !rc.Enabled() {
		return nil, fmt.Errorf("remote.bucket is not configured")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if rc.Region != "" {
		opts = append(opts, awsconfig.WithRegion(rc.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if rc.Endpoint != "" {
			o.EndpointResolver = s3.EndpointResolverFromURL(rc.Endpoint)
		}
		o.UsePathStyle = rc.ForcePathStyle
	})

	return &S3Store{
		Client: client,
		Bucket: rc.Bucket,
		Prefix: rc.Prefix,
		Logger: logger,
	}, nil
}

// ObjectKey returns the key a dump file is stored under
func (s *S3Store) ObjectKey(fileName string) string {
	prefix := strings.Trim(s.Prefix, "/")
	if prefix == "" {
		return fileName
	}
	return path.Join(prefix, fileName)
}

// Upload copies the file at localPath to key
func (s *S3Store) Upload(ctx context.Context, key, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("cannot open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("cannot stat %s: %w", localPath, err)
	}

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		s.Logger.Errorf("Error uploading s3://%s/%s: %v", s.Bucket, key, err)
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}

	s.Logger.Infof("Uploaded %s to s3://%s/%s (%s)", localPath, s.Bucket, key, humanize.Bytes(uint64(info.Size())))
	return info.Size(), nil
}

// Download copies key to localPath, replacing any existing file
func (s *S3Store) Download(ctx context.Context, key, localPath string) (int64, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.Logger.Errorf("Error downloading s3://%s/%s: %v", s.Bucket, key, err)
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", filepath.Dir(localPath), err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("cannot create %s: %w", localPath, err)
	}

	n, err := io.Copy(f, out.Body)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("download %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("cannot close %s: %w", localPath, err)
	}

	s.Logger.Infof("Downloaded s3://%s/%s to %s (%s)", s.Bucket, key, localPath, humanize.Bytes(uint64(n)))
	return n, nil
}
