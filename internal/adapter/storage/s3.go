package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "github.com/semmidev/influx-s3/internal/config"
	"github.com/semmidev/influx-s3/internal/domain"
)

// CredentialSource names the strategy used to authenticate against S3.
type CredentialSource string

const (
	CredentialsProfile CredentialSource = "profile"
	CredentialsStatic  CredentialSource = "static"
	CredentialsDefault CredentialSource = "default"
)

// ResolveCredentialSource picks the named profile first, then an explicit key
// pair when both halves are set, and otherwise the SDK default chain.
func ResolveCredentialSource(cfg *appconfig.StorageConfig) CredentialSource {
	switch {
	case cfg.Profile != "":
		return CredentialsProfile
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		return CredentialsStatic
	default:
		return CredentialsDefault
	}
}

type S3Storage struct {
	client     *s3.Client
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
	source     CredentialSource
}

// NewS3 creates an S3Storage bound to cfg.Bucket using AWS SDK v2.
func NewS3(ctx context.Context, cfg *appconfig.StorageConfig) (*S3Storage, error) {
	source := ResolveCredentialSource(cfg)

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	switch source {
	case CredentialsProfile:
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	case CredentialsStatic:
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	s := newS3FromClient(client, cfg.Bucket)
	s.source = source
	return s, nil
}

func newS3FromClient(client *s3.Client, bucket string) *S3Storage {
	return &S3Storage{
		client:     client,
		uploader:   s3manager.NewUploader(client),
		downloader: s3manager.NewDownloader(client),
		bucket:     bucket,
		source:     CredentialsDefault,
	}
}

func (s *S3Storage) Bucket() string {
	return s.bucket
}

// CredentialSource reports which credential strategy the client was built with.
func (s *S3Storage) CredentialSource() CredentialSource {
	return s.source
}

// Upload writes the local file to key, replacing any existing object.
func (s *S3Storage) Upload(ctx context.Context, localPath string, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewNotFoundError("open upload source", err)
		}
		return domain.NewTransferError("open upload source", err)
	}
	defer file.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return domain.NewTransferError(fmt.Sprintf("upload s3://%s/%s", s.bucket, key), err)
	}

	return nil
}

// Download saves key to localPath, creating parent directories. A missing key
// leaves no file behind.
func (s *S3Storage) Download(ctx context.Context, key string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return domain.NewTransferError("create download directory", err)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return domain.NewTransferError("create download file", err)
	}

	_, err = s.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	closeErr := file.Close()
	if err != nil {
		os.Remove(localPath)
		op := fmt.Sprintf("download s3://%s/%s", s.bucket, key)
		if isNotFound(err) {
			return domain.NewNotFoundError(op, err)
		}
		return domain.NewTransferError(op, err)
	}
	if closeErr != nil {
		return domain.NewTransferError("close download file", closeErr)
	}

	return nil
}

// List pages through ListObjectsV2 lazily; a page is only requested once the
// previous one has been consumed.
func (s *S3Storage) List(ctx context.Context, prefix string) iter.Seq2[domain.RestorePoint, error] {
	return func(yield func(domain.RestorePoint, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(prefix),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(domain.RestorePoint{}, domain.NewTransferError("list s3 objects", err))
				return
			}

			for _, obj := range page.Contents {
				point := domain.RestorePoint{
					Key:          aws.ToString(obj.Key),
					LastModified: aws.ToTime(obj.LastModified),
					Size:         aws.ToInt64(obj.Size),
				}
				if !yield(point, nil) {
					return
				}
			}
		}
	}
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return domain.NewTransferError(fmt.Sprintf("delete s3://%s/%s", s.bucket, key), err)
	}

	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
