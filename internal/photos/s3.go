package photos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
)

const s3KeyPrefix = "photos/"

// S3Config configures S3Accessor.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Accessor stores photos in an S3 bucket served from PublicBaseURL.
type S3Accessor struct {
	client     s3API
	bucket     string
	baseURL    string
	attempts   uint
	retryDelay time.Duration
}

// NewS3Accessor loads AWS configuration and creates an accessor.
func NewS3Accessor(ctx context.Context, cfg S3Config) (*S3Accessor, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Accessor(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3Accessor(client s3API, bucket, baseURL string) *S3Accessor {
	return &S3Accessor{
		client:     client,
		bucket:     bucket,
		baseURL:    strings.TrimRight(baseURL, "/"),
		attempts:   3,
		retryDelay: 200 * time.Millisecond,
	}
}

// AddPhoto stores file under photos/<ulid>. The public id is the ulid.
func (a *S3Accessor) AddPhoto(ctx context.Context, file Upload) (*UploadResult, error) {
	if file.Body == nil || file.Size == 0 {
		return nil, ErrEmptyFile
	}

	// Buffered so each retry can resend the body.
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	publicID := strings.ToLower(ulid.Make().String())
	key := s3KeyPrefix + publicID
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = retry.Do(
		func() error {
			_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(a.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(data),
				ContentType: aws.String(contentType),
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(a.attempts),
		retry.Delay(a.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, &UploadError{Message: err.Error()}
	}

	return &UploadResult{
		PublicID: publicID,
		URL:      a.baseURL + "/" + key,
	}, nil
}

// DeletePhoto removes the object. S3 deletes are idempotent so any
// successful call reports "ok".
func (a *S3Accessor) DeletePhoto(ctx context.Context, publicID string) (string, error) {
	if _, err := ulid.ParseStrict(strings.ToUpper(publicID)); err != nil {
		return "", nil
	}

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(s3KeyPrefix + publicID),
	})
	if err != nil {
		return "", fmt.Errorf("s3 delete: %w", err)
	}
	return deleteOK, nil
}
