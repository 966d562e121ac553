package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Store reads raw template content from an S3 bucket, keyed as
// {language}/{name}.html.
type S3Store struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

type S3Config struct {
	Region string
	Bucket string
}

// NewS3Store creates an S3-backed template store using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for S3: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

func s3Key(name, language string) string {
	return fmt.Sprintf("%s/%s.html", language, name)
}

// Get fetches template content, returning ErrTemplateNotFound when the
// key does not exist.
func (s *S3Store) Get(ctx context.Context, name, language string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key(name, language)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", fmt.Errorf("template %s/%s: %w", language, name, ErrTemplateNotFound)
		}
		return "", fmt.Errorf("s3 get %s: %w", s3Key(name, language), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("read s3 object body: %w", err)
	}

	return string(data), nil
}

// Put uploads template content.
func (s *S3Store) Put(ctx context.Context, name, language, content string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Key(name, language)),
		Body:        bytes.NewReader([]byte(content)),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", s3Key(name, language), err)
	}

	s.logger.Info("template saved to S3",
		zap.String("template", name),
		zap.String("language", language),
		zap.String("bucket", s.bucket),
	)
	return nil
}

// Exists reports whether the exact language variant exists in the bucket.
func (s *S3Store) Exists(ctx context.Context, name, language string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Key(name, language)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", s3Key(name, language), err)
	}
	return true, nil
}

func (s *S3Store) Name() string {
	return "AWS_S3"
}
