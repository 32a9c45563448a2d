package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client wraps the AWS S3 client for archive upload and retrieval.
type S3Client struct {
	client     *s3.Client
	bucketName string
	prefix     string
}

// NewS3Client creates a new S3 client. Credentials come from the default
// AWS chain (env, shared config, instance role).
func NewS3Client(ctx context.Context, bucketName, prefix string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Client{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
	}, nil
}

func (s *S3Client) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// UploadArchive stores a finished collection archive under the configured
// prefix and returns the s3:// URL.
func (s *S3Client) UploadArchive(ctx context.Context, name string, data []byte, meta map[string]string) (string, error) {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("key", key).Int("bytes", len(data)).Msg("uploaded archive to S3")
	return fmt.Sprintf("s3://%s/%s", s.bucketName, key), nil
}

// DownloadArchive fetches an archive back from S3.
func (s *S3Client) DownloadArchive(ctx context.Context, name string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return data, nil
}

// NextVersion returns the next available integer suffix for a base name
// using the pattern baseName_v{N}. Re-exports of the same worksheet get a
// fresh version instead of overwriting the published archive.
func (s *S3Client) NextVersion(ctx context.Context, baseName string) (int, error) {
	if baseName == "" {
		return 1, nil
	}

	prefix := s.key(baseName + "_v")
	maxVersion := 0

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 1, fmt.Errorf("list versions failed: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			verStr := strings.TrimPrefix(*obj.Key, prefix)
			if i := strings.IndexAny(verStr, "._"); i >= 0 {
				verStr = verStr[:i]
			}
			if n, err := strconv.Atoi(verStr); err == nil && n > maxVersion {
				maxVersion = n
			}
		}
	}

	return maxVersion + 1, nil
}
