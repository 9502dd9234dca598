package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"vidscribe/errors"
)

const s3KeyPrefix = "transcriptions/"

type S3Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Endpoint  string
	Bucket    string
}

// S3Store keeps one JSON object per video under transcriptions/<id>.json.
// It works against AWS S3 or any S3-compatible endpoint (Spaces, MinIO).
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	const op = "cache.NewS3Store"

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{URL: cfg.Endpoint}, nil
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.CacheIO(op, err, "unable to load SDK config")
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3Store) key(videoID string) string {
	return fmt.Sprintf("%s%s.json", s3KeyPrefix, videoID)
}

func (s *S3Store) Save(ctx context.Context, rec Record) error {
	const op = "S3Store.Save"

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.CacheIO(op, err, "failed to encode record")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(rec.VideoID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.CacheIO(op, err, "failed to save record")
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, videoID string) (Record, bool, error) {
	const op = "S3Store.Load"

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(videoID)),
	})
	if err != nil {
		if isNotFound(err) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.CacheIO(op, err, "failed to get record")
	}
	defer result.Body.Close()

	var rec Record
	if err := json.NewDecoder(result.Body).Decode(&rec); err != nil {
		return Record{}, false, errors.CacheIO(op, err, "failed to decode record")
	}
	return rec, true, nil
}

func (s *S3Store) Delete(ctx context.Context, videoID string) error {
	const op = "S3Store.Delete"

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(videoID)),
	})
	if err != nil {
		return errors.CacheIO(op, err, "failed to delete record")
	}
	return nil
}

func (s *S3Store) All(ctx context.Context) ([]Record, error) {
	const op = "S3Store.All"

	var records []Record
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s3KeyPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.CacheIO(op, err, "failed to list records")
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id := strings.TrimSuffix(strings.TrimPrefix(key, s3KeyPrefix), ".json")
			if id == "" {
				continue
			}
			rec, found, err := s.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			if found {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

func (s *S3Store) Close() error { return nil }

func isNotFound(err error) bool {
	// The SDK surfaces missing keys as NoSuchKey (GetObject) or NotFound
	// (HeadObject depending on endpoint).
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound")
}
