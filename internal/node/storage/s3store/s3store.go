// Package s3store keeps records as JSON objects in an S3-compatible bucket.
// The object key of a record is its uri with "://" replaced by "/".
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/firecat-notes/firecat/internal/config"
	"github.com/firecat-notes/firecat/internal/node/storage"
	"github.com/firecat-notes/firecat/internal/wire"
)

// API is the part of *s3.Client the store needs.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

type Store struct {
	api    API
	bucket string
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.S3Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return NewWithClient(client, cfg.Bucket), nil
}

func NewWithClient(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

func objectKey(uri string) string {
	return strings.Replace(uri, "://", "/", 1)
}

func keyURI(key string) string {
	return strings.Replace(key, "/", "://", 1)
}

func (s *Store) Put(ctx context.Context, uri string, rec wire.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(uri)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", uri, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, uri string) (*wire.Record, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(uri)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", uri, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 get %s: %w", uri, err)
	}
	var rec wire.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("s3 get %s: corrupt object: %w", uri, err)
	}
	return &rec, nil
}

// Children lists one level under prefix using "/" as the delimiter. Common
// prefixes come back as directories.
func (s *Store) Children(ctx context.Context, prefix string) ([]wire.Entry, error) {
	prefix = storage.ContainerPrefix(prefix)

	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(objectKey(prefix)),
		Delimiter: aws.String("/"),
	})

	var uris []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			uris = append(uris, keyURI(aws.ToString(obj.Key)))
		}
		for _, cp := range page.CommonPrefixes {
			uris = append(uris, keyURI(aws.ToString(cp.Prefix)))
		}
	}

	return storage.Entries(prefix, uris), nil
}

func (s *Store) Delete(ctx context.Context, uri string) error {
	key := aws.String(objectKey(uri))

	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: key})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("s3 head %s: %w", uri, err)
	}

	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: key}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", uri, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
