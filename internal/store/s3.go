package store

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config holds the connection settings of an S3Store. Empty keys fall
// back to the default AWS credential chain.
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the S3 endpoint (MinIO, localstack). Path-style
	// addressing is used when it is set.
	Endpoint string
}

// S3Store is a BlobStore backed by S3. A client is built for every call.
type S3Store struct {
	cfg S3Config
}

// NewS3Store creates a new S3Store.
func NewS3Store(cfg S3Config) *S3Store {
	return &S3Store{cfg: cfg}
}

func (s *S3Store) client(ctx context.Context) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.cfg.Region),
	}
	if s.cfg.AccessKey != "" && s.cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		if s.cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Put uploads payload to bucket under ObjectKey(keyPrefix, filename).
func (s *S3Store) Put(ctx context.Context, bucket, keyPrefix, filename string, payload []byte) error {
	key := ObjectKey(keyPrefix, filename)
	client, err := s.client(ctx)
	if err != nil {
		return storageError("put", bucket, key, err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return storageError("put", bucket, key, err)
	}
	return nil
}

// Get downloads the object stored under ObjectKey(keyPrefix, filename).
func (s *S3Store) Get(ctx context.Context, bucket, keyPrefix, filename string) ([]byte, error) {
	key := ObjectKey(keyPrefix, filename)
	client, err := s.client(ctx)
	if err != nil {
		return nil, storageError("get", bucket, key, err)
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, storageError("get", bucket, key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, storageError("get", bucket, key, err)
	}
	return payload, nil
}
