package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of *s3.Client the loader uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads s3://bucket/key URLs.
type S3Loader struct {
	client  S3API
	maxSize int64
}

// NewS3Loader returns a loader using client.
func NewS3Loader(client S3API) *S3Loader {
	return &S3Loader{client: client, maxSize: DefaultMaxSize}
}

// S3Config configures the client built by NewS3Client.
type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// NewS3Client builds an S3 client. Credentials come from AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN; without them requests are
// anonymous, which is enough for public buckets.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		UsePathStyle: cfg.UsePathStyle,
		Credentials:  envCredentials(),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func envCredentials() aws.CredentialsProvider {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.AnonymousCredentials{}
	}
	token := os.Getenv("AWS_SESSION_TOKEN")
	return aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "environment",
		}, nil
	}))
}

// Load implements Loader.
func (l *S3Loader) Load(ctx context.Context, u *url.URL) (*Document, error) {
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("source: s3 location %q needs a bucket and a key", u.String())
	}

	out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("source: get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > l.maxSize {
		return nil, fmt.Errorf("source: s3://%s/%s is %d bytes, limit %d", bucket, key, *out.ContentLength, l.maxSize)
	}
	body, err := io.ReadAll(io.LimitReader(out.Body, l.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("source: read s3://%s/%s: %w", bucket, key, err)
	}
	if int64(len(body)) > l.maxSize {
		return nil, errors.New("source: s3 object exceeds size limit")
	}
	return &Document{
		URL:         u,
		Body:        body,
		ContentType: aws.ToString(out.ContentType),
	}, nil
}
