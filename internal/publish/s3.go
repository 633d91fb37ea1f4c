package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultRegion = "us-east-1"

// Publisher uploads a finished document and returns where it was stored.
type Publisher interface {
	Publish(ctx context.Context, key string, content []byte) (string, error)
}

// S3Config addresses an S3-compatible bucket (MinIO in local setups).
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c S3Config) validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"endpoint", c.Endpoint},
		{"access key", c.AccessKey},
		{"secret key", c.SecretKey},
		{"bucket", c.Bucket},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("publish: s3 %s required", strings.Join(missing, ", "))
	}
	return nil
}

type S3Publisher struct {
	client *minio.Client
	bucket string
	region string

	bucketOnce sync.Once
	bucketErr  error
}

func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = defaultRegion
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("publish: s3 client: %w", err)
	}
	return &S3Publisher{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

// Publish uploads content as HTML under key, creating the bucket on first use,
// and returns "bucket/key".
func (p *S3Publisher) Publish(ctx context.Context, key string, content []byte) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("publish: object key is required")
	}
	p.bucketOnce.Do(func() { p.bucketErr = p.createBucket(ctx) })
	if p.bucketErr != nil {
		return "", fmt.Errorf("publish: bucket %s: %w", p.bucket, p.bucketErr)
	}
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/html; charset=utf-8"})
	if err != nil {
		return "", fmt.Errorf("publish: put %s: %w", key, err)
	}
	return p.bucket + "/" + key, nil
}

func (p *S3Publisher) createBucket(ctx context.Context) error {
	ok, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil || ok {
		return err
	}
	return p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
}

// ObjectKey returns "<project>/<base of file>", with the project name reduced
// to a single safe segment.
func ObjectKey(project, file string) string {
	project = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(project))
	if project = strings.Trim(project, "."); project == "" {
		project = "project"
	}
	return path.Join(project, path.Base(file))
}
