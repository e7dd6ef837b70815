package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ensure interface is implemented
var _ Dialer = (*S3Dialer)(nil)

// S3Dialer produces sessions backed by an S3 bucket. The endpoint's Host
// is the bucket name; object keys are the remote paths. S3 has no real
// directories, so Verify checks that the bucket itself is reachable.
type S3Dialer struct {
	// Profile selects a shared-config credentials profile. Empty uses the
	// default resolution chain.
	Profile string

	// Region overrides the region from the resolved AWS config.
	Region string
}

func (d *S3Dialer) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if d.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(d.Profile))
	}
	if d.Region != "" {
		opts = append(opts, awsconfig.WithRegion(d.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &s3Session{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   ep.Host,
	}, nil
}

type s3Session struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	closed   bool
}

// buildKey normalizes a destination path into an object key.
func (s *s3Session) buildKey(pth string) string {
	key := path.Clean(pth)
	key = strings.TrimPrefix(key, "/")
	if key == "." {
		return ""
	}
	return key
}

func (s *s3Session) Verify(ctx context.Context, pth string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("failed to verify bucket %s: %w", s.bucket, err)
	}
	return true, nil
}

func (s *s3Session) Put(ctx context.Context, pth string, r io.Reader) error {
	key := s.buildKey(pth)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("s3 upload of %s failed: %w", key, err)
	}
	return nil
}

func (s *s3Session) Close() error {
	// The SDK client holds no per-session resources.
	s.closed = true
	return nil
}
