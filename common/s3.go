package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Config contains minimal configuration for creating an S3 client.
// Values are optional and will fall back to the standard AWS config/credential chain.
type S3Config struct {
	// Region to use for requests, e.g. "us-east-1". If empty, AWS defaults apply.
	Region string
	// Profile selects a named shared config/credentials profile. If empty, default chain applies.
	Profile string
	// UsePathStyle forces path-style addressing (useful for some S3-compatible providers).
	UsePathStyle bool
	// Bucket is the authenticated media bucket all refs must resolve into.
	Bucket string
}

// S3 wraps the AWS SDK for Go v2 S3 client with the narrow surface the
// verification pipeline needs: existence checks for media refs and
// finalized artifacts, plus uploads for callers that finalize content.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates a new S3 wrapper using the default AWS configuration chain,
// with optional overrides from S3Config.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3{client: c, bucket: cfg.Bucket}, nil
}

// Bucket returns the configured media bucket name.
func (s *S3) Bucket() string { return s.bucket }

// Put uploads an object to the media bucket.
// If contentType is non-empty, it is set on the object.
func (s *S3) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// Exists returns true if the object exists (HTTP 200 from HeadObject); false if 404/NotFound.
func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	// Check for HTTP 404 response error
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		if respErr.HTTPStatusCode() == 404 {
			return false, nil
		}
	}

	// Check for API error code NotFound
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFound" {
			return false, nil
		}
	}

	return false, err
}

// KeyFromRef resolves a media ref to an object key inside the
// configured bucket. Accepted forms are s3://<bucket>/<key> and https
// URLs on the bucket's virtual-hosted or path-style hosts. Raw
// unauthenticated provider URLs are rejected: media must have been
// re-homed into our storage before verification passes.
func (s *S3) KeyFromRef(ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("unparseable media ref %q: %w", ref, err)
	}

	switch parsed.Scheme {
	case "s3":
		if parsed.Host != s.bucket {
			return "", fmt.Errorf("media ref %q points outside bucket %s", ref, s.bucket)
		}
		return strings.TrimPrefix(parsed.Path, "/"), nil
	case "https":
		if strings.HasPrefix(parsed.Host, s.bucket+".s3") {
			return strings.TrimPrefix(parsed.Path, "/"), nil
		}
		// Path-style: host is an S3 endpoint, first path segment is the bucket.
		if strings.Contains(parsed.Host, "s3") {
			trimmed := strings.TrimPrefix(parsed.Path, "/")
			if strings.HasPrefix(trimmed, s.bucket+"/") {
				return strings.TrimPrefix(trimmed, s.bucket+"/"), nil
			}
		}
		return "", fmt.Errorf("media ref %q is not an authenticated storage location", ref)
	default:
		return "", fmt.Errorf("media ref %q has unsupported scheme %q", ref, parsed.Scheme)
	}
}
