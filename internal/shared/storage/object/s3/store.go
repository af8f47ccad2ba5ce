package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"docsum-backend/internal/shared/storage/object"
	"docsum-backend/internal/shared/telemetry"
	"docsum-backend/internal/shared/util"
)

// Options configures an S3-compatible store.
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL overrides <endpoint>/<bucket> as the base of recorded object URLs.
	PublicURL string
	Prefix    string
}

// Store implements ObjectStore against an S3-compatible endpoint (AWS, MinIO).
type Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	opts      Options
	now       func() time.Time
}

// New creates an S3-backed object store using static credentials and
// path-style addressing.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	opts.PublicURL = strings.TrimRight(opts.PublicURL, "/")
	opts.Prefix = normalizePrefix(opts.Prefix)

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	})

	return &Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		opts:      opts,
		now:       time.Now,
	}, nil
}

// Save uploads the reader contents under <prefix>/<unix-millis>-<name>.
func (s *Store) Save(ctx context.Context, fileName string, r io.Reader) (object.Ref, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return object.Ref{}, fmt.Errorf("sanitize file name: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return object.Ref{}, err
	}

	// A seekable body lets the SDK checksum the payload over plain HTTP.
	data, err := io.ReadAll(r)
	if err != nil {
		return object.Ref{}, fmt.Errorf("read body: %w", err)
	}

	key := applyPrefix(s.opts.Prefix, fmt.Sprintf("%d-%s", s.now().UnixMilli(), sanitizedName))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(http.DetectContentType(data)),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return object.Ref{}, fmt.Errorf("s3 put object bucket=%s key=%s: %w", s.opts.Bucket, key, err)
	}

	return object.Ref{Kind: object.KindObject, Key: key, URL: s.PublicURL(key)}, nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, ref object.Ref) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Key == "" {
		return nil, fmt.Errorf("s3 ref has no key")
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object bucket=%s key=%s: %w", s.opts.Bucket, ref.Key, err)
	}
	return out.Body, nil
}

// Presign returns a signed GET URL, degrading to the public URL when signing fails.
func (s *Store) Presign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("s3 presign: empty key")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		telemetry.Warn("storage.presign_failed", map[string]any{"key": key, "err": err})
		return s.PublicURL(key), nil
	}
	return req.URL, nil
}

// PublicURL is the unsigned URL recorded for key.
func (s *Store) PublicURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL + "/" + key
	}
	return s.opts.Endpoint + "/" + s.opts.Bucket + "/" + key
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ object.RemoteStore = (*Store)(nil)
