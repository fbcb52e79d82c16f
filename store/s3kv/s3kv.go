// Package s3kv is a store.KV on an S3-compatible bucket (AWS S3, MinIO).
// Each collection is one object holding its encoded record.
package s3kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/store"
)

// Config selects the bucket and how to reach it.
type Config struct {
	Bucket   string
	Prefix   string // object key prefix, "collections/" when empty
	Region   string // us-east-1 when empty
	Endpoint string // custom endpoint, e.g. MinIO
	// PathStyle addresses the bucket in the path instead of the host name.
	PathStyle bool
	// Static credentials; the default AWS credential chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

const (
	defaultPrefix = "collections/"
	suffix        = ".json"
	contentType   = "application/json"
	// maxUpdateAttempts bounds retries of a conditional write that lost a race.
	maxUpdateAttempts = 3
)

// ErrConcurrentUpdate is returned when Update keeps losing to other writers.
var ErrConcurrentUpdate = errors.New("s3kv: concurrent update")

// ParseDSN reads s3://bucket[/prefix][?region=..&endpoint=..&path_style=true].
func ParseDSN(dsn string) (Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Config{}, fmt.Errorf("s3kv: parse dsn: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return Config{}, fmt.Errorf("s3kv: dsn must look like s3://bucket/prefix, got %q", dsn)
	}
	q := u.Query()
	cfg := Config{
		Bucket:   u.Host,
		Prefix:   strings.TrimPrefix(u.Path, "/"),
		Region:   q.Get("region"),
		Endpoint: q.Get("endpoint"),
	}
	if v := q.Get("path_style"); v != "" {
		cfg.PathStyle, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("s3kv: path_style: %w", err)
		}
	}
	return cfg, nil
}

// KV implements store.KV on one bucket.
type KV struct {
	client *s3.Client
	bucket string
	prefix string
}

var _ store.KV = (*KV)(nil)

// New builds an S3 client from cfg. optFns adjust the client options after
// cfg is applied.
func New(ctx context.Context, cfg Config, optFns ...func(*s3.Options)) (*KV, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3kv: bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3kv: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		for _, fn := range optFns {
			fn(o)
		}
	})
	return NewFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *s3.Client, bucket, prefix string) *KV {
	if prefix == "" {
		prefix = defaultPrefix
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &KV{client: client, bucket: bucket, prefix: prefix}
}

func (kv *KV) key(id string) string { return kv.prefix + url.PathEscape(id) + suffix }

// GetAll lists the prefix and decodes every record, ordered by id.
func (kv *KV) GetAll(ctx context.Context) ([]*hayabib.Collection, error) {
	var (
		out   []*hayabib.Collection
		token *string
	)
	for {
		page, err := kv.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &kv.bucket,
			Prefix:            &kv.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", kv.bucket, kv.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, suffix) {
				continue
			}
			data, _, err := kv.read(ctx, key)
			if errors.Is(err, hayabib.ErrNotFound) {
				// deleted after the listing
				continue
			}
			if err != nil {
				return nil, err
			}
			c, err := store.DecodeRecord(data)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", key, err)
			}
			out = append(out, c)
		}
		if !aws.ToBool(page.IsTruncated) || page.NextContinuationToken == nil {
			break
		}
		token = page.NextContinuationToken
	}
	slices.SortFunc(out, func(a, b *hayabib.Collection) int { return strings.Compare(a.Metadata.ID, b.Metadata.ID) })
	return out, nil
}

func (kv *KV) Get(ctx context.Context, id string) (*hayabib.Collection, error) {
	c, _, err := kv.get(ctx, id)
	return c, err
}

func (kv *KV) get(ctx context.Context, id string) (*hayabib.Collection, string, error) {
	data, etag, err := kv.read(ctx, kv.key(id))
	if err != nil {
		return nil, "", err
	}
	c, err := store.DecodeRecord(data)
	if err != nil {
		return nil, "", err
	}
	return c, etag, nil
}

func (kv *KV) read(ctx context.Context, key string) ([]byte, string, error) {
	out, err := kv.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &kv.bucket, Key: &key})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("s3kv: %s: %w", key, hayabib.ErrNotFound)
		}
		return nil, "", fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", key, err)
	}
	return data, aws.ToString(out.ETag), nil
}

// write stores c. ifNoneMatch and ifMatch map to the conditional-write
// headers; empty values are not sent.
func (kv *KV) write(ctx context.Context, c *hayabib.Collection, ifNoneMatch, ifMatch string) error {
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	key := kv.key(c.Metadata.ID)
	in := &s3.PutObjectInput{
		Bucket:        &kv.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if ifNoneMatch != "" {
		in.IfNoneMatch = aws.String(ifNoneMatch)
	}
	if ifMatch != "" {
		in.IfMatch = aws.String(ifMatch)
	}
	_, err = kv.client.PutObject(ctx, in)
	return err
}

func (kv *KV) Put(ctx context.Context, c *hayabib.Collection) error {
	if err := kv.write(ctx, c, "", ""); err != nil {
		return fmt.Errorf("put %q: %w", c.Metadata.ID, err)
	}
	return nil
}

// Add is a create-only write (If-None-Match: *).
func (kv *KV) Add(ctx context.Context, c *hayabib.Collection) error {
	err := kv.write(ctx, c, "*", "")
	if isPreconditionFailed(err) {
		return fmt.Errorf("s3kv: %q: %w", c.Metadata.ID, hayabib.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("add %q: %w", c.Metadata.ID, err)
	}
	return nil
}

// Delete removes the object. S3 deletes are idempotent.
func (kv *KV) Delete(ctx context.Context, id string) error {
	key := kv.key(id)
	if _, err := kv.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &kv.bucket, Key: &key}); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	return nil
}

// Update is a read-modify-write guarded by the object's ETag. A write that
// loses a race is retried on the fresh object.
func (kv *KV) Update(ctx context.Context, id string, p store.Patch) error {
	for range maxUpdateAttempts {
		c, etag, err := kv.get(ctx, id)
		if err != nil {
			return err
		}
		p.Apply(c)
		err = kv.write(ctx, c, "", etag)
		if isPreconditionFailed(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %q: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("update %q: %w", id, ErrConcurrentUpdate)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk) || httpStatus(err) == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	return err != nil && httpStatus(err) == http.StatusPreconditionFailed
}

func httpStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
