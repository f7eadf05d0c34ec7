// Package s3store implements repository.BackupRepository on an S3-compatible
// object store.
//
// Each backup is one object, <prefix><id>.json, holding the raw backend
// export. Label, author and creation time travel as object metadata so a
// listing needs only HEAD requests.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/xid"

	"github.com/sakif/craftmarket/internal/apperror"
	"github.com/sakif/craftmarket/internal/model"
	"github.com/sakif/craftmarket/internal/repository"
)

const (
	objectSuffix = ".json"

	metaLabel     = "label"
	metaCreatedBy = "created-by"
	metaCreatedAt = "created-at"
)

// Config locates the bucket. Endpoint is optional; set it for MinIO, R2 and
// other non-AWS stores.
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// objectAPI is the subset of *s3.Client the repository calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Repository stores backups as S3 objects.
type Repository struct {
	api    objectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

var _ repository.BackupRepository = (*Repository)(nil)

// New builds an S3 client from static credentials.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Repository, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: loading SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newRepository(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newRepository(api objectAPI, bucket, prefix string, logger *slog.Logger) *Repository {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Repository{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

func (r *Repository) key(id string) string {
	return r.prefix + id + objectSuffix
}

func (r *Repository) idFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, r.prefix)
	if !ok {
		return "", false
	}
	id, ok = strings.CutSuffix(id, objectSuffix)
	return id, ok && id != "" && !strings.Contains(id, "/")
}

// Save uploads b as a new object.
func (r *Repository) Save(ctx context.Context, b *model.Backup) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	if b.ID == "" {
		b.ID = xid.NewWithTime(b.CreatedAt).String()
	}
	b.Size = int64(len(b.Data))

	_, err := r.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(r.key(b.ID)),
		Body:          bytes.NewReader(b.Data),
		ContentLength: aws.Int64(b.Size),
		ContentType:   aws.String("application/json"),
		Metadata: map[string]string{
			metaLabel:     url.QueryEscape(b.Label),
			metaCreatedBy: url.QueryEscape(b.CreatedBy),
			metaCreatedAt: b.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("s3: saving backup %s: %w", b.ID, err)
	}
	r.logger.Debug("backup uploaded", "key", r.key(b.ID), "size", b.Size)
	return nil
}

// Get downloads a backup with its data.
func (r *Repository) Get(ctx context.Context, id string) (*model.Backup, error) {
	out, err := r.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("backup", id)
		}
		return nil, fmt.Errorf("s3: getting backup %s: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: reading backup %s: %w", id, err)
	}

	b := fromMetadata(id, out.Metadata, out.LastModified)
	b.Data = data
	b.Size = int64(len(data))
	return &b, nil
}

// List pages through the bucket prefix. xid ids sort by creation time, so
// ordering by id descending is newest first without reading metadata.
func (r *Repository) List(ctx context.Context, opts repository.ListOptions) ([]model.Backup, error) {
	opts = opts.Clamp()

	var ids []string
	p := s3.NewListObjectsV2Paginator(r.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucket),
		Prefix: aws.String(r.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: listing backups: %w", err)
		}
		for _, obj := range page.Contents {
			if id, ok := r.idFromKey(aws.ToString(obj.Key)); ok {
				ids = append(ids, id)
			}
		}
	}

	slices.Sort(ids)
	slices.Reverse(ids)
	if opts.Offset >= len(ids) {
		return []model.Backup{}, nil
	}
	ids = ids[opts.Offset:min(len(ids), opts.Offset+opts.Limit)]

	backups := make([]model.Backup, 0, len(ids))
	for _, id := range ids {
		head, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(r.bucket),
			Key:    aws.String(r.key(id)),
		})
		if err != nil {
			if isNotFound(err) {
				// Deleted between the listing and the HEAD.
				r.logger.Debug("backup vanished during listing", "id", id)
				continue
			}
			return nil, fmt.Errorf("s3: reading backup %s metadata: %w", id, err)
		}
		b := fromMetadata(id, head.Metadata, head.LastModified)
		b.Size = aws.ToInt64(head.ContentLength)
		backups = append(backups, b)
	}
	return backups, nil
}

// Delete removes a backup. S3 deletes are silent for missing keys, so the
// object is checked first.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("backup", id)
		}
		return fmt.Errorf("s3: checking backup %s: %w", id, err)
	}

	_, err = r.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key(id)),
	})
	if err != nil {
		return fmt.Errorf("s3: deleting backup %s: %w", id, err)
	}
	return nil
}

func fromMetadata(id string, meta map[string]string, lastModified *time.Time) model.Backup {
	b := model.Backup{
		ID:        id,
		Label:     unescape(meta[metaLabel]),
		CreatedBy: unescape(meta[metaCreatedBy]),
	}
	if t, err := time.Parse(time.RFC3339Nano, meta[metaCreatedAt]); err == nil {
		b.CreatedAt = t
	} else if lastModified != nil {
		b.CreatedAt = lastModified.UTC()
	}
	return b
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func isNotFound(err error) bool {
	var (
		noKey *types.NoSuchKey
		nf    *types.NotFound
	)
	return errors.As(err, &noKey) || errors.As(err, &nf)
}

// String describes the location for startup logs.
func (r *Repository) String() string {
	return "s3://" + r.bucket + "/" + r.prefix
}
