package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/snarg/lectern/internal/config"
)

// S3Source fetches recordings from an S3-compatible object store into a
// local cache directory. Reads hit the cache first; a miss downloads the
// object and caches it for future reads.
type S3Source struct {
	client   *s3.Client
	bucket   string
	prefix   string
	cacheDir string
	exts     map[string]bool
	log      zerolog.Logger
}

// NewS3Source creates an S3-backed recording source from config.
func NewS3Source(cfg config.S3Config, cacheDir string, exts map[string]bool, log zerolog.Logger) (*S3Source, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Source{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		cacheDir: cacheDir,
		exts:     exts,
		log:      log.With().Str("component", "s3-source").Logger(),
	}, nil
}

// HeadBucket checks that the bucket exists and credentials are valid.
func (s *S3Source) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &s.bucket,
	})
	return err
}

func (s *S3Source) List(ctx context.Context) ([]Recording, error) {
	in := &s3.ListObjectsV2Input{Bucket: &s.bucket}
	if s.prefix != "" {
		in.Prefix = aws.String(s.prefix + "/")
	}

	var recs []Recording
	p := s3.NewListObjectsV2Paginator(s.client, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			key := s.stripPrefix(aws.ToString(obj.Key))
			if key == "" || strings.HasSuffix(key, "/") || !matchesExt(s.exts, key) {
				continue
			}
			recs = append(recs, Recording{
				Key:     key,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })
	return recs, nil
}

// Fetch returns the cached copy of a recording, downloading it first when the
// cache misses.
func (s *S3Source) Fetch(ctx context.Context, key string) (string, error) {
	local := filepath.Join(s.cacheDir, filepath.FromSlash(key))
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	objKey := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	if err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", s.bucket, objKey, err)
	}
	defer out.Body.Close()

	if err := saveStream(local, out.Body); err != nil {
		return "", err
	}
	s.log.Debug().Str("key", key).Msg("recording cached")
	return local, nil
}

// Exists checks whether the object is present in the bucket.
func (s *S3Source) Exists(ctx context.Context, key string) bool {
	objKey := s.objectKey(key)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	return err == nil
}

func (s *S3Source) Type() string { return "s3" }

func (s *S3Source) objectKey(key string) string {
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

func (s *S3Source) stripPrefix(objKey string) string {
	if s.prefix != "" {
		return strings.TrimPrefix(objKey, s.prefix+"/")
	}
	return objKey
}
