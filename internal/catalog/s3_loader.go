package catalog

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/echoface/adslot/pkg/logger"
	"github.com/echoface/adslot/pkg/utils"
)

// S3Config locates the catalogue in an S3 compatible bucket.
type S3Config struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Region          string        `mapstructure:"region" yaml:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	BucketName      string        `mapstructure:"bucket_name" yaml:"bucket_name"`
	Prefix          string        `mapstructure:"prefix" yaml:"prefix"`
	UseSSL          bool          `mapstructure:"use_ssl" yaml:"use_ssl"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// S3Loader reads network definitions from *.json objects under a prefix.
type S3Loader struct {
	client     *minio.Client
	bucketName string
	prefix     string
	timeout    time.Duration
	log        logger.Logger
}

func NewS3Loader(cfg S3Config, log logger.Logger) (*S3Loader, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &S3Loader{
		client:     client,
		bucketName: cfg.BucketName,
		prefix:     cfg.Prefix,
		timeout:    timeout,
		log:        logger.OrDefault(log).With("component", "catalog", "bucket", cfg.BucketName),
	}, nil
}

// ListFiles returns the catalogue object keys, sorted.
func (l *S3Loader) ListFiles(ctx context.Context) ([]string, error) {
	var keys []string
	for object := range l.client.ListObjects(ctx, l.bucketName, minio.ListObjectsOptions{
		Prefix:    l.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects error: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, ".json") {
			keys = append(keys, object.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ReadFile decodes the definitions stored in one object.
func (l *S3Loader) ReadFile(ctx context.Context, key string) ([]NetworkDefinition, error) {
	obj, err := l.client.GetObject(ctx, l.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { utils.IgnoreErr(obj.Close(), "close catalog object %s", key) }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	defs, err := DecodeDefinitions(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return defs, nil
}

// LoadAll reads every catalogue file. Unreadable files are logged and
// skipped; the first definition of a type wins.
func (l *S3Loader) LoadAll(ctx context.Context) ([]NetworkDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	keys, err := l.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogue files: %w", err)
	}

	seen := make(map[string]bool)
	var defs []NetworkDefinition
	for _, key := range keys {
		fileDefs, err := l.ReadFile(ctx, key)
		if err != nil {
			l.log.Warn("skipping catalogue file", "key", key, "error", err)
			continue
		}
		for _, def := range fileDefs {
			if seen[def.Type] {
				l.log.Warn("duplicate network definition ignored", "key", key, "type", def.Type)
				continue
			}
			seen[def.Type] = true
			defs = append(defs, def)
		}
	}
	l.log.Info("catalogue loaded", "files", len(keys), "networks", len(defs))
	return defs, nil
}
