package internal

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/formgen"
	"go.uber.org/zap"
)

// S3SchemaClient is the subset of the S3 API used to fetch schema documents.
type S3SchemaClient interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// NewS3Client builds an S3 client for the schema bucket. Static credentials
// and a custom endpoint are optional.
func NewS3Client(ctx context.Context, cfg formgen.S3Config) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(cfg.Endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// LoadSchemaDocumentsFromS3 downloads every *.json object under prefix. The
// entity name is the object's base name without extension; two objects with
// the same entity name are a schema error.
func LoadSchemaDocumentsFromS3(ctx context.Context, client S3SchemaClient, bucket, prefix string) (map[string][]byte, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 schema source requires a bucket")
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 1
	})

	docs := make(map[string][]byte)
	sources := make(map[string]string)
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, describeS3Error("list schemas", bucket, prefix, err)
		}
		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			name := strings.TrimSuffix(path.Base(key), ".json")
			if first, dup := sources[name]; dup {
				return nil, formgen.NewSchemaError(name,
					fmt.Sprintf("entity schema defined by both %s and %s", first, key), nil).
					WithDetail("bucket", bucket)
			}
			sources[name] = key

			buf := manager.NewWriteAtBuffer(make([]byte, 0, aws.ToInt64(object.Size)))
			if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
				Bucket: aws.String(bucket),
				Key:    aws.String(key),
			}); err != nil {
				return nil, describeS3Error("download schema", bucket, key, err)
			}
			docs[name] = buf.Bytes()
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no schema files found in s3://%s/%s", bucket, prefix)
	}
	zap.S().Infow("downloaded entity schemas", "count", len(docs), "bucket", bucket, "prefix", prefix)
	return docs, nil
}

// NewSchemaRegistryFromS3 loads schema documents from a bucket and parses them.
func NewSchemaRegistryFromS3(ctx context.Context, client S3SchemaClient, bucket, prefix string) (*SchemaRegistry, error) {
	docs, err := LoadSchemaDocumentsFromS3(ctx, client, bucket, prefix)
	if err != nil {
		return nil, err
	}
	return NewSchemaRegistryFromDocuments(docs)
}

func describeS3Error(op, bucket, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s s3://%s/%s: %s: %w", op, bucket, key, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, bucket, key, err)
}
