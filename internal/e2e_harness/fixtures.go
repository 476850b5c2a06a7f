package e2e_harness

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/formgen"
	"github.com/lychee-technology/formgen/internal"
)

const (
	S3AccessKey = "minio"
	S3SecretKey = "minio"
)

// SchemaDocuments describes a small library: books reference one author and
// many tags, publishers have no display name.
var SchemaDocuments = map[string]string{
	"book": `{
  "type": "object",
  "x-display-name": "title",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "title": {"type": "string"},
    "summary": {"type": "string", "x-column": {"type": "text"}},
    "releasedOn": {"type": "string", "format": "date", "x-column": {"name": "released_on"}},
    "author": {"type": "integer", "x-relation": {"target": "author", "type": "one"}},
    "tags": {"type": "array", "items": {"type": "integer"}, "x-relation": {"target": "tag", "type": "many"}},
    "publisher": {"type": "integer", "x-relation": {"target": "publisher", "type": "one"}}
  }
}`,
	"author": `{
  "type": "object",
  "x-display-name": "name",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "name": {"type": "string"},
    "email": {"type": "string"}
  }
}`,
	"tag": `{
  "type": "object",
  "x-display-name": "label",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}},
    "label": {"type": "string"}
  }
}`,
	"publisher": `{
  "type": "object",
  "properties": {
    "id": {"type": "integer", "x-column": {"id": true}}
  }
}`,
}

// SeedPostgres creates the author and tag tables. Authors get rows, tags
// stay empty.
func SeedPostgres(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS author (id INTEGER PRIMARY KEY, name TEXT, email TEXT)`,
		`CREATE TABLE IF NOT EXISTS tag (id INTEGER PRIMARY KEY, label TEXT)`,
		`INSERT INTO author (id, name, email) VALUES (2, 'Bo', 'bo@example.com'), (1, 'Ann', 'ann@example.com')`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("seed postgres: %w", err)
		}
	}
	return nil
}

// UploadSchemaDocuments creates bucket if needed and uploads every schema
// document as <prefix><entity>.json.
func UploadSchemaDocuments(ctx context.Context, endpoint, bucket, prefix string) error {
	client, err := internal.NewS3Client(ctx, formgen.S3Config{
		Region:       "us-east-1",
		Endpoint:     endpoint,
		UsePathStyle: true,
		AccessKey:    S3AccessKey,
		SecretKey:    S3SecretKey,
	})
	if err != nil {
		return err
	}

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if _, cerr := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); cerr != nil {
			var apiErr smithy.APIError
			if !errors.As(cerr, &apiErr) {
				return fmt.Errorf("create bucket: %w", cerr)
			}
			if code := apiErr.ErrorCode(); code != "BucketAlreadyOwnedByYou" && code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket: %w", cerr)
			}
		}
	}

	uploader := manager.NewUploader(client)
	for name, doc := range SchemaDocuments {
		if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(prefix + name + ".json"),
			Body:   bytes.NewReader([]byte(doc)),
		}); err != nil {
			return fmt.Errorf("s3 upload %s: %w", name, err)
		}
	}
	return nil
}
