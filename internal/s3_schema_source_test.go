package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/lychee-technology/formgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	pages   [][]string
	objects map[string]string
	listErr error
	gets    []string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := 0
	if in.ContinuationToken != nil {
		fmt.Sscanf(*in.ContinuationToken, "page-%d", &page)
	}
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{
			Key:  aws.String(key),
			Size: aws.Int64(int64(len(f.objects[key]))),
		})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("page-%d", page+1))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.gets = append(f.gets, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader([]byte(body))),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func TestLoadSchemaDocumentsFromS3(t *testing.T) {
	client := &fakeS3{
		pages: [][]string{
			{"schemas/author.json", "schemas/readme.txt"},
			{"schemas/nested/article.json"},
		},
		objects: map[string]string{
			"schemas/author.json":         authorSchema,
			"schemas/readme.txt":          "ignored",
			"schemas/nested/article.json": articleSchema,
		},
	}

	docs, err := LoadSchemaDocumentsFromS3(context.Background(), client, "forms", "schemas/")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.JSONEq(t, authorSchema, string(docs["author"]))
	assert.JSONEq(t, articleSchema, string(docs["article"]))
	assert.NotContains(t, client.gets, "schemas/readme.txt")
}

func TestNewSchemaRegistryFromS3(t *testing.T) {
	client := &fakeS3{
		pages:   [][]string{{"author.json"}},
		objects: map[string]string{"author.json": authorSchema},
	}

	registry, err := NewSchemaRegistryFromS3(context.Background(), client, "forms", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"author"}, registry.ListEntities())
}

func TestLoadSchemaDocumentsFromS3_Errors(t *testing.T) {
	t.Run("missing bucket name", func(t *testing.T) {
		_, err := LoadSchemaDocumentsFromS3(context.Background(), &fakeS3{}, "", "")
		assert.Error(t, err)
	})

	t.Run("api error keeps code", func(t *testing.T) {
		client := &fakeS3{listErr: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "gone"}}
		_, err := LoadSchemaDocumentsFromS3(context.Background(), client, "forms", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "NoSuchBucket")

		var apiErr smithy.APIError
		assert.True(t, errors.As(err, &apiErr))
	})

	t.Run("same entity under two prefixes", func(t *testing.T) {
		client := &fakeS3{
			pages: [][]string{
				{"schemas/a/author.json"},
				{"schemas/b/author.json"},
			},
			objects: map[string]string{
				"schemas/a/author.json": authorSchema,
				"schemas/b/author.json": articleSchema,
			},
		}
		docs, err := LoadSchemaDocumentsFromS3(context.Background(), client, "forms", "schemas/")
		require.Error(t, err)
		assert.Nil(t, docs)
		assert.True(t, formgen.IsErrorType(err, formgen.ErrorTypeSchema), "got %v", err)
		assert.Contains(t, err.Error(), "schemas/a/author.json")
		assert.Contains(t, err.Error(), "schemas/b/author.json")
		assert.NotContains(t, client.gets, "schemas/b/author.json")
	})

	t.Run("empty listing", func(t *testing.T) {
		client := &fakeS3{pages: [][]string{{}}}
		_, err := LoadSchemaDocumentsFromS3(context.Background(), client, "forms", "")
		assert.Error(t, err)
	})
}
