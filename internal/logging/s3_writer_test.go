package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Writer_WriteBatch(t *testing.T) {
	putter := &fakePutter{}
	w := newS3Writer(putter, S3Config{Bucket: "archive", Prefix: "sessions", PodName: "router-0"})
	w.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC) }

	key, err := w.WriteBatch(context.Background(), []*SessionRecord{
		{RequestID: "a", Provider: "openai"},
		{RequestID: "b", Provider: "gemini"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sessions/2026/02/03/router-0-20260203-040506-000000007.jsonl", key)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "archive", aws.ToString(in.Bucket))
	assert.Equal(t, key, aws.ToString(in.Key))
	assert.Equal(t, "application/x-ndjson", aws.ToString(in.ContentType))

	scanner := bufio.NewScanner(strings.NewReader(putter.bodies[0]))
	var ids []string
	for scanner.Scan() {
		var rec SessionRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		ids = append(ids, rec.RequestID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestS3Writer_EmptyBatch(t *testing.T) {
	putter := &fakePutter{}
	w := newS3Writer(putter, S3Config{Bucket: "archive"})

	key, err := w.WriteBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, putter.inputs)
}

func TestS3Writer_Defaults(t *testing.T) {
	w := newS3Writer(&fakePutter{}, S3Config{Bucket: "archive"})
	key := w.objectKey(time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, "2026/12/31/router-20261231-235959-000000000.jsonl", key)
}

func TestS3Writer_UploadError(t *testing.T) {
	w := newS3Writer(&fakePutter{err: errors.New("access denied")}, S3Config{Bucket: "archive"})

	_, err := w.WriteBatch(context.Background(), []*SessionRecord{{RequestID: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Writer_RequiresBucket(t *testing.T) {
	_, err := NewS3Writer(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
