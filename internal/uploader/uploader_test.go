package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	calls    int
	failures int // fail the first N calls
	keys     []string
	bodies   []string
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient S3 failure")
	}
	f.keys = append(f.keys, *params.Key)
	body, _ := io.ReadAll(params.Body)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func newTestUploader(putter *fakePutter, deleteAfter bool) *Uploader {
	u := newWithClient(putter, "capture-bucket", deleteAfter, 2)
	u.now = func() time.Time { return time.Date(2025, 12, 30, 10, 30, 0, 0, time.UTC) }
	u.sleep = func(context.Context, time.Duration) error { return nil }
	return u
}

func writeCapture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestArchiveUploadsWithDatedKey(t *testing.T) {
	putter := &fakePutter{}
	path := writeCapture(t, "twitter_42.json", `{"meta":{}}`)

	err := newTestUploader(putter, false).Archive(context.Background(), path, "twitter", "42")
	require.NoError(t, err)
	require.Len(t, putter.keys, 1)
	assert.Equal(t, "2025/12/30/twitter/42/twitter_42.json", putter.keys[0])
	assert.Equal(t, `{"meta":{}}`, putter.bodies[0])

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "local file kept when delete_after_upload is off")
}

func TestArchiveRetriesTransientFailures(t *testing.T) {
	putter := &fakePutter{failures: 2}
	path := writeCapture(t, "twitch_chan.jsonl", "{}\n")

	err := newTestUploader(putter, false).Archive(context.Background(), path, "twitch", "chan")
	require.NoError(t, err)
	assert.Equal(t, 3, putter.calls)
}

func TestArchiveGivesUpAfterBudget(t *testing.T) {
	putter := &fakePutter{failures: 10}
	path := writeCapture(t, "twitch_chan.jsonl", "{}\n")

	err := newTestUploader(putter, false).Archive(context.Background(), path, "twitch", "chan")
	require.Error(t, err)
	assert.Equal(t, 3, putter.calls, "initial attempt plus maxRetries")
}

func TestArchiveDeletesAfterUpload(t *testing.T) {
	putter := &fakePutter{}
	path := writeCapture(t, "twitter_42.json", "{}")

	err := newTestUploader(putter, true).Archive(context.Background(), path, "twitter", "42")
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
