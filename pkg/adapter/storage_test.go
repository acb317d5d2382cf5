package adapter_test

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lumia/pkg/adapter"
)

func TestParseGCSURL(t *testing.T) {
	testCases := []struct {
		url    string
		bucket string
		key    string
		valid  bool
	}{
		{"gs://lumia-data/prape/passages.jsonl", "lumia-data", "prape/passages.jsonl", true},
		{"gs://bucket/obj", "bucket", "obj", true},
		{"gs://bucket", "", "", false},
		{"gs://bucket/", "", "", false},
		{"/tmp/passages.jsonl", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			bucket, key, err := adapter.ParseGCSURL(tc.url)
			if !tc.valid {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Equal(t, bucket, tc.bucket)
			gt.Equal(t, key, tc.key)
		})
	}
}

func TestStorageGet(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	object := os.Getenv("TEST_STORAGE_OBJECT")
	if bucket == "" || object == "" {
		t.Skip("TEST_STORAGE_BUCKET and TEST_STORAGE_OBJECT must be set")
	}

	ctx := context.Background()
	client, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	r, err := client.Get(ctx, object)
	gt.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.A(t, data).Longer(0)
}
