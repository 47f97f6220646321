package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"toden-backend/internal/core"
	"toden-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucketName = "test-bucket"

func setupTestObjectStore(t *testing.T, ctx context.Context) *storage.S3ObjectStore {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	objectStore, err := storage.NewS3ObjectStore(bucketName, storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(ctx))

	return objectStore
}

func TestS3ObjectStore_PutObject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	key := "test-dir/test-file.txt"
	content := []byte("Test content")

	require.NoError(t, objectStore.PutObject(ctx, key, bytes.NewReader(content)))

	data, err := objectStore.GetObject(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = objectStore.GetObject(ctx, "test-dir/missing.txt")
	assert.True(t, errors.Is(err, storage.ErrObjectNotFound))
}

func TestS3ObjectStore_DeleteObjects(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	prefix := "test-dir/"

	files := []string{"test-dir/file1.txt", "test-dir/subdir/file2.txt", "other-dir/file3.txt"}
	for _, file := range files {
		require.NoError(t, objectStore.PutObject(ctx, file, bytes.NewReader([]byte("content: "+file))))
	}

	objs, err := objectStore.ListObjects(ctx, prefix)
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	require.NoError(t, objectStore.DeleteObjects(ctx, prefix))

	newObjs, err := objectStore.ListObjects(ctx, prefix)
	require.NoError(t, err)
	assert.Len(t, newObjs, 0)

	others, err := objectStore.ListObjects(ctx, "other-dir/")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func TestS3ObjectStore_UploadOutputsOverwrite(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	objectStore := setupTestObjectStore(t, ctx)

	upload := func(clusters string) []string {
		result, err := json.Marshal(map[string]string{
			"adj_matrix_csv": "1,0\n0,1",
			"con_matrix_csv": "0,1\n1,0",
			"clusters_csv":   clusters,
		})
		require.NoError(t, err)

		keys, err := core.UploadOutputs(ctx, objectStore, "run-1", result)
		require.NoError(t, err)
		return keys
	}

	first := upload("ID,0\nAlgoX,g1")
	second := upload("ID,0\nAlgoX,g2")
	assert.Equal(t, first, second)

	objs, err := objectStore.ListObjects(ctx, "predictions/run-1/")
	require.NoError(t, err)
	assert.Len(t, objs, 3)

	data, err := objectStore.GetObject(ctx, "predictions/run-1/clusters.csv")
	require.NoError(t, err)
	assert.Equal(t, "ID,0\nAlgoX,g2", string(data))
}
