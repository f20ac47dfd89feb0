package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := s.Put(ctx, "avatars/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/avatars/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "avatars/a.png"))
	require.NoError(t, s.Delete(ctx, "avatars/a.png"), "deleting twice is fine")
}

func TestLocalStore_StaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "uploads"), "/uploads")
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "../../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "uploads", "escape.txt"))
	assert.NoError(t, err)

	_, err = s.Put(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestNewS3Store_PublicURL(t *testing.T) {
	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:    "imgs",
		Region:    "eu-west-1",
		AccessKey: "k",
		SecretKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://imgs.s3.eu-west-1.amazonaws.com", s.publicBase)

	s, err = NewS3Store(context.Background(), S3Config{
		Bucket:       "imgs",
		Endpoint:     "http://minio:9000/",
		UsePathStyle: true,
		AccessKey:    "k",
		SecretKey:    "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://minio:9000/imgs", s.publicBase)
}
