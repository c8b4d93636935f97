package objectstore

import (
	"errors"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	err := mapError(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, "a/b.png")
	assert.ErrorIs(t, err, store.ErrObjectNotFound)
	assert.True(t, store.IsNotFoundError(err))

	err = mapError(errors.New("connection reset"), "a/b.png")
	assert.NotErrorIs(t, err, store.ErrObjectNotFound)
	assert.Contains(t, err.Error(), "a/b.png")
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(config.StorageConfig{Bucket: "b"}, nil)
	assert.Error(t, err)

	s, err := New(config.StorageConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "tokensmith",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "tokensmith", s.bucket)
}
