package gcs_test

import (
	"context"
	"testing"

	storageconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/gcs"

	"github.com/stretchr/testify/assert"
)

func TestNewGCSAdapter_RequiresBucket(t *testing.T) {
	_, err := gcs.NewGCSAdapter(context.Background(), storageconfig.StorageConfig{Type: "gcs"}, "exports")
	assert.ErrorContains(t, err, "bucket_name")
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, gcs.ClientOptions(storageconfig.StorageConfig{}))
	assert.Len(t, gcs.ClientOptions(storageconfig.StorageConfig{CredentialsFile: "key.json"}), 1)
	assert.Len(t, gcs.ClientOptions(storageconfig.StorageConfig{Endpoint: "http://localhost:4443/storage/v1/"}), 2)
}
