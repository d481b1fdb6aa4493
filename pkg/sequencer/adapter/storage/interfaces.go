// Package storage defines the object storage abstractions schedule exports are written through.
package storage

import (
	"context"
	"io"

	storageconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/config"
	coreAdapter "github.com/tigerroll/sequencer/pkg/sequencer/core/adapter"
)

// ProviderGroup is the Fx value group StorageProviders are collected from.
const ProviderGroup = "storage_providers"

// StorageExecutor defines generic object storage operations.
type StorageExecutor interface {
	// Upload writes data to objectName in bucket. An empty bucket selects the configured default.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens objectName for reading. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object whose name starts with prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. Deleting a missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection represents a named connection to an object store.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor

	// Config returns the storage configuration associated with this connection.
	Config() storageconfig.StorageConfig
}

// StorageProvider manages the connections of one storage type.
type StorageProvider interface {
	// GetConnection retrieves the named connection, opening it on first use.
	GetConnection(ctx context.Context, name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the storage type handled by this provider (e.g., "local", "gcs").
	Type() string
}

// StorageConnectionResolver resolves named storage connections.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveStorageConnection resolves the named connection through the provider of its configured type.
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
