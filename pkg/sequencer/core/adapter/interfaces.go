// Package adapter defines the resource abstractions shared by the database and storage adapters.
package adapter

import "context"

// ResourceConnection represents a generic connection to any resource (e.g., database, storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "mysql", "gcs").
	Type() string
	// Name returns the connection name (e.g., "sequencer", "exports").
	Name() string
}

// ResourceConnectionResolver resolves named resource connections.
type ResourceConnectionResolver interface {
	// ResolveConnection resolves a resource connection instance by name.
	// Implementations re-establish invalid connections before returning them.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)

	// ResolveConnectionName resolves the connection name to use for a request.
	// The default implementation returns defaultName.
	ResolveConnectionName(ctx context.Context, defaultName string) (string, error)
}
