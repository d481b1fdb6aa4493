package storage

import (
	"context"
	"fmt"
	"sync"

	storageconfig "github.com/tigerroll/sequencer/pkg/sequencer/adapter/storage/config"
	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/configbinder"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"

	"github.com/hashicorp/go-multierror"
)

// ConnectionFactory opens a connection of one storage type.
type ConnectionFactory func(ctx context.Context, cfg storageconfig.StorageConfig, name string) (StorageConnection, error)

// DecodeStorageConfig binds the raw config of the named connection under adapter.storage.
func DecodeStorageConfig(cfg *config.Config, name string) (storageconfig.StorageConfig, error) {
	var storageCfg storageconfig.StorageConfig
	section := cfg.AdapterSection("storage")
	if section == nil {
		return storageCfg, fmt.Errorf("no 'adapter.storage' configuration found")
	}
	raw, ok := section[name]
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration '%s' not found under 'adapter.storage'", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return storageCfg, fmt.Errorf("storage configuration '%s' must be a map, got %T", name, raw)
	}
	if err := configbinder.BindProperties(props, &storageCfg); err != nil {
		return storageCfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return storageCfg, nil
}

// BaseProvider implements StorageProvider for one storage type. Backend subpackages
// supply the ConnectionFactory.
type BaseProvider struct {
	cfg         *config.Config
	storageType string
	open        ConnectionFactory
	connections map[string]StorageConnection
	mu          sync.Mutex
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(cfg *config.Config, storageType string, open ConnectionFactory) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		storageType: storageType,
		open:        open,
		connections: make(map[string]StorageConnection),
	}
}

// Type returns the storage type.
func (p *BaseProvider) Type() string {
	return p.storageType
}

// GetConnection retrieves an existing connection or opens a new one.
func (p *BaseProvider) GetConnection(ctx context.Context, name string) (StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}

	storageCfg, err := DecodeStorageConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type != p.storageType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, p.storageType, storageCfg.Type)
	}
	conn, err := p.open(ctx, storageCfg, name)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Infof("Established new storage connection: %s (%s)", name, p.storageType)
	return conn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}
