package memory

import (
	"context"
	"sync"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/locking"
	"go.uber.org/zap"
)

// Plugins returns the memory driver plugins
func Plugins() []kcv.Plugin {
	return []kcv.Plugin{
		&Plugin{},
	}
}

// Plugin is the memory driver
type Plugin struct {
}

// Name implements kcv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewManager implements kcv.Plugin.NewManager
func (plugin *Plugin) NewManager(options kcv.PluginOptions) (kcv.Manager, error) {
	logger, err := options.Logger()

	if err != nil {
		return nil, err
	}

	return New(Config{Logger: logger}), nil
}

// NewTempManager implements kcv.Plugin.NewTempManager
func (plugin *Plugin) NewTempManager() (kcv.Manager, error) {
	return plugin.NewManager(kcv.PluginOptions{})
}

// Config contains configuration for
// a memory manager
type Config struct {
	Logger *zap.Logger
}

var _ kcv.Manager = (*Manager)(nil)

// Manager opens in-memory stores. Stores live as long
// as the manager.
type Manager struct {
	mu     sync.Mutex
	stores map[string]*Store
	locks  *locking.Table
	logger *zap.Logger
	closed bool
}

// New creates a memory manager
func New(config Config) *Manager {
	manager := &Manager{logger: config.Logger, stores: map[string]*Store{}}

	if manager.logger == nil {
		manager.logger = zap.L()
	}

	manager.logger = manager.logger.With(zap.String("driver", DriverName))
	manager.locks = locking.NewTable(manager.logger)

	return manager
}

// Name implements kcv.Manager.Name
func (manager *Manager) Name() string {
	return DriverName
}

// Features implements kcv.Manager.Features
func (manager *Manager) Features() kcv.Features {
	return features
}

// OpenStore implements kcv.Manager.OpenStore
func (manager *Manager) OpenStore(ctx context.Context, name string) (kcv.Store, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.closed {
		return nil, kcv.ErrClosed
	}

	if store, ok := manager.stores[name]; ok {
		return store, nil
	}

	store := newStore(name, manager.locks, manager.logger)
	manager.stores[name] = store

	return store, nil
}

// BeginTransaction implements kcv.Manager.BeginTransaction
func (manager *Manager) BeginTransaction(ctx context.Context) (*kcv.StoreTransaction, error) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	if manager.closed {
		return nil, kcv.ErrClosed
	}

	return kcv.NewTransaction(), nil
}

// Close implements kcv.Manager.Close
func (manager *Manager) Close() error {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	manager.closed = true

	for _, store := range manager.stores {
		store.Close()
	}

	return nil
}

// Delete implements kcv.Manager.Delete
func (manager *Manager) Delete() error {
	if err := manager.Close(); err != nil {
		return err
	}

	manager.mu.Lock()
	defer manager.mu.Unlock()

	manager.stores = map[string]*Store{}

	return nil
}
