// Package bbolt implements a persistent kcv store on top of bbolt.
// Each store is a top-level bucket, each row is a bucket nested
// inside it and each column is a key inside the row bucket. bbolt
// keeps keys in byte order so the store supports ordered scans.
package bbolt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/locking"
	"github.com/jrife/kcvstore/utils/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	// DriverName is the name of the bbolt driver
	DriverName = "bbolt"
)

var features = kcv.Features{
	Locking:       true,
	OrderedScan:   true,
	UnorderedScan: true,
}

// Plugins returns the bbolt driver plugins
func Plugins() []kcv.Plugin {
	return []kcv.Plugin{
		&Plugin{},
	}
}

// Plugin is the bbolt driver
type Plugin struct {
}

// Name implements kcv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewManager implements kcv.Plugin.NewManager
func (plugin *Plugin) NewManager(options kcv.PluginOptions) (kcv.Manager, error) {
	var config Config
	var err error

	if config.Path, err = options.String("path", true, ""); err != nil {
		return nil, err
	}

	if config.Logger, err = options.Logger(); err != nil {
		return nil, err
	}

	manager, err := New(config)

	if err != nil {
		return nil, err
	}

	return manager, nil
}

// NewTempManager implements kcv.Plugin.NewTempManager
func (plugin *Plugin) NewTempManager() (kcv.Manager, error) {
	return plugin.NewManager(kcv.PluginOptions{
		"path": uuid.TempPath("bbolt"),
	})
}

// Config contains configuration for
// a bbolt manager
type Config struct {
	Path   string
	Logger *zap.Logger
}

var _ kcv.Manager = (*Manager)(nil)

// Manager opens stores inside one bbolt database file
type Manager struct {
	db     *bolt.DB
	path   string
	mu     sync.Mutex
	stores map[string]*Store
	locks  *locking.Table
	logger *zap.Logger
	closed bool
}

// New opens the bbolt database at config.Path
func New(config Config) (*Manager, error) {
	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("Could not open bbolt store at %s: %s", config.Path, err.Error())
	}

	logger := config.Logger

	if logger == nil {
		logger = zap.L()
	}

	logger = logger.With(zap.String("driver", DriverName), zap.String("path", config.Path))

	return &Manager{
		db:     db,
		path:   config.Path,
		stores: map[string]*Store{},
		locks:  locking.NewTable(logger),
		logger: logger,
	}, nil
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

	if name == "" {
		return nil, fmt.Errorf("store name must not be empty: %w", kcv.ErrInvalidKey)
	}

	if err := manager.db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists([]byte(name))

		return err
	}); err != nil {
		return nil, fmt.Errorf("Could not ensure bucket for store %s exists: %s", name, err.Error())
	}

	store := &Store{
		name:   name,
		db:     manager.db,
		locks:  manager.locks,
		logger: manager.logger.With(zap.String("store", name)),
	}

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

	if manager.closed {
		return nil
	}

	manager.closed = true

	for _, store := range manager.stores {
		store.Close()
	}

	return manager.db.Close()
}

// Delete implements kcv.Manager.Delete
func (manager *Manager) Delete() error {
	if err := manager.Close(); err != nil {
		return fmt.Errorf("Could not close store: %s", err.Error())
	}

	if err := os.RemoveAll(manager.path); err != nil {
		return fmt.Errorf("Could not remove path %s: %s", manager.path, err.Error())
	}

	return nil
}

// seek returns the value of key inside bucket. ok is false
// if key does not exist. bbolt's Get can't tell an empty
// value from a missing key so this uses a cursor.
func seek(bucket *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := bucket.Cursor().Seek(key)

	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}

	return copyValue(v), true
}

func copyValue(v []byte) []byte {
	cp := make([]byte, len(v))
	copy(cp, v)

	return cp
}
