// Package ringstore implements a kcv store that places rows on a
// consistent-hashing token ring. Rows are kept in token order inside
// a pebble database. The partitioner decides whether token order
// matches key order: the byte-ordered partitioner supports ordered
// scans and reports which key ranges belong to the local node while
// the hash partitioner only supports unordered scans.
package ringstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/ring"
	"github.com/jrife/kcvstore/utils/uuid"
	"go.uber.org/zap"
)

const (
	// DriverName is the name of the ringstore driver using
	// the byte-ordered partitioner
	DriverName = "ringstore"
	// HashDriverName is the name of the ringstore driver using
	// the hash partitioner
	HashDriverName = "ringstore-hash"
	// DefaultNode is the name given to the local node if
	// none is configured
	DefaultNode = "local"
)

// Plugins returns the ringstore driver plugins
func Plugins() []kcv.Plugin {
	return []kcv.Plugin{
		&Plugin{name: DriverName, partitioner: ring.ByteOrdered},
		&Plugin{name: HashDriverName, partitioner: ring.Hash},
	}
}

// Plugin is the ringstore driver
type Plugin struct {
	name        string
	partitioner string
}

// Name implements kcv.Plugin.Name
func (plugin *Plugin) Name() string {
	return plugin.name
}

// NewManager implements kcv.Plugin.NewManager
func (plugin *Plugin) NewManager(options kcv.PluginOptions) (kcv.Manager, error) {
	var config Config
	var err error

	if config.Path, err = options.String("path", true, ""); err != nil {
		return nil, err
	}

	if config.Partitioner, err = options.String("partitioner", false, plugin.partitioner); err != nil {
		return nil, err
	}

	if config.Node, err = options.String("node", false, DefaultNode); err != nil {
		return nil, err
	}

	if config.Tokens, err = options.StringSliceMap("tokens"); err != nil {
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

// NewTempManager implements kcv.Plugin.NewTempManager. The
// local node shares the ring with one other node.
func (plugin *Plugin) NewTempManager() (kcv.Manager, error) {
	tokens := map[string][]string{
		DefaultNode: {"40", "c0"},
		"remote":    {"80"},
	}

	if plugin.partitioner == ring.Hash {
		tokens = map[string][]string{
			DefaultNode: {"-4611686018427387904", "4611686018427387904"},
			"remote":    {"0"},
		}
	}

	return plugin.NewManager(kcv.PluginOptions{
		"path":        uuid.TempPath(plugin.name),
		"partitioner": plugin.partitioner,
		"tokens":      tokens,
	})
}

// Config contains configuration for
// a ringstore manager
type Config struct {
	// Path is the directory of the pebble database
	Path string
	// Partitioner is the name of the partitioner,
	// ring.ByteOrdered or ring.Hash
	Partitioner string
	// Node is the name of the local node
	Node string
	// Tokens lists the tokens owned by each node in
	// the string form understood by the partitioner
	Tokens map[string][]string
	Logger *zap.Logger
}

var _ kcv.Manager = (*Manager)(nil)

// Manager opens stores inside one pebble database.
// Every store shares the manager's ring.
type Manager struct {
	name        string
	db          *pebble.DB
	path        string
	node        string
	partitioner ring.Partitioner
	ring        *ring.Ring
	features    kcv.Features
	mu          sync.Mutex
	stores      map[string]*Store
	logger      *zap.Logger
	closed      bool
}

// New opens the pebble database at config.Path
func New(config Config) (*Manager, error) {
	partitioner, err := ring.NewPartitioner(config.Partitioner)

	if err != nil {
		return nil, err
	}

	ownership, err := ring.Parse(partitioner, config.Tokens)

	if err != nil {
		return nil, err
	}

	r, err := ring.New(ownership)

	if err != nil {
		return nil, err
	}

	logger := config.Logger

	if logger == nil {
		logger = zap.L()
	}

	node := config.Node

	if node == "" {
		node = DefaultNode
	}

	name := DriverName

	if !partitioner.PreservesOrder() {
		name = HashDriverName
	}

	logger = logger.With(zap.String("driver", name), zap.String("node", node))

	db, err := pebble.Open(config.Path, &pebble.Options{
		Logger: logger.Sugar(),
	})

	if err != nil {
		return nil, fmt.Errorf("Could not open pebble store at %s: %s", config.Path, err.Error())
	}

	features := kcv.Features{UnorderedScan: true}

	if partitioner.PreservesOrder() {
		features.OrderedScan = true
		features.LocalKeyPartition = true
	}

	logger.Info("opened ring store", zap.Int("tokens", r.Size()))

	return &Manager{
		name:        name,
		db:          db,
		path:        config.Path,
		node:        node,
		partitioner: partitioner,
		ring:        r,
		features:    features,
		stores:      map[string]*Store{},
		logger:      logger,
	}, nil
}

// Name implements kcv.Manager.Name
func (manager *Manager) Name() string {
	return manager.name
}

// Features implements kcv.Manager.Features
func (manager *Manager) Features() kcv.Features {
	return manager.features
}

// Ring returns the token ring shared by the manager's stores.
// Recomputing it changes the local key partition of every store.
func (manager *Manager) Ring() *ring.Ring {
	return manager.ring
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

	store := &Store{
		name:        name,
		db:          manager.db,
		node:        manager.node,
		partitioner: manager.partitioner,
		ring:        manager.ring,
		features:    manager.features,
		logger:      manager.logger.With(zap.String("store", name)),
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

// Close implements kcv.Manager.Close. Every iterator
// must be closed first.
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
