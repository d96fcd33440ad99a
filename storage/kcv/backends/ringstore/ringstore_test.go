package ringstore_test

import (
	"context"
	"testing"

	"github.com/jrife/kcvstore/storage/kcv"
	"github.com/jrife/kcvstore/storage/kcv/backends/ringstore"
	"github.com/jrife/kcvstore/storage/kcv/ring"
	"github.com/jrife/kcvstore/utils/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newManager(t *testing.T, partitioner string, tokens map[string][]string) *ringstore.Manager {
	manager, err := ringstore.New(ringstore.Config{
		Path:        uuid.TempPath("ringstore-test"),
		Partitioner: partitioner,
		Tokens:      tokens,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, manager.Delete())
	})

	return manager
}

func openStore(t *testing.T, manager *ringstore.Manager) (kcv.Store, *kcv.StoreTransaction) {
	store, err := manager.OpenStore(context.Background(), "test")
	require.NoError(t, err)

	txn, err := manager.BeginTransaction(context.Background())
	require.NoError(t, err)

	return store, txn
}

func put(t *testing.T, store kcv.Store, txn *kcv.StoreTransaction, key string, columns ...string) {
	entries := make([]kcv.Entry, 0, len(columns))

	for _, column := range columns {
		entries = append(entries, kcv.Entry{Column: []byte(column), Value: []byte(key + "/" + column)})
	}

	require.NoError(t, store.Mutate(context.Background(), []byte(key), entries, kcv.NoDeletions, txn))
}

func collectKeys(t *testing.T, iter kcv.KeyIterator) []string {
	result := []string{}

	err := kcv.ForEachKey(iter, func(key []byte, entries []kcv.Entry) error {
		result = append(result, string(key))

		return nil
	})
	require.NoError(t, err)

	return result
}

func TestFeatures(t *testing.T) {
	ordered := newManager(t, ring.ByteOrdered, nil)
	assert.Equal(t, ringstore.DriverName, ordered.Name())
	assert.True(t, ordered.Features().SupportsOrderedScan())
	assert.True(t, ordered.Features().SupportsUnorderedScan())
	assert.True(t, ordered.Features().SupportsLocalKeyPartition())
	assert.False(t, ordered.Features().SupportsLocking())

	hashed := newManager(t, ring.Hash, nil)
	assert.Equal(t, ringstore.HashDriverName, hashed.Name())
	assert.False(t, hashed.Features().SupportsOrderedScan())
	assert.True(t, hashed.Features().SupportsUnorderedScan())
	assert.False(t, hashed.Features().SupportsLocalKeyPartition())
	assert.False(t, hashed.Features().SupportsLocking())
}

func TestNewManagerErrors(t *testing.T) {
	plugin := ringstore.Plugins()[0]

	_, err := plugin.NewManager(kcv.PluginOptions{})
	assert.Error(t, err)

	_, err = plugin.NewManager(kcv.PluginOptions{"path": uuid.TempPath("ringstore-test"), "partitioner": "random"})
	assert.Error(t, err)

	_, err = plugin.NewManager(kcv.PluginOptions{
		"path":   uuid.TempPath("ringstore-test"),
		"tokens": map[string][]string{"a": {"10"}, "b": {"10"}},
	})
	assert.Error(t, err)
}

func TestOrderedScan(t *testing.T) {
	manager := newManager(t, ring.ByteOrdered, nil)
	store, txn := openStore(t, manager)

	for _, key := range []string{"d", "b", "a", "c", "e"} {
		put(t, store, txn, key, "x", "y")
	}

	iter, err := store.GetKeys(context.Background(), kcv.KeyRangeQuery{
		Keys:  kcv.KeyRange{Start: []byte("b"), End: []byte("e")},
		Slice: kcv.AllColumns(),
	}, txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, collectKeys(t, iter))

	iter, err = store.ScanKeys(context.Background(), kcv.SliceQuery{Start: []byte("y"), End: []byte("z")}, txn)
	require.NoError(t, err)
	rows, err := kcv.Rows(iter)
	require.NoError(t, err)
	require.Len(t, rows, 5)

	for _, row := range rows {
		require.Len(t, row.Entries, 1)
		assert.Equal(t, []byte("y"), row.Entries[0].Column)
		assert.Equal(t, []byte(string(row.Key)+"/y"), row.Entries[0].Value)
	}
}

func TestHashPartitioner(t *testing.T) {
	manager := newManager(t, ring.Hash, nil)
	store, txn := openStore(t, manager)

	keys := []string{"apple", "banana", "cherry", "date"}

	for _, key := range keys {
		put(t, store, txn, key, "c1", "c2", "c3")
	}

	_, err := store.GetKeys(context.Background(), kcv.KeyRangeQuery{Slice: kcv.AllColumns()}, txn)
	assert.ErrorIs(t, err, kcv.ErrUnsupported)

	_, err = store.LocalKeyPartition(context.Background())
	assert.ErrorIs(t, err, kcv.ErrUnsupported)

	iter, err := store.ScanKeys(context.Background(), kcv.AllColumns(), txn)
	require.NoError(t, err)
	assert.ElementsMatch(t, keys, collectKeys(t, iter))

	results, err := store.GetMultiSlice(context.Background(), [][]byte{[]byte("date"), []byte("missing"), []byte("apple")}, kcv.SliceQuery{Start: []byte("c2"), Limit: 1}, txn)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []kcv.Entry{{Column: []byte("c2"), Value: []byte("date/c2")}}, results[0])
	assert.Empty(t, results[1])
	assert.Equal(t, []kcv.Entry{{Column: []byte("c2"), Value: []byte("apple/c2")}}, results[2])
}

func TestLocalKeyPartition(t *testing.T) {
	manager := newManager(t, ring.ByteOrdered, map[string][]string{
		ringstore.DefaultNode: {"40", "c0"},
		"remote":              {"80"},
	})
	store, _ := openStore(t, manager)

	partition, err := store.LocalKeyPartition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []kcv.KeyRange{
		{Start: []byte{0xbf, 0x00, 0x00, 0x00}, End: []byte{0x3f, 0x00, 0x00, 0x00}},
		{Start: []byte{0x7f, 0x00, 0x00, 0x00}, End: []byte{0xbf, 0x00, 0x00, 0x00}},
	}, partition)

	ownership, err := ring.Parse(ring.ByteOrderedPartitioner{}, map[string][]string{
		ringstore.DefaultNode: {"10"},
		"remote":              {"20"},
	})
	require.NoError(t, err)
	require.NoError(t, manager.Ring().Recompute(ownership))

	partition, err = store.LocalKeyPartition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []kcv.KeyRange{
		{Start: []byte{0x1f, 0x00, 0x00, 0x00}, End: []byte{0x0f, 0x00, 0x00, 0x00}},
	}, partition)
}

func TestLocalKeyPartitionSingleToken(t *testing.T) {
	manager := newManager(t, ring.ByteOrdered, map[string][]string{
		ringstore.DefaultNode: {"10"},
	})
	store, _ := openStore(t, manager)

	partition, err := store.LocalKeyPartition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []kcv.KeyRange{
		{Start: []byte{0x10, 0x00, 0x00, 0x00}, End: []byte{0x0f, 0x00, 0x00, 0x00}},
	}, partition)
}

func TestStoresAreIsolated(t *testing.T) {
	manager := newManager(t, ring.ByteOrdered, nil)
	ctx := context.Background()

	a, err := manager.OpenStore(ctx, "a")
	require.NoError(t, err)
	ab, err := manager.OpenStore(ctx, "ab")
	require.NoError(t, err)
	txn, err := manager.BeginTransaction(ctx)
	require.NoError(t, err)

	put(t, a, txn, "k", "c")
	put(t, ab, txn, "k2", "c")

	iter, err := a.ScanKeys(ctx, kcv.AllColumns(), txn)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, collectKeys(t, iter))

	contains, err := ab.ContainsKey(ctx, []byte("k"), txn)
	require.NoError(t, err)
	assert.False(t, contains)
}

func TestClosedStore(t *testing.T) {
	manager := newManager(t, ring.ByteOrdered, nil)
	store, txn := openStore(t, manager)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.ContainsKey(context.Background(), []byte("k"), txn)
	assert.ErrorIs(t, err, kcv.ErrClosed)
}

func TestMutateLogsOwner(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	manager, err := ringstore.New(ringstore.Config{
		Path:        uuid.TempPath("ringstore-test"),
		Partitioner: ring.ByteOrdered,
		Tokens: map[string][]string{
			ringstore.DefaultNode: {"40"},
			"remote":              {"80"},
		},
		Logger: zap.New(core),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, manager.Delete())
	})

	store, txn := openStore(t, manager)
	put(t, store, txn, "\x10", "c")
	put(t, store, txn, "\x50", "c")

	owners := []string{}

	for _, entry := range logs.FilterMessage("start Mutate()").All() {
		owners = append(owners, entry.ContextMap()["owner"].(string))
	}

	assert.Equal(t, []string{ringstore.DefaultNode, "remote"}, owners)
}
