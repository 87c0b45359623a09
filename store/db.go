package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/merkleavl/mavl/cache"
	"github.com/merkleavl/mavl/kv"
	"github.com/merkleavl/mavl/lvldb"
)

var logger = log.New("pkg", "store")

// metaBucket holds the DB-wide config record, separate from any tree's own
// reserved keys (each tree gets its own top-level namespace below it).
const metaBucket kv.Bucket = "db:"

// treeBucket returns the namespace a named tree's mavl.RootController is
// opened against. Two different names that contain no ':' never share a
// key; names with ':' can overlap (tree "x" node ":nk" and tree "x:n" node
// "k" both land on "t:x:n:nk").
func treeBucket(name string) kv.Bucket {
	return kv.Bucket("t:" + name + ":")
}

// DB is the facade over the embedded backing store: it owns the leveldb
// engine, a node cache shared by every tree opened from it, and a registry
// of named trees bound to their own namespace.
type DB struct {
	engine *lvldb.LevelDB
	cache  *cache.LRU

	mu    sync.Mutex
	trees map[string]*Tree
}

// Open opens (creating if absent) a leveldb instance at path, verifies or
// writes its persisted config record, and returns a ready DB.
func Open(path string, opts Options) (*DB, error) {
	engine, err := lvldb.New(path, lvldb.Options{
		CacheSizeMB:            opts.CacheSizeMB,
		OpenFilesCacheCapacity: opts.OpenFilesCacheCapacity,
	})
	if err != nil {
		return nil, err
	}
	return open(engine, opts)
}

// OpenMem opens an in-memory DB, for tests and ephemeral trees.
func OpenMem(opts Options) (*DB, error) {
	engine, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	return open(engine, opts)
}

func open(engine *lvldb.LevelDB, opts Options) (*DB, error) {
	if err := loadOrSaveConfig(metaBucket.NewStore(engine)); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return &DB{
		engine: engine,
		cache:  cache.NewLRU(opts.NodeCacheSize),
		trees:  make(map[string]*Tree),
	}, nil
}

// Close closes the backing engine. Open Tree handles must not be used
// afterward.
func (db *DB) Close() error {
	return db.engine.Close()
}

// CacheStats returns the node cache's lifetime hit and miss counts, shared
// across every tree opened from this DB.
func (db *DB) CacheStats() (hit, miss int64) {
	_, hit, miss = db.cache.Stats.Stats()
	return hit, miss
}

// Tree returns (opening and caching on first use) the named tree.
func (db *DB) Tree(name string) (*Tree, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.trees[name]; ok {
		return t, nil
	}
	t, err := newTree(name, treeBucket(name).NewStore(db.engine), db.cache)
	if err != nil {
		return nil, errors.WithMessagef(err, "open tree %q", name)
	}
	db.trees[name] = t
	logger.Info("tree opened", "name", name)
	return t, nil
}
