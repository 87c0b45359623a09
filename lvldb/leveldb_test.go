// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lvldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/merkleavl/mavl/kv"
)

func TestLevelDB(t *testing.T) {
	var (
		key        = []byte("123")
		value      = []byte("456")
		inValidKey = []byte("abc")
	)

	onDisk, err := New(filepath.Join(t.TempDir(), "lvldb.db"), Options{CacheSizeMB: 16, OpenFilesCacheCapacity: 16})
	assert.NoError(t, err)
	defer onDisk.Close()

	inMem, err := NewMem()
	assert.NoError(t, err)
	defer inMem.Close()

	for _, db := range []*LevelDB{onDisk, inMem} {
		assert.NoError(t, db.Put(key, value))

		got, err := db.Get(key)
		assert.NoError(t, err)
		assert.Equal(t, value, got)

		has, err := db.Has(key)
		assert.NoError(t, err)
		assert.True(t, has)

		has, err = db.Has(inValidKey)
		assert.NoError(t, err)
		assert.False(t, has)

		assert.NoError(t, db.Delete(key))

		_, err = db.Get(key)
		assert.True(t, db.IsNotFound(err))
	}
}

func TestLevelDBBulk(t *testing.T) {
	var (
		key   = []byte("123")
		value = []byte("456")
	)

	db, err := New(filepath.Join(t.TempDir(), "lvldb-bulk.db"), Options{CacheSizeMB: 16, OpenFilesCacheCapacity: 16})
	assert.NoError(t, err)
	defer db.Close()

	bulk := db.Bulk()
	assert.NoError(t, bulk.Put(key, value))
	assert.NoError(t, bulk.Write())

	got, err := db.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, value, got)

	bulk = db.Bulk()
	assert.NoError(t, bulk.Delete(key))
	assert.NoError(t, bulk.Write())

	_, err = db.Get(key)
	assert.True(t, db.IsNotFound(err))
}

func TestLevelDBIterateAndSnapshot(t *testing.T) {
	db, err := NewMem()
	assert.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Put([]byte("a"), []byte("1")))
	assert.NoError(t, db.Put([]byte("b"), []byte("2")))
	assert.NoError(t, db.Put([]byte("c"), []byte("3")))

	it := db.Iterate(kv.Range{})
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.NoError(t, it.Error())
	it.Release()
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	snap := db.Snapshot()
	defer snap.Release()

	assert.NoError(t, db.Put([]byte("d"), []byte("4")))

	_, err = snap.Get([]byte("d"))
	assert.True(t, snap.IsNotFound(err))

	v, err := snap.Get([]byte("a"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestLevelDBDeleteRange(t *testing.T) {
	db, err := NewMem()
	assert.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Put([]byte("a"), []byte("1")))
	assert.NoError(t, db.Put([]byte("b"), []byte("2")))
	assert.NoError(t, db.Put([]byte("c"), []byte("3")))

	assert.NoError(t, db.DeleteRange(context.Background(), kv.Range{Start: []byte("a"), Limit: []byte("c")}))

	_, err = db.Get([]byte("a"))
	assert.True(t, db.IsNotFound(err))
	_, err = db.Get([]byte("b"))
	assert.True(t, db.IsNotFound(err))

	v, err := db.Get([]byte("c"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}
