package mavl_test

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merkleavl/mavl/hash"
	"github.com/merkleavl/mavl/lvldb"
	"github.com/merkleavl/mavl/mavl"
)

func newController(t *testing.T) *mavl.RootController {
	t.Helper()
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rc, err := mavl.Open(db, nil)
	require.NoError(t, err)
	return rc
}

// TestEmptyTreeInsert is scenario S1.
func TestEmptyTreeInsert(t *testing.T) {
	ctx := context.Background()
	rc := newController(t)

	require.NoError(t, rc.Put(ctx, []byte("foo"), []byte("bar")))

	v, err := rc.Get(ctx, []byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), v)

	root, present, err := rc.RootHash()
	require.NoError(t, err)
	assert.True(t, present)

	kvHash := hash.Sum([]byte("foo"), []byte("bar"))
	want := hash.Sum(hash.Zero[:], hash.Zero[:], kvHash[:])
	assert.Equal(t, want, root)
}

// TestThousandKeysStayBalanced is scenario S2.
func TestThousandKeysStayBalanced(t *testing.T) {
	ctx := context.Background()
	rc := newController(t)

	for i := 0; i < 1000; i++ {
		k := []byte(strconv.Itoa(i))
		require.NoError(t, rc.Put(ctx, k, k))
	}

	var keys []string
	it := rc.IterFrom(ctx, nil)
	for it.Next() {
		n := it.Node()
		keys = append(keys, string(n.Key))
		bal := int(n.RightHeight) - int(n.LeftHeight)
		assert.True(t, bal >= -1 && bal <= 1, "node %q has balance %d", n.Key, bal)
	}
	require.NoError(t, it.Err())
	it.Release()
	require.Len(t, keys, 1000)
	for i := 1; i < len(keys); i++ {
		assert.True(t, keys[i-1] < keys[i], "%q < %q", keys[i-1], keys[i])
	}

	require.NoError(t, rc.Put(ctx, []byte("888"), []byte("lol")))
	v, err := rc.Get(ctx, []byte("888"))
	require.NoError(t, err)
	assert.Equal(t, []byte("lol"), v)
}

// TestInsertThenDeleteAllEmptiesTree is scenario S5.
func TestInsertThenDeleteAllEmptiesTree(t *testing.T) {
	ctx := context.Background()
	rc := newController(t)

	r := rand.New(rand.NewSource(1))
	var keys [][]byte
	keys = append(keys, []byte("root"))
	require.NoError(t, rc.Put(ctx, keys[0], keys[0]))
	for i := 0; i < 19; i++ {
		k := []byte(fmt.Sprintf("k-%d", r.Intn(1_000_000)))
		keys = append(keys, k)
		require.NoError(t, rc.Put(ctx, k, k))
	}

	for _, k := range keys {
		err := rc.Delete(ctx, k)
		if err != nil {
			require.ErrorIs(t, err, mavl.ErrNotFound) // duplicate random key
			continue
		}
	}

	_, present, err := rc.RootHash()
	require.NoError(t, err)
	assert.False(t, present)

	_, err = rc.Get(ctx, []byte("root"))
	assert.ErrorIs(t, err, mavl.ErrNotFound)
}

// TestApplyCheckedRejectsDuplicateKey is scenario S6.
func TestApplyCheckedRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	rc := newController(t)

	err := rc.ApplyChecked(ctx, []mavl.Op{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("a"), Value: []byte("2")},
	})
	require.ErrorIs(t, err, mavl.ErrInvalidBatch)

	_, err = rc.Get(ctx, []byte("a"))
	assert.ErrorIs(t, err, mavl.ErrNotFound)
}

func TestApplyMatchesSequentialPuts(t *testing.T) {
	ctx := context.Background()
	batched := newController(t)
	sequential := newController(t)

	var ops []mavl.Op
	for i := 0; i < 200; i++ {
		k := []byte(fmt.Sprintf("key-%04d", i))
		v := []byte(fmt.Sprintf("val-%04d", i))
		ops = append(ops, mavl.Op{Key: k, Value: v})
		require.NoError(t, sequential.Put(ctx, k, v))
	}
	require.NoError(t, batched.ApplyChecked(ctx, ops))

	wantRoot, _, err := sequential.RootHash()
	require.NoError(t, err)
	gotRoot, _, err := batched.RootHash()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestApplyDeleteWithinBatch(t *testing.T) {
	ctx := context.Background()
	rc := newController(t)
	require.NoError(t, rc.Put(ctx, []byte("a"), []byte("1")))
	require.NoError(t, rc.Put(ctx, []byte("b"), []byte("2")))

	require.NoError(t, rc.ApplyChecked(ctx, []mavl.Op{
		{Key: []byte("a"), Delete: true},
		{Key: []byte("c"), Value: []byte("3")},
	}))

	_, err := rc.Get(ctx, []byte("a"))
	assert.ErrorIs(t, err, mavl.ErrNotFound)
	v, err := rc.Get(ctx, []byte("c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("3"), v)
}

func TestRootHashIndependentOfInsertionOrder(t *testing.T) {
	ctx := context.Background()
	a := newController(t)
	b := newController(t)

	keys := []string{"m", "a", "z", "b", "y", "c"}
	require.NoError(t, a.ApplyChecked(ctx, opsFor(keys)))

	reversed := append([]string(nil), keys...)
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	require.NoError(t, b.ApplyChecked(ctx, opsFor(reversed)))

	ar, _, err := a.RootHash()
	require.NoError(t, err)
	br, _, err := b.RootHash()
	require.NoError(t, err)
	assert.Equal(t, ar, br)
}

func opsFor(keys []string) []mavl.Op {
	ops := make([]mavl.Op, len(keys))
	for i, k := range keys {
		ops[i] = mavl.Op{Key: []byte(k), Value: []byte(k)}
	}
	return ops
}
