package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/merkleavl/mavl/kv"
)

func TestBucketScopesGet(t *testing.T) {
	assert := assert.New(t)

	raw := NewDummyStore()
	raw.Put([]byte("a:1"), []byte("v1"))
	raw.Put([]byte("a:2"), []byte("v2"))
	raw.Put([]byte("b:1"), []byte("other"))

	scoped := Bucket("a:").NewStore(raw)
	v, err := scoped.Get([]byte("1"))
	assert.NoError(err)
	assert.Equal([]byte("v1"), v)

	_, err = scoped.Get([]byte("not-there"))
	assert.True(scoped.IsNotFound(err))
}
