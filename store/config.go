package store

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/merkleavl/mavl/hash"
	"github.com/merkleavl/mavl/kv"
)

var configKey = []byte("config")

// persistedConfig records the addressing mode and digest size a store was
// created with (spec §9's "ID-addressed vs key-addressed" open question,
// resolved in favor of key-addressing with a fixed 32-byte digest). Reopening
// a store whose persisted record disagrees fails fast instead of silently
// misinterpreting old node records under a different codec.
type persistedConfig struct {
	Addressing string `json:"addressing"`
	DigestSize int    `json:"digestSize"`
}

// ErrConfigMismatch is returned by Open when a store's persisted config
// record disagrees with this build's addressing mode or digest size.
var ErrConfigMismatch = errors.New("store: config mismatch")

const addressingKeyAddressed = "key-addressed"

// loadOrSaveConfig mirrors muxdb's config.LoadOrSave: on a fresh store it
// writes the current build's config; on an existing one it verifies
// agreement and returns ErrConfigMismatch otherwise.
func loadOrSaveConfig(meta kv.Store) error {
	want := persistedConfig{Addressing: addressingKeyAddressed, DigestSize: hash.Size}

	raw, err := meta.Get(configKey)
	if err != nil {
		if !meta.IsNotFound(err) {
			return errors.WithMessage(err, "read config")
		}
		b, err := json.Marshal(want)
		if err != nil {
			return errors.WithMessage(err, "encode config")
		}
		return errors.WithMessage(meta.Put(configKey, b), "write config")
	}

	var got persistedConfig
	if err := json.Unmarshal(raw, &got); err != nil {
		return errors.WithMessage(err, "decode config")
	}
	if got != want {
		return errors.WithMessagef(ErrConfigMismatch, "store was created with addressing=%q digestSize=%d, this build uses addressing=%q digestSize=%d",
			got.Addressing, got.DigestSize, want.Addressing, want.DigestSize)
	}
	return nil
}
