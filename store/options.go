// Package store is the database facade: it opens the backing leveldb
// engine, namespaces one bucket per named tree, and hands back a
// mavl.RootController bound to that namespace with a shared node cache and
// metrics wired in (SPEC_FULL.md §0, §1).
package store

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options configures the backing leveldb engine and the shared node cache.
// Loaded from / saved to a YAML file the way the teacher loads its genesis
// configuration.
type Options struct {
	// CacheSizeMB is leveldb's block cache / write buffer size.
	CacheSizeMB int `yaml:"cacheSizeMB"`
	// OpenFilesCacheCapacity bounds leveldb's open SST file descriptors.
	OpenFilesCacheCapacity int `yaml:"openFilesCacheCapacity"`
	// NodeCacheSize bounds the number of decoded tree nodes kept in the
	// shared LRU cache across all trees opened from this DB.
	NodeCacheSize int `yaml:"nodeCacheSize"`
}

// DefaultOptions returns the options the teacher's genesis/cmd defaults
// mirror: modest memory footprint, suitable for a single embedded process.
func DefaultOptions() Options {
	return Options{
		CacheSizeMB:            16,
		OpenFilesCacheCapacity: 16,
		NodeCacheSize:          4096,
	}
}

// LoadOptions reads and decodes a YAML options file.
func LoadOptions(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.WithMessage(err, "read options")
	}
	opts := DefaultOptions()
	if err := yaml.Unmarshal(b, &opts); err != nil {
		return Options{}, errors.WithMessage(err, "decode options")
	}
	return opts, nil
}

// Save encodes opts as YAML to path.
func (o Options) Save(path string) error {
	b, err := yaml.Marshal(o)
	if err != nil {
		return errors.WithMessage(err, "encode options")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.WithMessage(err, "write options")
	}
	return nil
}
