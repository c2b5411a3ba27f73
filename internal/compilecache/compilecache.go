// Package compilecache is a persistent store of compiled bytecode, keyed by
// a hash of the source text it came from — the same idea as V8/Node's
// on-disk code cache, so a host that re-parses the same script or module
// across process restarts can skip straight to internal/vm execution.
//
// Grounded on the teacher's examples/disk_eject/main.go, which opens a
// badger.DB as an L2 store behind arena-cache's in-memory L1 and treats it
// exactly the way this package treats badger: Open once, Update to write,
// View to read, never touched on arena-cache's own hot path. Wired in by
// pkg/esvm's WithCompileCache(dir) option.
//
// © 2025 esvm authors. MIT License.
package compilecache

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/Voskan/esvm/internal/compiler"
	"github.com/Voskan/esvm/internal/heap"
)

// Store wraps a badger.DB holding one key per distinct source text this
// process (or an earlier run against the same directory) has compiled.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (creating if absent) a compile cache rooted at dir. Badger's
// own logger is silenced in favor of logger, mirroring
// examples/disk_eject's badger.DefaultOptions(dir).WithLogger(nil).
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("compilecache: open %s: %w", dir, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying badger.DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// key hashes source with SHA-256. A cryptographic hash, not the
// hash/maphash the teacher uses for its in-memory shard index
// (shard.hash in pkg/cache.go): maphash's seed is randomized per process
// (maphash.MakeSeed), which is exactly right for an in-memory index that
// never outlives the process but wrong for a key that must still resolve
// to the same cache entry after a restart.
func key(source string) []byte {
	sum := sha256.Sum256([]byte(source))
	return sum[:]
}

// Lookup returns the previously-cached Executable for source, if any,
// rehydrating any interned string constants into h.
func (s *Store) Lookup(h *heap.Heap, source string) (*compiler.Executable, bool) {
	var exec *compiler.Executable
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(source))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			decoded, derr := decodeExecutable(bytes.NewReader(raw), h)
			if derr != nil {
				return derr
			}
			exec = decoded
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			s.logger.Warn("compilecache: lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return exec, true
}

// Store persists exec under source's key, replacing any prior entry.
func (s *Store) Store(h *heap.Heap, source string, exec *compiler.Executable) error {
	var buf bytes.Buffer
	if err := encodeExecutable(&buf, exec, h); err != nil {
		return fmt.Errorf("compilecache: encode: %w", err)
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(source), buf.Bytes())
	})
	if err != nil {
		s.logger.Warn("compilecache: store failed", zap.Error(err))
	}
	return err
}
