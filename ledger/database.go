package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

// Database is the durable key-value store backing the ledger. Batches are
// written atomically, which is what makes every transition all-or-nothing.
type Database interface {
	ethdb.KeyValueReader
	ethdb.KeyValueWriter
	ethdb.Batcher
	ethdb.Iteratee
	io.Closer
}

// ErrUnsupportedDatabase is returned for database URIs with an unknown scheme.
var ErrUnsupportedDatabase = errors.New("unsupported database scheme")

const (
	leveldbCacheMB = 16
	leveldbHandles = 64
)

// OpenDatabase opens the database named by uri.
//
// Supported formats:
//   - memory://                 non-persistent, for tests and development
//   - leveldb:///absolute/path  LevelDB directory
//   - leveldb://./relative/path LevelDB directory relative to the working dir
func OpenDatabase(uri string, log *slog.Logger) (Database, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid database URI %q: %w", uri, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "memory":
		log.Warn("Using in-memory database, state will not survive a restart")
		return memorydb.New(), nil
	case "leveldb":
		path := u.Path
		if u.Host != "" {
			path = u.Host + "/" + strings.TrimPrefix(path, "/")
		}
		if path == "" {
			return nil, fmt.Errorf("empty path in database URI: %s", uri)
		}
		log.Info("Opening LevelDB database", "path", path)
		db, err := leveldb.New(path, leveldbCacheMB, leveldbHandles, "docregistry/db/", false)
		if err != nil {
			return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, u.Scheme)
	}
}

// IsEmpty reports whether db holds no keys at all.
func IsEmpty(db ethdb.Iteratee) (bool, error) {
	it := db.NewIterator(nil, nil)
	defer it.Release()

	if it.Next() {
		return false, nil
	}
	return true, it.Error()
}
