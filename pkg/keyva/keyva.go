// Package keyva is an embedded key-value store indexed by fixed-width
// 256-bit keys. Writes land in an in-memory staging buffer and are never
// blocked on disk; a background goroutine periodically flushes staged
// writes into a keyspace trie (the key file) and an append-only value log
// (the value file). Grounded on the reference "keyvadb" store's DB<BITS,Log>
// façade.
package keyva

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huynhanx03/keyva/pkg/keyva/buffer"
	"github.com/huynhanx03/keyva/pkg/keyva/cache"
	kverrors "github.com/huynhanx03/keyva/pkg/keyva/errors"
	"github.com/huynhanx03/keyva/pkg/keyva/journal"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/keystore"
	"github.com/huynhanx03/keyva/pkg/keyva/tree"
	"github.com/huynhanx03/keyva/pkg/keyva/valuestore"
)

// Options controls a database's on-disk layout and flush behavior.
type Options struct {
	// Dir is the directory KeyFileName/ValueFileName are resolved
	// relative to. Empty means the current working directory.
	Dir string

	// BlockSize is the size in bytes of one keyspace-trie node on disk;
	// it determines the trie's fan-out (see node.CalculateDegree).
	BlockSize uint32

	// CacheSize is the maximum number of trie nodes kept in memory.
	CacheSize int

	// WriteBufferSize is the approximate maximum number of bytes written
	// to the value log per flush batch.
	WriteBufferSize int

	// FlushInterval is how long the background flush loop sleeps between
	// cycles.
	FlushInterval time.Duration

	// KeyFileName and ValueFileName name the trie and value-log files.
	KeyFileName   string
	ValueFileName string

	// Logger receives diagnostic output; a no-op logger is used if nil.
	Logger *zap.Logger
}

// DefaultOptions returns the same defaults as the reference implementation:
// 4KB blocks, a cache sized for ~1GB of nodes, 1MB flush batches, and a
// 1-second flush interval.
func DefaultOptions() Options {
	const blockSize = 4096
	return Options{
		BlockSize:       blockSize,
		CacheSize:       (1 << 30) / blockSize,
		WriteBufferSize: 1 << 20,
		FlushInterval:   time.Second,
		KeyFileName:     "db.keys",
		ValueFileName:   "db.values",
	}
}

// Stats is a point-in-time snapshot of the counters the flush loop logs
// every cycle.
type Stats struct {
	BufferSize         int
	ReadyForCommitting int
	JournalSize        int
	BufferHits         uint64
	KeyMisses          uint64
	ValueHits          uint64
	ValueMisses        uint64
	Cache              cache.Stats
}

// DB is an embedded keyspace-trie key-value store.
type DB struct {
	options Options
	log     *zap.Logger

	keys   *keystore.KeyStore
	values *valuestore.ValueStore
	cache  *cache.Cache
	tree   *tree.Tree
	buffer *buffer.Buffer

	bufferHits, keyMisses, valueHits, valueMisses atomic.Uint64

	closing atomic.Bool
	wg      sync.WaitGroup

	lastStats struct {
		mu sync.Mutex
		s  Stats
	}
}

// Open creates or reopens a database under opts.Dir using opts, and starts
// its background flush loop.
func Open(opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	keyPath := filepath.Join(opts.Dir, opts.KeyFileName)
	valuePath := filepath.Join(opts.Dir, opts.ValueFileName)

	ks, err := keystore.Open(keyPath, opts.BlockSize)
	if err != nil {
		return nil, err
	}
	vs, err := valuestore.Open(valuePath)
	if err != nil {
		return nil, err
	}
	c := cache.New(opts.CacheSize)
	t := tree.New(ks, c)
	if err := t.Init(true); err != nil {
		return nil, err
	}

	db := &DB{
		options: opts,
		log:     opts.Logger,
		keys:    ks,
		values:  vs,
		cache:   c,
		tree:    t,
		buffer:  buffer.New(),
	}
	db.wg.Add(1)
	go db.flushLoop()
	return db, nil
}

// Clear erases all data, leaving an empty database ready for reuse. It is
// not safe to call concurrently with Put/Get/Each.
func (db *DB) Clear() error {
	db.buffer.Clear()
	if err := db.keys.Clear(); err != nil {
		return err
	}
	if err := db.tree.Init(true); err != nil {
		return err
	}
	return db.values.Clear()
}

// Close stops the background flush loop (which ends its current sleep
// early and runs one final flush) and closes both files, closing the key and value files concurrently since
// neither depends on the other once the flush loop has stopped.
func (db *DB) Close() error {
	db.closing.Store(true)
	db.wg.Wait()

	var g errgroup.Group
	g.Go(db.values.Close)
	g.Go(db.keys.Close)
	return g.Wait()
}

// Put stages key/value for a future flush; it never blocks on disk I/O.
// key must be exactly keymath.KeySize bytes, or ErrKeyWrongLength is
// returned and the buffer is left unchanged.
func (db *DB) Put(key []byte, value []byte) error {
	k, err := validateKeyValue(key, value)
	if err != nil {
		return err
	}
	db.buffer.Add(k, value)
	return nil
}

func validateKeyValue(key, value []byte) (keymath.Key, error) {
	if len(key) != keymath.KeySize {
		return keymath.Key{}, kverrors.ErrKeyWrongLength
	}
	if len(value) == 0 {
		return keymath.Key{}, kverrors.ErrZeroLengthValue
	}
	if uint64(len(value)) > uint64(^uint32(0))-4-keymath.KeySize {
		return keymath.Key{}, kverrors.ErrValueTooLong
	}
	k, _ := keymath.FromBytes(key)
	return k, nil
}

// Get returns the value stored for key, checking the staging buffer first,
// then the trie, then the value log. key must be exactly keymath.KeySize
// bytes, or ErrKeyWrongLength is returned.
func (db *DB) Get(key []byte) ([]byte, error) {
	if len(key) != keymath.KeySize {
		return nil, kverrors.ErrKeyWrongLength
	}
	k, _ := keymath.FromBytes(key)

	if v, ok := db.buffer.Get(k); ok {
		db.bufferHits.Add(1)
		return v, nil
	}
	kv, err := db.tree.Get(k)
	if err != nil {
		db.keyMisses.Add(1)
		return nil, kverrors.ErrKeyNotFound
	}
	v, err := db.values.Get(kv.Offset, kv.Length)
	if err != nil {
		db.valueMisses.Add(1)
		return nil, kverrors.ErrValueNotFound
	}
	db.valueHits.Add(1)
	return v, nil
}

// EachFunc is called once per record during Each.
type EachFunc func(key keymath.Key, value []byte) error

// Each scans every record in the value log in append order. Because the
// log is append-only and values are never compacted, a key may be yielded
// more than once if it was written more than once.
func (db *DB) Each(f EachFunc) error {
	return db.values.Each(valuestore.EachFunc(f))
}

// Flush forces one flush cycle synchronously, for callers (tests, CLI
// tools) that need committed data visible without waiting for the
// background loop.
func (db *DB) Flush() error {
	return db.flush()
}

func (db *DB) flush() error {
	j := journal.New(db.buffer, db.values)
	if err := j.Process(db.tree); err != nil {
		return err
	}
	stats := Stats{
		BufferSize:         db.buffer.Size(),
		ReadyForCommitting: db.buffer.ReadyForCommitting(),
		JournalSize:        j.Size(),
		BufferHits:         db.bufferHits.Load(),
		KeyMisses:          db.keyMisses.Load(),
		ValueHits:          db.valueHits.Load(),
		ValueMisses:        db.valueMisses.Load(),
		Cache:              db.cache.Stat(),
	}
	db.log.Info("flushing",
		zap.Int("ready_for_committing", stats.ReadyForCommitting),
		zap.Int("buffer_size", stats.BufferSize),
		zap.Int("journal_nodes", stats.JournalSize),
		zap.Uint64("buffer_hits", stats.BufferHits),
		zap.Uint64("key_misses", stats.KeyMisses),
		zap.Uint64("value_hits", stats.ValueHits),
		zap.Uint64("value_misses", stats.ValueMisses),
		zap.Int("cache_size", stats.Cache.Size),
		zap.Uint64("cache_hits", stats.Cache.Hits),
		zap.Uint64("cache_misses", stats.Cache.Misses),
	)
	db.lastStats.mu.Lock()
	db.lastStats.s = stats
	db.lastStats.mu.Unlock()
	return j.Commit(db.tree, db.options.WriteBufferSize)
}

func (db *DB) flushLoop() {
	defer db.wg.Done()
	const step = 10 * time.Millisecond
	for {
		// Sleep FlushInterval in short steps so Close need not wait out
		// the whole interval before the final flush.
		wake := time.Now().Add(db.options.FlushInterval)
		for !db.closing.Load() {
			left := time.Until(wake)
			if left <= 0 {
				break
			}
			time.Sleep(min(left, step))
		}
		stop := db.closing.Load()
		if err := db.flush(); err != nil {
			db.log.Error("flush failed", zap.Error(err))
		}
		if stop {
			return
		}
	}
}

// Stats returns the counters recorded by the most recently completed flush
// cycle.
func (db *DB) Stats() Stats {
	db.lastStats.mu.Lock()
	defer db.lastStats.mu.Unlock()
	return db.lastStats.s
}
