// Package keystore persists keyspace trie nodes into fixed-size blocks of a
// single file, addressed by block index (the node's id), grounded on the
// reference store's KeyStore<BITS>.
//
// Node.ID is a block index, not the byte offset the reference store uses:
// every ReadAt/WriteAt here multiplies by the block size itself, so an id
// only ever has to be rescaled in one place rather than threaded as a raw
// byte offset through node.go, tree.go, and every cached child pointer.
package keystore

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/huynhanx03/keyva/pkg/keyva/blockfile"
	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
	"github.com/huynhanx03/keyva/pkg/keyva/node"
)

// KeyStore stores keyspace trie nodes as fixed-size blocks in one file,
// addressed by block index. Block 0 is always the tree root.
type KeyStore struct {
	path      string
	blockSize uint32
	degree    int

	mu   sync.Mutex
	file blockfile.File
	next uint64
}

// Open opens or creates the key file at path, sized for nodes of the given
// block size.
func Open(path string, blockSize uint32) (*KeyStore, error) {
	f, err := blockfile.Open(path)
	if err != nil {
		return nil, err
	}
	degree := node.CalculateDegree(blockSize)
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	blockBytes := int64(node.BlockSize(degree))
	var next uint64
	if blockBytes > 0 {
		next = uint64(size / blockBytes)
	}
	return &KeyStore{
		path:      path,
		blockSize: blockSize,
		degree:    degree,
		file:      f,
		next:      next,
	}, nil
}

// Degree returns the fan-out every node in this store is sized for.
func (k *KeyStore) Degree() int { return k.degree }

// Clear truncates the key file to zero length and resets the block
// allocator.
func (k *KeyStore) Clear() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.file.Truncate(0); err != nil {
		return err
	}
	k.next = 0
	return nil
}

// Close closes the underlying file.
func (k *KeyStore) Close() error { return k.file.Close() }

// New allocates a fresh node id and constructs a Node spanning (first,last)
// at the given level, without persisting it; call Set to write it.
func (k *KeyStore) New(level uint32, first, last keymath.Key) *node.Node {
	k.mu.Lock()
	id := k.next
	k.next++
	k.mu.Unlock()
	return node.New(id, level, k.degree, first, last)
}

// Get reads the node stored at id.
func (k *KeyStore) Get(id uint64) (*node.Node, error) {
	blockBytes := int64(node.BlockSize(k.degree))
	buf := make([]byte, blockBytes)
	n, err := k.file.ReadAt(buf, int64(id)*blockBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "keystore: read block %d", id)
	}
	if n != len(buf) {
		return nil, errors.Errorf("keystore: short read for block %d: got %d want %d", id, n, len(buf))
	}
	out := node.New(id, 0, k.degree, keymath.Min().Add(keymath.Key{0, 0, 0, 1}), keymath.Max())
	out.ID = id
	if err := out.Read(buf); err != nil {
		return nil, errors.Wrapf(err, "keystore: decode block %d", id)
	}
	return out, nil
}

// Set persists n at its own id, extending the file if necessary.
func (k *KeyStore) Set(n *node.Node) error {
	blockBytes := int64(node.BlockSize(k.degree))
	buf := n.Write()
	if _, err := k.file.WriteAt(buf, int64(n.ID)*blockBytes); err != nil {
		return errors.Wrapf(err, "keystore: write block %d", n.ID)
	}
	k.mu.Lock()
	if n.ID+1 > k.next {
		k.next = n.ID + 1
	}
	k.mu.Unlock()
	return nil
}

// Size returns the number of allocated blocks (not a byte offset — multiply
// by the store's block size to get the key file's logical length).
func (k *KeyStore) Size() uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.next
}
