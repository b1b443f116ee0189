// Package merkle implements the append-only keccak Merkle tree backing the
// outbox roots published per L2 block, plus stand-alone path verification
// used when consuming L2-to-L1 messages on L1.
package merkle

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Tree is an append-only binary Merkle tree over 32-byte leaves. Missing
// leaves are treated as zero words, so the tree behaves as if padded to the
// next power of two.
type Tree struct {
	mu     sync.RWMutex
	leaves []common.Hash
}

func NewTree() *Tree {
	return &Tree{}
}

// Append adds a leaf and returns its index.
func (t *Tree) Append(leaf common.Hash) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaves = append(t.leaves, leaf)
	return uint64(len(t.leaves) - 1)
}

// Size returns the number of appended leaves.
func (t *Tree) Size() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.leaves))
}

// Root computes the current root. An empty tree has a zero root.
func (t *Tree) Root() common.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.leaves) == 0 {
		return common.Hash{}
	}
	level := make([]common.Hash, len(t.leaves))
	copy(level, t.leaves)
	for len(level) > 1 {
		level = hashLevel(level)
	}
	return level[0]
}

// Witness returns the sibling path proving membership of the leaf at index.
// The path is ordered leaf-to-root.
func (t *Tree) Witness(index uint64) ([]common.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.leaves)) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range (size %d)", index, len(t.leaves))
	}
	level := make([]common.Hash, len(t.leaves))
	copy(level, t.leaves)

	var path []common.Hash
	i := index
	for len(level) > 1 {
		sibling := i ^ 1
		if sibling < uint64(len(level)) {
			path = append(path, level[sibling])
		} else {
			path = append(path, common.Hash{})
		}
		level = hashLevel(level)
		i >>= 1
	}
	return path, nil
}

func hashLevel(level []common.Hash) []common.Hash {
	next := make([]common.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := common.Hash{}
		if i+1 < len(level) {
			right = level[i+1]
		}
		next = append(next, hashPair(level[i], right))
	}
	return next
}

func hashPair(left, right common.Hash) common.Hash {
	return common.BytesToHash(crypto.Keccak256(left.Bytes(), right.Bytes()))
}

// VerifyPath replays a membership witness against the expected root. The
// low bit of index at each level selects whether the running hash is the
// left or right child.
func VerifyPath(root, leaf common.Hash, index uint64, path []common.Hash) bool {
	node := leaf
	for _, sibling := range path {
		if index&1 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		index >>= 1
	}
	return index == 0 && node == root
}
