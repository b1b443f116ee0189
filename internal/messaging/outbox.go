package messaging

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/merkle"
)

var (
	ErrInvalidProof    = errors.New("outbox: merkle path does not verify against block root")
	ErrAlreadyConsumed = errors.New("outbox: message already consumed")
	ErrRootUnavailable = errors.New("outbox: no root published for block")
)

// Outbox records one message-tree root per L2 block and enforces the
// consume-once guarantee for L2-to-L1 messages. Portals trust this
// exclusivity rather than tracking consumption themselves.
//
// Consumption is tracked per tree slot, not per message hash: identical
// messages inserted at distinct leaves (two burns of the same amount to
// the same recipient) are distinct consumables, each redeemable exactly
// once.
type Outbox struct {
	mu       sync.Mutex
	roots    map[uint64]common.Hash
	consumed map[leafSlot]bool
}

// leafSlot identifies one leaf of one block's message tree.
type leafSlot struct {
	l2Block   uint64
	leafIndex uint64
}

func NewOutbox() *Outbox {
	return &Outbox{
		roots:    make(map[uint64]common.Hash),
		consumed: make(map[leafSlot]bool),
	}
}

// InsertRoot publishes the outbox root for an L2 block. Roots are immutable
// once published.
func (o *Outbox) InsertRoot(l2Block uint64, root common.Hash) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.roots[l2Block]; ok && existing != root {
		return fmt.Errorf("outbox: root for block %d already published", l2Block)
	}
	o.roots[l2Block] = root
	return nil
}

// RootForBlock returns the published root for an L2 block, if any.
func (o *Outbox) RootForBlock(l2Block uint64) (common.Hash, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	root, ok := o.roots[l2Block]
	return root, ok
}

// Consume verifies that msgHash occupies leafIndex of the named block's
// message tree and marks that slot consumed. Each slot is consumable at
// most once; re-proving the same slot fails even with a fresh witness.
func (o *Outbox) Consume(msgHash common.Hash, l2Block uint64, leafIndex uint64, path []common.Hash) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	root, ok := o.roots[l2Block]
	if !ok {
		return fmt.Errorf("%w: block %d", ErrRootUnavailable, l2Block)
	}
	slot := leafSlot{l2Block: l2Block, leafIndex: leafIndex}
	if o.consumed[slot] {
		return ErrAlreadyConsumed
	}
	if !merkle.VerifyPath(root, msgHash, leafIndex, path) {
		return ErrInvalidProof
	}
	o.consumed[slot] = true
	return nil
}

// IsConsumed reports whether the leaf at (l2Block, leafIndex) was already
// consumed.
func (o *Outbox) IsConsumed(l2Block, leafIndex uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed[leafSlot{l2Block: l2Block, leafIndex: leafIndex}]
}
