// Package rollup simulates the L2 side of the bridge: a block-producing
// node that drains the L1 inbox and publishes outbox roots, an L2 token
// with public balances and shielded notes, the L2 bridge contract, and the
// authorization-witness registry gating burns.
package rollup

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/merkle"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/metrics"
)

var ErrNoSuchL1ToL2Message = errors.New("rollup: no such L1-to-L2 message")

type l1ToL2Entry struct {
	key       common.Hash
	message   messaging.L1ToL2Message
	l2Block   uint64
	nullified bool
}

// Node produces L2 blocks. Each block makes the inbox's pending messages
// consumable and publishes the Merkle root of the block's L2-to-L1 messages
// to the L1 outbox. There is no shared clock with L1: consumers poll.
type Node struct {
	mu      sync.Mutex
	inbox   *messaging.Inbox
	outbox  *messaging.Outbox
	version uint64

	blockNumber uint64
	entries     map[common.Hash]*l1ToL2Entry   // entry key -> entry
	byMessage   map[common.Hash][]common.Hash  // message hash -> entry keys
	inTrees     map[uint64]*merkle.Tree        // L1->L2 message trees per block
	inIndex     map[uint64]map[common.Hash]uint64

	pendingExits []messaging.L2ToL1Message
	outTrees     map[uint64]*merkle.Tree
	outIndex     map[uint64]map[common.Hash][]uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewNode(inbox *messaging.Inbox, outbox *messaging.Outbox, version uint64) *Node {
	return &Node{
		inbox:    inbox,
		outbox:   outbox,
		version:  version,
		entries:  make(map[common.Hash]*l1ToL2Entry),
		byMessage: make(map[common.Hash][]common.Hash),
		inTrees:  make(map[uint64]*merkle.Tree),
		inIndex:  make(map[uint64]map[common.Hash]uint64),
		outTrees: make(map[uint64]*merkle.Tree),
		outIndex: make(map[uint64]map[common.Hash][]uint64),
	}
}

func (n *Node) Version() uint64 { return n.version }

func (n *Node) BlockNumber() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.blockNumber
}

// Start produces blocks on a fixed interval until Stop is called.
func (n *Node) Start(interval time.Duration) {
	n.mu.Lock()
	if n.stopCh != nil {
		n.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	n.stopCh = stop
	n.mu.Unlock()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := n.ProduceBlock(); err != nil {
					// Root publication is local; failure here means a
					// duplicate root, which ProduceBlock never produces.
					continue
				}
			case <-stop:
				return
			}
		}
	}()
}

func (n *Node) Stop() {
	n.mu.Lock()
	if n.stopCh == nil {
		n.mu.Unlock()
		return
	}
	close(n.stopCh)
	n.stopCh = nil
	n.mu.Unlock()
	n.wg.Wait()
}

// ProduceBlock includes all pending inbox messages (making them consumable)
// and seals the block's L2-to-L1 messages into a tree whose root is
// published to the L1 outbox. Returns the new block number.
func (n *Node) ProduceBlock() (uint64, error) {
	pending := n.inbox.DrainPending()

	n.mu.Lock()
	defer n.mu.Unlock()

	block := n.blockNumber + 1

	if len(pending) > 0 {
		tree := merkle.NewTree()
		index := make(map[common.Hash]uint64, len(pending))
		for _, entry := range pending {
			n.entries[entry.Key] = &l1ToL2Entry{key: entry.Key, message: entry.Message, l2Block: block}
			msgHash := entry.Message.Hash()
			n.byMessage[msgHash] = append(n.byMessage[msgHash], entry.Key)
			index[msgHash] = tree.Append(msgHash)
		}
		n.inTrees[block] = tree
		n.inIndex[block] = index
	}

	if len(n.pendingExits) > 0 {
		tree := merkle.NewTree()
		index := make(map[common.Hash][]uint64, len(n.pendingExits))
		for _, msg := range n.pendingExits {
			// Identical messages get distinct leaves; keep every index so
			// each burn stays redeemable on its own.
			msgHash := msg.Hash()
			index[msgHash] = append(index[msgHash], tree.Append(msgHash))
		}
		if err := n.outbox.InsertRoot(block, tree.Root()); err != nil {
			return 0, err
		}
		n.outTrees[block] = tree
		n.outIndex[block] = index
		n.pendingExits = nil
	}

	n.blockNumber = block
	metrics.L2BlockHeight.Set(float64(block))
	return block, nil
}

// IsL1ToL2MessageConsumable reports whether the message behind the given
// entry key has been included in a block and not yet consumed. This is the
// polling predicate the orchestrator waits on after a deposit.
func (n *Node) IsL1ToL2MessageConsumable(key common.Hash) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.entries[key]
	return ok && !entry.nullified
}

// ConsumeL1ToL2Message nullifies one consumable entry matching the message
// hash. Claims against unknown, not-yet-included, or fully consumed messages
// all fail identically: the claimer learns nothing beyond "no such message".
func (n *Node) ConsumeL1ToL2Message(msgHash common.Hash) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, key := range n.byMessage[msgHash] {
		entry := n.entries[key]
		if entry != nil && !entry.nullified {
			entry.nullified = true
			return nil
		}
	}
	return ErrNoSuchL1ToL2Message
}

// L1ToL2MessageWitness returns the membership witness for an included
// L1-to-L2 message by entry key, or false if not yet included.
func (n *Node) L1ToL2MessageWitness(key common.Hash) (uint64, uint64, []common.Hash, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	entry, ok := n.entries[key]
	if !ok {
		return 0, 0, nil, false
	}
	index := n.inIndex[entry.l2Block][entry.message.Hash()]
	path, err := n.inTrees[entry.l2Block].Witness(index)
	if err != nil {
		return 0, 0, nil, false
	}
	return entry.l2Block, index, path, true
}

// EnqueueL2ToL1Message queues a withdrawal message for inclusion in the next
// block. Called by the bridge contract when it burns.
func (n *Node) EnqueueL2ToL1Message(msg messaging.L2ToL1Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pendingExits = append(n.pendingExits, msg)
}

// ExitWitness is the proof material for one sealed L2-to-L1 message leaf.
type ExitWitness struct {
	L2Block   uint64
	LeafIndex uint64
	Path      []common.Hash
}

// L2ToL1MessageWitnesses returns a witness for every leaf in the named
// block's outbox tree holding the message. A message burned twice in one
// block yields two witnesses.
func (n *Node) L2ToL1MessageWitnesses(l2Block uint64, msgHash common.Hash) ([]ExitWitness, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	indices, ok := n.outIndex[l2Block][msgHash]
	if !ok {
		return nil, fmt.Errorf("rollup: message %s not in block %d", msgHash.Hex(), l2Block)
	}
	witnesses := make([]ExitWitness, 0, len(indices))
	for _, index := range indices {
		path, err := n.outTrees[l2Block].Witness(index)
		if err != nil {
			return nil, err
		}
		witnesses = append(witnesses, ExitWitness{L2Block: l2Block, LeafIndex: index, Path: path})
	}
	return witnesses, nil
}

// FindL2ToL1Messages scans produced blocks for the message and returns the
// proof material of every leaf holding it. Convenience for pollers that know
// the message but not the block that sealed it.
func (n *Node) FindL2ToL1Messages(msgHash common.Hash) []ExitWitness {
	n.mu.Lock()
	blocks := make([]uint64, 0, len(n.outIndex))
	for block := range n.outIndex {
		if _, ok := n.outIndex[block][msgHash]; ok {
			blocks = append(blocks, block)
		}
	}
	n.mu.Unlock()

	var all []ExitWitness
	for _, block := range blocks {
		witnesses, err := n.L2ToL1MessageWitnesses(block, msgHash)
		if err != nil {
			continue
		}
		all = append(all, witnesses...)
	}
	return all
}
