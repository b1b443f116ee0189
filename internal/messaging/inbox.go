package messaging

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/utils"
)

var ErrUnknownMessageKey = errors.New("inbox: unknown message key")

// PendingEntry is a message accepted by the inbox but not yet included in an
// L2 block.
type PendingEntry struct {
	Key     common.Hash
	Message L1ToL2Message
}

// Inbox accepts L1-to-L2 messages from portals and hands them to the rollup
// node in arrival order. The entry key folds in a running index so two
// deposits with identical parameters still get distinct keys.
type Inbox struct {
	mu      sync.Mutex
	pending []PendingEntry
	count   uint64
}

func NewInbox() *Inbox {
	return &Inbox{}
}

// SendL2Message queues a message for inclusion and returns its entry key.
func (i *Inbox) SendL2Message(msg L1ToL2Message) (common.Hash, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	key := utils.Sha256ToField(msg.Hash().Bytes(), utils.Uint64Bytes(i.count))
	i.count++
	i.pending = append(i.pending, PendingEntry{Key: key, Message: msg})
	return key, nil
}

// DrainPending removes and returns all queued entries. Called by the rollup
// node when it produces a block.
func (i *Inbox) DrainPending() []PendingEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	entries := i.pending
	i.pending = nil
	return entries
}

// PendingCount reports how many messages await inclusion.
func (i *Inbox) PendingCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}
