// Package portal implements the L1 token portal: it escrows the underlying
// asset, gates every operation on a compliance attestation, relays deposit
// intents to the rollup inbox, and releases escrow against verified
// L2-to-L1 withdrawal messages.
package portal

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/attestation"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/token"
)

var (
	ErrNotInitialized     = errors.New("portal: not initialized")
	ErrAlreadyInitialized = errors.New("portal: already initialized")
	ErrAttestationDenied  = errors.New("portal: attestation denied")
	ErrTransferFailed     = errors.New("portal: asset transfer failed")
)

// Registry resolves the rollup's messaging primitives and version for a
// deployment, standing in for the rollup core registry contract.
type Registry struct {
	inbox         *messaging.Inbox
	outbox        *messaging.Outbox
	rollupVersion uint64
}

func NewRegistry(inbox *messaging.Inbox, outbox *messaging.Outbox, rollupVersion uint64) *Registry {
	return &Registry{inbox: inbox, outbox: outbox, rollupVersion: rollupVersion}
}

func (r *Registry) Inbox() *messaging.Inbox   { return r.inbox }
func (r *Registry) Outbox() *messaging.Outbox { return r.outbox }
func (r *Registry) RollupVersion() uint64     { return r.rollupVersion }

// TokenPortal owns escrowed funds until a verified withdrawal releases them.
// All trusted constants (attester, circuit id, bridge identifier) are bound
// exactly once at initialization.
type TokenPortal struct {
	mu          sync.Mutex
	initialized bool

	address common.Address // the portal's own account on L1
	chainID uint64

	registry  *Registry
	asset     *token.Ledger
	l2Bridge  messaging.L2Actor
	verifier  *attestation.Verifier
	circuitID common.Hash
}

// NewTokenPortal creates an uninitialized portal bound to its own L1 address.
func NewTokenPortal(address common.Address, chainID uint64) *TokenPortal {
	return &TokenPortal{address: address, chainID: chainID}
}

// Initialize binds the portal's collaborators and trusted constants. The
// first call wins; any further call fails with ErrAlreadyInitialized.
func (p *TokenPortal) Initialize(registry *Registry, asset *token.Ledger, l2Bridge messaging.L2Actor, attester common.Address, circuitID common.Hash) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return ErrAlreadyInitialized
	}
	p.registry = registry
	p.asset = asset
	p.l2Bridge = l2Bridge
	p.verifier = attestation.NewVerifier(attester)
	p.circuitID = circuitID
	p.initialized = true
	return nil
}

func (p *TokenPortal) Address() common.Address      { return p.address }
func (p *TokenPortal) L2Bridge() messaging.L2Actor  { return p.l2Bridge }
func (p *TokenPortal) Asset() *token.Ledger         { return p.asset }
func (p *TokenPortal) l1Actor() messaging.L1Actor {
	return messaging.L1Actor{Address: p.address, ChainID: p.chainID}
}

// VerifySignature exposes the attestation check for the harness and tests.
func (p *TokenPortal) VerifySignature(actionID common.Hash, user common.Address, sig []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return false
	}
	return p.verifier.Verify(p.circuitID, actionID, user, sig)
}

// DepositPublic escrows amount from caller and emits a mint_public message
// for the configured L2 bridge. The escrow pull happens before message
// emission so no message can exist without matching escrow.
func (p *TokenPortal) DepositPublic(caller common.Address, to common.Hash, amount *big.Int, secretHash common.Hash, actionID common.Hash, sig []byte) (common.Hash, error) {
	content := messaging.MintPublicContent(to, amount)
	return p.deposit(caller, amount, content, secretHash, actionID, sig)
}

// DepositPrivate escrows amount from caller and emits a mint_private
// message. secretHashForNotes gates note redemption on L2; secretHash gates
// consumption of the cross-layer message itself.
func (p *TokenPortal) DepositPrivate(caller common.Address, secretHashForNotes common.Hash, amount *big.Int, secretHash common.Hash, actionID common.Hash, sig []byte) (common.Hash, error) {
	content := messaging.MintPrivateContent(secretHashForNotes, amount)
	return p.deposit(caller, amount, content, secretHash, actionID, sig)
}

func (p *TokenPortal) deposit(caller common.Address, amount *big.Int, content, secretHash, actionID common.Hash, sig []byte) (common.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return common.Hash{}, ErrNotInitialized
	}
	if !p.verifier.Verify(p.circuitID, actionID, caller, sig) {
		return common.Hash{}, ErrAttestationDenied
	}
	if err := p.asset.TransferFrom(p.address, caller, p.address, amount); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	msg := messaging.L1ToL2Message{
		Sender:     p.l1Actor(),
		Recipient:  p.l2Bridge,
		Content:    content,
		SecretHash: secretHash,
	}
	key, err := p.registry.Inbox().SendL2Message(msg)
	if err != nil {
		// The inbox never rejects in this deployment; if it ever does the
		// escrowed funds stay with the portal, matching the no-refund model.
		return common.Hash{}, fmt.Errorf("portal: inbox rejected message: %w", err)
	}
	return key, nil
}

// Withdraw finalizes an L2-initiated withdrawal: it reconstructs the
// expected message, has the outbox verify membership and mark it consumed,
// and only then releases escrow. Consume-before-transfer ordering is what
// prevents a reentrant recipient from double-spending the message.
func (p *TokenPortal) Withdraw(caller, recipient common.Address, amount *big.Int, withCaller bool, l2Block uint64, leafIndex uint64, path []common.Hash, actionID common.Hash, sig []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if !p.verifier.Verify(p.circuitID, actionID, caller, sig) {
		return ErrAttestationDenied
	}

	callerRestriction := common.Address{}
	if withCaller {
		callerRestriction = caller
	}
	msg := messaging.L2ToL1Message{
		Sender:    p.l2Bridge,
		Recipient: p.l1Actor(),
		Content:   messaging.WithdrawContent(recipient, amount, callerRestriction),
	}
	if err := p.registry.Outbox().Consume(msg.Hash(), l2Block, leafIndex, path); err != nil {
		return err
	}
	if err := p.asset.Transfer(p.address, recipient, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}
