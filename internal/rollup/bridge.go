package rollup

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/messaging"
	"tokenbridge/internal/utils"
)

// Bridge is the L2 bridge contract: it claims L1-to-L2 mint messages against
// the rollup's message set and initiates withdrawals by burning and emitting
// L2-to-L1 messages.
type Bridge struct {
	node    *Node
	token   *Token
	portal  messaging.L1Actor
	address common.Hash
}

func NewBridge(node *Node, token *Token, portal messaging.L1Actor, address common.Hash) *Bridge {
	b := &Bridge{node: node, token: token, portal: portal, address: address}
	token.SetMinter(address)
	return b
}

func (b *Bridge) Address() common.Hash { return b.address }

func (b *Bridge) Actor() messaging.L2Actor {
	return messaging.L2Actor{Address: b.address, Version: b.node.Version()}
}

// ClaimPublic consumes a mint_public message and credits the public balance
// of to. The expected message is reconstructed from the claim arguments plus
// the revealed secret, so a wrong secret, a path mismatch (the deposit was
// private), and an already-claimed message are indistinguishable failures.
func (b *Bridge) ClaimPublic(to common.Hash, amount *big.Int, secret common.Hash) error {
	msg := messaging.L1ToL2Message{
		Sender:     b.portal,
		Recipient:  b.Actor(),
		Content:    messaging.MintPublicContent(to, amount),
		SecretHash: utils.ComputeSecretHash(secret),
	}
	if err := b.node.ConsumeL1ToL2Message(msg.Hash()); err != nil {
		return err
	}
	return b.token.MintPublic(b.address, to, amount)
}

// ClaimPrivate consumes a mint_private message and records a pending shield
// note gated by secretHashForNotes.
func (b *Bridge) ClaimPrivate(secretHashForNotes common.Hash, amount *big.Int, secret common.Hash) error {
	msg := messaging.L1ToL2Message{
		Sender:     b.portal,
		Recipient:  b.Actor(),
		Content:    messaging.MintPrivateContent(secretHashForNotes, amount),
		SecretHash: utils.ComputeSecretHash(secret),
	}
	if err := b.node.ConsumeL1ToL2Message(msg.Hash()); err != nil {
		return err
	}
	return b.token.MintPrivate(b.address, secretHashForNotes, amount)
}

// ExitToL1Public burns amount from owner's public balance (requires a prior
// public authorization for exactly this action) and emits the withdraw
// message. callerOnL1 restricts who may finalize on L1; the zero address
// leaves it open.
func (b *Bridge) ExitToL1Public(owner common.Hash, recipient common.Address, amount *big.Int, callerOnL1 common.Address, nonce common.Hash) (messaging.L2ToL1Message, error) {
	if err := b.token.BurnPublic(b.address, owner, amount, nonce); err != nil {
		return messaging.L2ToL1Message{}, err
	}
	return b.emitExit(recipient, amount, callerOnL1), nil
}

// ExitToL1Private burns amount from owner's private balance, spending the
// one-time witness the owner granted for this burn.
func (b *Bridge) ExitToL1Private(owner common.Hash, recipient common.Address, amount *big.Int, callerOnL1 common.Address, nonce common.Hash) (messaging.L2ToL1Message, error) {
	if err := b.token.BurnPrivate(b.address, owner, amount, nonce); err != nil {
		return messaging.L2ToL1Message{}, err
	}
	return b.emitExit(recipient, amount, callerOnL1), nil
}

func (b *Bridge) emitExit(recipient common.Address, amount *big.Int, callerOnL1 common.Address) messaging.L2ToL1Message {
	msg := messaging.L2ToL1Message{
		Sender:    b.Actor(),
		Recipient: b.portal,
		Content:   messaging.WithdrawContent(recipient, amount, callerOnL1),
	}
	b.node.EnqueueL2ToL1Message(msg)
	return msg
}
