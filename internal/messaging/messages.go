// Package messaging holds the cross-layer messaging primitives: the actor
// and message types shared by both layers, the L1 inbox that accepts
// L1-to-L2 messages, and the L1 outbox that verifies and consumes L2-to-L1
// messages exactly once.
package messaging

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tokenbridge/internal/utils"
)

// L1Actor identifies a contract on the base layer.
type L1Actor struct {
	Address common.Address
	ChainID uint64
}

// L2Actor identifies a contract on the rollup. Addresses on the rollup are
// field elements, and Version pins the rollup instance the actor lives on.
type L2Actor struct {
	Address common.Hash
	Version uint64
}

// L1ToL2Message describes a desired L2-side effect, consumable only by
// whoever knows the preimage of SecretHash.
type L1ToL2Message struct {
	Sender     L1Actor
	Recipient  L2Actor
	Content    common.Hash
	SecretHash common.Hash
}

// Hash returns the field-safe digest both layers use to identify the message.
func (m L1ToL2Message) Hash() common.Hash {
	return utils.Sha256ToField(
		m.Sender.Address.Bytes(),
		utils.Uint64Bytes(m.Sender.ChainID),
		m.Recipient.Address.Bytes(),
		utils.Uint64Bytes(m.Recipient.Version),
		m.Content.Bytes(),
		m.SecretHash.Bytes(),
	)
}

// L2ToL1Message describes a withdrawal effect to be finalized on L1.
type L2ToL1Message struct {
	Sender    L2Actor
	Recipient L1Actor
	Content   common.Hash
}

func (m L2ToL1Message) Hash() common.Hash {
	return utils.Sha256ToField(
		m.Sender.Address.Bytes(),
		utils.Uint64Bytes(m.Sender.Version),
		m.Recipient.Address.Bytes(),
		utils.Uint64Bytes(m.Recipient.ChainID),
		m.Content.Bytes(),
	)
}

// Content hash constructors. Deposit content is computed on L1 at deposit
// time and independently reconstructed on L2 at claim time; withdraw content
// is computed on L2 at exit time and reconstructed on L1 at withdrawal time.
// Both sides must therefore agree on the selector and argument packing, so
// the constructors live here rather than on either side.

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// MintPublicContent binds a public mint of amount to an L2 account.
func MintPublicContent(to common.Hash, amount *big.Int) common.Hash {
	return utils.Sha256ToField(selector("mint_public(bytes32,uint256)"), to.Bytes(), utils.AmountBytes(amount))
}

// MintPrivateContent binds a private mint: the note can be redeemed by
// whoever knows the preimage of secretHashForNotes.
func MintPrivateContent(secretHashForNotes common.Hash, amount *big.Int) common.Hash {
	return utils.Sha256ToField(selector("mint_private(bytes32,uint256)"), secretHashForNotes.Bytes(), utils.AmountBytes(amount))
}

// WithdrawContent binds a withdrawal of amount to an L1 recipient.
// callerRestriction is the zero address when any account may finalize the
// withdrawal, or the only address allowed to do so.
func WithdrawContent(recipient common.Address, amount *big.Int, callerRestriction common.Address) common.Hash {
	return utils.Sha256ToField(
		selector("withdraw(address,uint256,address)"),
		common.LeftPadBytes(recipient.Bytes(), 32),
		utils.AmountBytes(amount),
		common.LeftPadBytes(callerRestriction.Bytes(), 32),
	)
}
