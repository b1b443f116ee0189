// Package attestation implements the compliance attestation scheme gating
// deposits and withdrawals: an off-chain attester signs a digest binding a
// user address and an action identifier to a circuit identifier, and the
// portal verifies that signature against a configured trust root.
package attestation

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// personalPrefix is the Ethereum personal-sign prefix for a 32-byte payload,
// matching what off-chain signing tooling produces.
const personalPrefix = "\x19Ethereum Signed Message:\n32"

// SignableDigest is the raw digest the attester signs (before the
// personal-sign prefix is applied).
func SignableDigest(circuitID, actionID common.Hash, user common.Address) []byte {
	return crypto.Keccak256(circuitID.Bytes(), actionID.Bytes(), user.Bytes())
}

func prefixedDigest(circuitID, actionID common.Hash, user common.Address) []byte {
	return crypto.Keccak256([]byte(personalPrefix), SignableDigest(circuitID, actionID, user))
}

// Verifier checks attestation signatures against a single trusted signer.
// The trust root is injected at construction so deployments can rotate the
// attester without touching the verification logic.
type Verifier struct {
	attester common.Address
}

func NewVerifier(attester common.Address) *Verifier {
	return &Verifier{attester: attester}
}

func (v *Verifier) Attester() common.Address { return v.attester }

// Verify reports whether sig is a valid attestation by the trusted signer
// over (circuitID, actionID, user). Malformed signatures and failed
// recoveries are a normal "not verified" outcome, never an error or panic.
func (v *Verifier) Verify(circuitID, actionID common.Hash, user common.Address, sig []byte) bool {
	if len(sig) != crypto.SignatureLength {
		return false
	}
	// Normalize the recovery id: signing tooling emits 27/28, Ecrecover
	// wants 0/1.
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return false
	}
	pub, err := crypto.SigToPub(prefixedDigest(circuitID, actionID, user), normalized)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == v.attester
}

// Attester signs attestations. It backs the devnet oracle service and tests;
// production deployments hold the key off-chain.
type Attester struct {
	key       *ecdsa.PrivateKey
	circuitID common.Hash
}

func NewAttester(key *ecdsa.PrivateKey, circuitID common.Hash) *Attester {
	return &Attester{key: key, circuitID: circuitID}
}

func (a *Attester) Address() common.Address {
	return crypto.PubkeyToAddress(a.key.PublicKey)
}

func (a *Attester) CircuitID() common.Hash { return a.circuitID }

// Attest signs (circuitID, actionID, user) and returns a 65-byte signature
// with the recovery id in 27/28 form.
func (a *Attester) Attest(actionID common.Hash, user common.Address) ([]byte, error) {
	sig, err := crypto.Sign(prefixedDigest(a.circuitID, actionID, user), a.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
