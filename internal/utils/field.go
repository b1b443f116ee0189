package utils

import (
	"crypto/sha256"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// secretDomain separates claim-secret hashing from every other digest in the
// protocol so a revealed secret cannot be replayed as some other preimage.
var secretDomain = []byte("tokenbridge.claim_secret.v1")

// ToField reduces a 32-byte digest into the BN254 scalar field. Both layers
// hash message contents with this reduction so a content hash computed on L1
// matches the one the rollup side reconstructs.
func ToField(digest [32]byte) common.Hash {
	v := new(big.Int).SetBytes(digest[:])
	v.Mod(v, fr.Modulus())
	return common.BigToHash(v)
}

// Sha256ToField hashes the concatenation of the given chunks with SHA-256 and
// reduces the result into the field.
func Sha256ToField(chunks ...[]byte) common.Hash {
	h := sha256.New()
	for _, c := range chunks {
		h.Write(c)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return ToField(digest)
}

// ComputeSecretHash commits to a claim secret. Whoever learns the preimage
// may consume the message gated by the resulting hash.
func ComputeSecretHash(secret common.Hash) common.Hash {
	h := sha3.New256()
	h.Write(secretDomain)
	h.Write(secret[:])
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return ToField(digest)
}

// NoteHash commits to a shielded note. The domain tag keeps note commitments
// disjoint from secret hashes even when inputs collide.
func NoteHash(secretHash common.Hash, amount *big.Int) common.Hash {
	h := sha3.New256()
	h.Write([]byte("tokenbridge.note.v1"))
	h.Write(secretHash[:])
	h.Write(common.LeftPadBytes(amount.Bytes(), 32))
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return ToField(digest)
}

// Uint64Bytes encodes n as an 8-byte big-endian slice for hashing.
func Uint64Bytes(n uint64) []byte {
	return []byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
}

// AmountBytes left-pads an amount to a 32-byte word, matching abi.encode of
// a uint256.
func AmountBytes(amount *big.Int) []byte {
	if amount == nil {
		return make([]byte, 32)
	}
	return common.LeftPadBytes(amount.Bytes(), 32)
}
