package rollup

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/utils"
)

var ErrUnauthorized = errors.New("rollup: action not authorized")

// ActionDigest binds a consumer contract, a function, the acting account,
// an amount, and a one-time nonce into the capability an authorization
// witness grants.
func ActionDigest(consumer common.Hash, selector string, owner common.Hash, amount *big.Int, nonce common.Hash) common.Hash {
	return utils.Sha256ToField(
		consumer.Bytes(),
		[]byte(selector),
		owner.Bytes(),
		utils.AmountBytes(amount),
		nonce.Bytes(),
	)
}

// AuthWitnessRegistry tracks burn authorizations. Private witnesses are
// one-time capability artifacts handed to the consuming contract; public
// authorizations are registered by a prior transaction. Both are nonce
// scoped and spent on first use.
type AuthWitnessRegistry struct {
	mu      sync.Mutex
	private map[common.Hash]bool
	public  map[common.Hash]bool
}

func NewAuthWitnessRegistry() *AuthWitnessRegistry {
	return &AuthWitnessRegistry{
		private: make(map[common.Hash]bool),
		public:  make(map[common.Hash]bool),
	}
}

func witnessKey(owner, action common.Hash) common.Hash {
	return utils.Sha256ToField(owner.Bytes(), action.Bytes())
}

// AddWitness grants a one-time private witness for action on behalf of owner.
func (r *AuthWitnessRegistry) AddWitness(owner, action common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.private[witnessKey(owner, action)] = true
}

// SetPublicAuthorization registers (or revokes) a public authorization.
func (r *AuthWitnessRegistry) SetPublicAuthorization(owner, action common.Hash, authorized bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := witnessKey(owner, action)
	if authorized {
		r.public[key] = true
	} else {
		delete(r.public, key)
	}
}

// ConsumePrivate spends a private witness. Missing or already-spent
// witnesses fail with ErrUnauthorized.
func (r *AuthWitnessRegistry) ConsumePrivate(owner, action common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := witnessKey(owner, action)
	if !r.private[key] {
		return ErrUnauthorized
	}
	delete(r.private, key)
	return nil
}

// ConsumePublic spends a public authorization.
func (r *AuthWitnessRegistry) ConsumePublic(owner, action common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := witnessKey(owner, action)
	if !r.public[key] {
		return ErrUnauthorized
	}
	delete(r.public, key)
	return nil
}
