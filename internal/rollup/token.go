package rollup

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"tokenbridge/internal/utils"
)

var (
	ErrNotMinter           = errors.New("rollup: caller is not the bridge")
	ErrUnknownShield       = errors.New("rollup: no pending shield for secret")
	ErrInsufficientBalance = errors.New("rollup: insufficient balance")
	ErrInvalidAmount       = errors.New("rollup: amount must be a non-negative integer")
)

const (
	selectorBurnPublic  = "burn_public"
	selectorBurnPrivate = "burn"
)

// Token is the rollup-side representation of the bridged asset. Public
// balances are a plain ledger; private funds live as shielded notes that
// must be redeemed with a secret before they become spendable, with spent
// notes tracked in a nullifier set.
type Token struct {
	mu     sync.Mutex
	minter common.Hash // the bridge contract; the only actor allowed to mint and burn

	public  map[common.Hash]*big.Int
	private map[common.Hash]*big.Int

	pendingShields map[common.Hash][]shieldNote // secret hash -> notes
	nullifiers     map[common.Hash]bool
	noteCounter    uint64

	auth        *AuthWitnessRegistry
	totalSupply *big.Int
}

// shieldNote is one pending private note. The id is assigned at mint so
// identical notes derive distinct nullifiers.
type shieldNote struct {
	amount *big.Int
	id     uint64
}

func NewToken(auth *AuthWitnessRegistry) *Token {
	return &Token{
		public:         make(map[common.Hash]*big.Int),
		private:        make(map[common.Hash]*big.Int),
		pendingShields: make(map[common.Hash][]shieldNote),
		nullifiers:     make(map[common.Hash]bool),
		auth:           auth,
		totalSupply:    new(big.Int),
	}
}

// noteNullifier derives the nullifier emitted when a note is spent.
func noteNullifier(secretHash common.Hash, amount *big.Int, id uint64) common.Hash {
	return utils.Sha256ToField(utils.NoteHash(secretHash, amount).Bytes(), utils.Uint64Bytes(id))
}

// SetMinter binds the bridge contract allowed to mint and burn. First write
// wins, mirroring the portal's one-shot initialization.
func (t *Token) SetMinter(bridge common.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.minter == (common.Hash{}) {
		t.minter = bridge
	}
}

func (t *Token) TotalSupply() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) BalancePublic(owner common.Hash) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyBalance(t.public, owner)
}

func (t *Token) BalancePrivate(owner common.Hash) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyBalance(t.private, owner)
}

// MintPublic credits a public balance. Bridge only.
func (t *Token) MintPublic(caller, to common.Hash, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.minter {
		return ErrNotMinter
	}
	credit(t.public, to, amount)
	t.totalSupply.Add(t.totalSupply, amount)
	return nil
}

// MintPrivate records a pending shield note redeemable by whoever knows the
// preimage of secretHashForNotes. The depositor and the eventual redeemer
// may be different principals.
func (t *Token) MintPrivate(caller, secretHashForNotes common.Hash, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.minter {
		return ErrNotMinter
	}
	note := shieldNote{amount: new(big.Int).Set(amount), id: t.noteCounter}
	t.noteCounter++
	t.pendingShields[secretHashForNotes] = append(t.pendingShields[secretHashForNotes], note)
	t.totalSupply.Add(t.totalSupply, amount)
	return nil
}

// RedeemShield consumes one pending shield note matching (secret, amount)
// and credits the private balance of to. Identical notes carry distinct ids
// and thus distinct nullifiers; a note whose nullifier is already recorded
// cannot be redeemed again.
func (t *Token) RedeemShield(to common.Hash, amount *big.Int, secret common.Hash) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	secretHash := utils.ComputeSecretHash(secret)
	notes := t.pendingShields[secretHash]
	for i, note := range notes {
		if note.amount.Cmp(amount) != 0 {
			continue
		}
		nullifier := noteNullifier(secretHash, amount, note.id)
		if t.nullifiers[nullifier] {
			continue
		}
		t.nullifiers[nullifier] = true
		t.pendingShields[secretHash] = append(notes[:i], notes[i+1:]...)
		credit(t.private, to, amount)
		return nil
	}
	return ErrUnknownShield
}

// BurnPublic debits a public balance on behalf of owner. The caller must
// hold a public authorization for exactly this action.
func (t *Token) BurnPublic(caller, owner common.Hash, amount *big.Int, nonce common.Hash) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.minter {
		return ErrNotMinter
	}
	// Balance check precedes the witness spend so a failed burn leaves the
	// authorization intact.
	if balance, ok := t.public[owner]; !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	action := ActionDigest(caller, selectorBurnPublic, owner, amount, nonce)
	if err := t.auth.ConsumePublic(owner, action); err != nil {
		return err
	}
	return t.debit(t.public, owner, amount)
}

// BurnPrivate debits a private balance on behalf of owner, spending a
// one-time private witness.
func (t *Token) BurnPrivate(caller, owner common.Hash, amount *big.Int, nonce common.Hash) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.minter {
		return ErrNotMinter
	}
	if balance, ok := t.private[owner]; !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	action := ActionDigest(caller, selectorBurnPrivate, owner, amount, nonce)
	if err := t.auth.ConsumePrivate(owner, action); err != nil {
		return err
	}
	return t.debit(t.private, owner, amount)
}

// BurnPublicAction and BurnPrivateAction expose the digests account owners
// must authorize before the bridge may burn on their behalf.
func BurnPublicAction(bridge, owner common.Hash, amount *big.Int, nonce common.Hash) common.Hash {
	return ActionDigest(bridge, selectorBurnPublic, owner, amount, nonce)
}

func BurnPrivateAction(bridge, owner common.Hash, amount *big.Int, nonce common.Hash) common.Hash {
	return ActionDigest(bridge, selectorBurnPrivate, owner, amount, nonce)
}

func (t *Token) debit(ledger map[common.Hash]*big.Int, owner common.Hash, amount *big.Int) error {
	balance, ok := ledger[owner]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	t.totalSupply.Sub(t.totalSupply, amount)
	return nil
}

func credit(ledger map[common.Hash]*big.Int, to common.Hash, amount *big.Int) {
	if b, ok := ledger[to]; ok {
		b.Add(b, amount)
		return
	}
	ledger[to] = new(big.Int).Set(amount)
}

func copyBalance(ledger map[common.Hash]*big.Int, owner common.Hash) *big.Int {
	if b, ok := ledger[owner]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}
