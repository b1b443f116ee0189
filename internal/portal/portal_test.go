package portal

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"tokenbridge/internal/attestation"
	"tokenbridge/internal/merkle"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/token"
)

const testChainID = 31337

var (
	circuitID  = common.HexToHash("0x01")
	actionID   = common.HexToHash("0xaa")
	depositor  = common.HexToAddress("0xd001")
	portalAddr = common.HexToAddress("0x90f7a1")
	l2Bridge   = messaging.L2Actor{Address: common.HexToHash("0xb71d9e"), Version: 1}
)

type fixture struct {
	portal   *TokenPortal
	asset    *token.Ledger
	inbox    *messaging.Inbox
	outbox   *messaging.Outbox
	attester *attestation.Attester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	attester := attestation.NewAttester(key, circuitID)

	inbox := messaging.NewInbox()
	outbox := messaging.NewOutbox()
	asset := token.NewLedger("TST")

	p := NewTokenPortal(portalAddr, testChainID)
	require.NoError(t, p.Initialize(NewRegistry(inbox, outbox, 1), asset, l2Bridge, attester.Address(), circuitID))

	return &fixture{portal: p, asset: asset, inbox: inbox, outbox: outbox, attester: attester}
}

func (f *fixture) attest(t *testing.T, user common.Address) []byte {
	t.Helper()
	sig, err := f.attester.Attest(actionID, user)
	require.NoError(t, err)
	return sig
}

func (f *fixture) fund(t *testing.T, user common.Address, amount int64) {
	t.Helper()
	require.NoError(t, f.asset.Mint(user, big.NewInt(amount)))
	require.NoError(t, f.asset.Approve(user, portalAddr, big.NewInt(amount)))
}

func TestInitializeOnce(t *testing.T) {
	f := newFixture(t)
	err := f.portal.Initialize(NewRegistry(f.inbox, f.outbox, 1), f.asset, l2Bridge, f.attester.Address(), circuitID)
	require.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestDepositPublicEscrowsExactly(t *testing.T) {
	f := newFixture(t)
	f.fund(t, depositor, 1000)
	sig := f.attest(t, depositor)

	key, err := f.portal.DepositPublic(depositor, common.HexToHash("0x1234"), big.NewInt(100), common.HexToHash("0x56"), actionID, sig)
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, key)

	require.Equal(t, int64(900), f.asset.BalanceOf(depositor).Int64())
	require.Equal(t, int64(100), f.asset.BalanceOf(portalAddr).Int64())
	require.Equal(t, 1, f.inbox.PendingCount())
}

func TestDepositDeniedWithoutValidAttestation(t *testing.T) {
	f := newFixture(t)
	f.fund(t, depositor, 1000)

	rogueKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	rogue := attestation.NewAttester(rogueKey, circuitID)
	sig, err := rogue.Attest(actionID, depositor)
	require.NoError(t, err)

	_, err = f.portal.DepositPublic(depositor, common.HexToHash("0x1234"), big.NewInt(100), common.HexToHash("0x56"), actionID, sig)
	require.ErrorIs(t, err, ErrAttestationDenied)

	// Fail closed: no escrow, no message.
	require.Equal(t, int64(1000), f.asset.BalanceOf(depositor).Int64())
	require.Zero(t, f.inbox.PendingCount())
}

func TestDepositFailsWithoutAllowance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(depositor, big.NewInt(1000)))
	sig := f.attest(t, depositor)

	_, err := f.portal.DepositPublic(depositor, common.HexToHash("0x1234"), big.NewInt(100), common.HexToHash("0x56"), actionID, sig)
	require.ErrorIs(t, err, ErrTransferFailed)
	require.Zero(t, f.inbox.PendingCount(), "no message may be emitted without matching escrow")
}

func TestDepositPrivateUsesDistinctContent(t *testing.T) {
	f := newFixture(t)
	f.fund(t, depositor, 200)
	sig := f.attest(t, depositor)

	_, err := f.portal.DepositPrivate(depositor, common.HexToHash("0x77"), big.NewInt(100), common.HexToHash("0x56"), actionID, sig)
	require.NoError(t, err)
	_, err = f.portal.DepositPublic(depositor, common.HexToHash("0x77"), big.NewInt(100), common.HexToHash("0x56"), actionID, sig)
	require.NoError(t, err)

	entries := f.inbox.DrainPending()
	require.Len(t, entries, 2)
	require.NotEqual(t, entries[0].Message.Content, entries[1].Message.Content,
		"private and public deposits of identical parameters must produce different contents")
}

// buildExit publishes an outbox root containing one withdraw message and
// returns the proof material for it.
func buildExit(t *testing.T, f *fixture, recipient common.Address, amount *big.Int, callerRestriction common.Address, block uint64) (uint64, []common.Hash) {
	t.Helper()
	msg := messaging.L2ToL1Message{
		Sender:    l2Bridge,
		Recipient: messaging.L1Actor{Address: portalAddr, ChainID: testChainID},
		Content:   messaging.WithdrawContent(recipient, amount, callerRestriction),
	}
	tree := merkle.NewTree()
	index := tree.Append(msg.Hash())
	path, err := tree.Witness(index)
	require.NoError(t, err)
	require.NoError(t, f.outbox.InsertRoot(block, tree.Root()))
	return index, path
}

func TestWithdrawReleasesEscrowOnce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(portalAddr, big.NewInt(100)))

	recipient := common.HexToAddress("0x4ec1")
	amount := big.NewInt(9)
	index, path := buildExit(t, f, recipient, amount, common.Address{}, 5)

	sig := f.attest(t, depositor)
	require.NoError(t, f.portal.Withdraw(depositor, recipient, amount, false, 5, index, path, actionID, sig))
	require.Equal(t, int64(9), f.asset.BalanceOf(recipient).Int64())
	require.Equal(t, int64(91), f.asset.BalanceOf(portalAddr).Int64())

	err := f.portal.Withdraw(depositor, recipient, amount, false, 5, index, path, actionID, sig)
	require.ErrorIs(t, err, messaging.ErrAlreadyConsumed)
	require.Equal(t, int64(9), f.asset.BalanceOf(recipient).Int64(), "no double payment")
}

func TestWithdrawRejectsBadProof(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(portalAddr, big.NewInt(100)))

	recipient := common.HexToAddress("0x4ec1")
	index, path := buildExit(t, f, recipient, big.NewInt(9), common.Address{}, 5)

	sig := f.attest(t, depositor)
	// Claim a different amount than the message binds.
	err := f.portal.Withdraw(depositor, recipient, big.NewInt(10), false, 5, index, path, actionID, sig)
	require.ErrorIs(t, err, messaging.ErrInvalidProof)
	require.Equal(t, int64(100), f.asset.BalanceOf(portalAddr).Int64())
}

func TestWithdrawCallerRestriction(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(portalAddr, big.NewInt(100)))

	designated := common.HexToAddress("0xca11")
	recipient := common.HexToAddress("0x4ec1")
	amount := big.NewInt(9)
	index, path := buildExit(t, f, recipient, amount, designated, 5)

	// Another account cannot finalize a caller-restricted withdrawal: it
	// reconstructs a different message, so the proof fails.
	sig := f.attest(t, depositor)
	err := f.portal.Withdraw(depositor, recipient, amount, true, 5, index, path, actionID, sig)
	require.ErrorIs(t, err, messaging.ErrInvalidProof)

	sig = f.attest(t, designated)
	require.NoError(t, f.portal.Withdraw(designated, recipient, amount, true, 5, index, path, actionID, sig))
}

func TestWithdrawDeniedAttestationLeavesMessageUnconsumed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.asset.Mint(portalAddr, big.NewInt(100)))

	recipient := common.HexToAddress("0x4ec1")
	amount := big.NewInt(9)
	index, path := buildExit(t, f, recipient, amount, common.Address{}, 5)

	err := f.portal.Withdraw(depositor, recipient, amount, false, 5, index, path, actionID, []byte("bogus"))
	require.ErrorIs(t, err, ErrAttestationDenied)

	sig := f.attest(t, depositor)
	require.NoError(t, f.portal.Withdraw(depositor, recipient, amount, false, 5, index, path, actionID, sig))
}

func TestVerifySignature(t *testing.T) {
	f := newFixture(t)
	sig := f.attest(t, depositor)
	require.True(t, f.portal.VerifySignature(actionID, depositor, sig))
	require.False(t, f.portal.VerifySignature(common.HexToHash("0xbb"), depositor, sig))
	require.False(t, f.portal.VerifySignature(actionID, depositor, []byte("junk")))
}
