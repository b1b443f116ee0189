package messaging

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"tokenbridge/internal/merkle"
)

func testMessage(content byte) L1ToL2Message {
	return L1ToL2Message{
		Sender:     L1Actor{Address: common.HexToAddress("0x1111"), ChainID: 31337},
		Recipient:  L2Actor{Address: common.HexToHash("0x2222"), Version: 1},
		Content:    common.HexToHash("0x33"),
		SecretHash: common.BytesToHash([]byte{content}),
	}
}

func TestInboxDistinctKeysForIdenticalMessages(t *testing.T) {
	inbox := NewInbox()
	k1, err := inbox.SendL2Message(testMessage(1))
	require.NoError(t, err)
	k2, err := inbox.SendL2Message(testMessage(1))
	require.NoError(t, err)
	require.NotEqual(t, k1, k2, "identical deposits must get distinct entry keys")
}

func TestInboxDrainEmptiesPending(t *testing.T) {
	inbox := NewInbox()
	_, err := inbox.SendL2Message(testMessage(1))
	require.NoError(t, err)
	_, err = inbox.SendL2Message(testMessage(2))
	require.NoError(t, err)

	entries := inbox.DrainPending()
	require.Len(t, entries, 2)
	require.Zero(t, inbox.PendingCount())
	require.Empty(t, inbox.DrainPending())
}

func TestOutboxConsumeOnce(t *testing.T) {
	msg := L2ToL1Message{
		Sender:    L2Actor{Address: common.HexToHash("0x2222"), Version: 1},
		Recipient: L1Actor{Address: common.HexToAddress("0x1111"), ChainID: 31337},
		Content:   WithdrawContent(common.HexToAddress("0xabcd"), big.NewInt(9), common.Address{}),
	}

	tree := merkle.NewTree()
	index := tree.Append(msg.Hash())
	path, err := tree.Witness(index)
	require.NoError(t, err)

	outbox := NewOutbox()
	require.NoError(t, outbox.InsertRoot(7, tree.Root()))

	require.NoError(t, outbox.Consume(msg.Hash(), 7, index, path))
	require.True(t, outbox.IsConsumed(7, index))

	err = outbox.Consume(msg.Hash(), 7, index, path)
	require.ErrorIs(t, err, ErrAlreadyConsumed)
}

func TestOutboxIdenticalMessagesAtDistinctLeavesBothConsumable(t *testing.T) {
	msg := L2ToL1Message{
		Sender:    L2Actor{Address: common.HexToHash("0x2222"), Version: 1},
		Recipient: L1Actor{Address: common.HexToAddress("0x1111"), ChainID: 31337},
		Content:   WithdrawContent(common.HexToAddress("0xabcd"), big.NewInt(9), common.Address{}),
	}

	tree := merkle.NewTree()
	first := tree.Append(msg.Hash())
	second := tree.Append(msg.Hash())
	firstPath, err := tree.Witness(first)
	require.NoError(t, err)
	secondPath, err := tree.Witness(second)
	require.NoError(t, err)

	outbox := NewOutbox()
	require.NoError(t, outbox.InsertRoot(7, tree.Root()))

	require.NoError(t, outbox.Consume(msg.Hash(), 7, first, firstPath))
	require.NoError(t, outbox.Consume(msg.Hash(), 7, second, secondPath),
		"a second burn with the same parameters occupies its own leaf and stays redeemable")
	require.ErrorIs(t, outbox.Consume(msg.Hash(), 7, second, secondPath), ErrAlreadyConsumed)
}

func TestOutboxRejectsBadProof(t *testing.T) {
	tree := merkle.NewTree()
	index := tree.Append(common.HexToHash("0x01"))
	path, err := tree.Witness(index)
	require.NoError(t, err)

	outbox := NewOutbox()
	require.NoError(t, outbox.InsertRoot(1, tree.Root()))

	err = outbox.Consume(common.HexToHash("0x02"), 1, index, path)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestOutboxUnknownBlock(t *testing.T) {
	outbox := NewOutbox()
	err := outbox.Consume(common.HexToHash("0x01"), 42, 0, nil)
	require.ErrorIs(t, err, ErrRootUnavailable)
}

func TestContentHashesAreDirectionSensitive(t *testing.T) {
	amount := big.NewInt(100)
	to := common.HexToHash("0xbeef")
	require.NotEqual(t, MintPublicContent(to, amount), MintPrivateContent(to, amount),
		"public and private mint contents must never collide")
}

func TestWithdrawContentBindsCallerRestriction(t *testing.T) {
	recipient := common.HexToAddress("0xabcd")
	amount := big.NewInt(9)
	open := WithdrawContent(recipient, amount, common.Address{})
	restricted := WithdrawContent(recipient, amount, common.HexToAddress("0x1234"))
	require.NotEqual(t, open, restricted)
}

func TestMessageHashBindsSecretHash(t *testing.T) {
	a := testMessage(1)
	b := testMessage(2)
	require.NotEqual(t, a.Hash(), b.Hash())
}
