package services

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tokenbridge/internal/attestation"
	"tokenbridge/internal/config"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/models"
	"tokenbridge/internal/portal"
	"tokenbridge/internal/repository"
	"tokenbridge/internal/rollup"
	"tokenbridge/internal/token"
	"tokenbridge/internal/utils"
)

type devnet struct {
	asset    *token.Ledger
	portal   *portal.TokenPortal
	node     *rollup.Node
	l2Token  *rollup.Token
	bridge   *rollup.Bridge
	auth     *rollup.AuthWitnessRegistry
	attester *attestation.Attester
	service  *BridgeFlowService
}

var (
	depositor   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	l1Recipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	l2Owner     = common.HexToHash("0x33")
	portalAddr  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	bridgeAddr  = common.HexToHash("0x55")
)

func newDevnet(t *testing.T, produceBlocks bool) *devnet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	circuitID := common.HexToHash("0x01")
	attester := attestation.NewAttester(key, circuitID)

	asset := token.NewLedger("TST")
	inbox := messaging.NewInbox()
	outbox := messaging.NewOutbox()
	registry := portal.NewRegistry(inbox, outbox, 1)

	p := portal.NewTokenPortal(portalAddr, 31337)
	node := rollup.NewNode(inbox, outbox, 1)
	auth := rollup.NewAuthWitnessRegistry()
	l2Token := rollup.NewToken(auth)
	bridge := rollup.NewBridge(node, l2Token, messaging.L1Actor{Address: portalAddr, ChainID: 31337}, bridgeAddr)
	require.NoError(t, p.Initialize(registry, asset, bridge.Actor(), attester.Address(), circuitID))

	if produceBlocks {
		node.Start(5 * time.Millisecond)
		t.Cleanup(node.Stop)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := &config.OrchestratorConfig{
		ConsumabilityTimeout: 5,
		ExitTimeout:          5,
		PollInterval:         5,
	}

	service := NewBridgeFlowService(
		asset, p, bridge, node, l2Token, auth,
		NewLocalAttestationSource(attester),
		repository.NoopFlowRepository{},
		nil, nil, cfg, logger,
	)

	return &devnet{
		asset:    asset,
		portal:   p,
		node:     node,
		l2Token:  l2Token,
		bridge:   bridge,
		auth:     auth,
		attester: attester,
		service:  service,
	}
}

func defaultRequest() FlowRequest {
	return FlowRequest{
		Depositor:      depositor,
		L2Owner:        l2Owner,
		L1Recipient:    l1Recipient,
		InitialBalance: big.NewInt(1_000_000),
		DepositAmount:  big.NewInt(100),
		WithdrawAmount: big.NewInt(9),
	}
}

func TestPublicFlowRoundTrip(t *testing.T) {
	net := newDevnet(t, true)

	flow, err := net.service.RunPublicFlow(context.Background(), defaultRequest())
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, flow.Status)
	require.NotNil(t, flow.CompletedAt)

	require.Equal(t, "999900", net.asset.BalanceOf(depositor).String())
	require.Equal(t, "9", net.asset.BalanceOf(l1Recipient).String())
	require.Equal(t, "91", net.asset.BalanceOf(portalAddr).String())
	require.Equal(t, "91", net.l2Token.BalancePublic(l2Owner).String())
}

func TestPrivateFlowRoundTrip(t *testing.T) {
	net := newDevnet(t, true)

	flow, err := net.service.RunPrivateFlow(context.Background(), defaultRequest())
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, flow.Status)

	require.Equal(t, "999900", net.asset.BalanceOf(depositor).String())
	require.Equal(t, "9", net.asset.BalanceOf(l1Recipient).String())
	require.Equal(t, "91", net.asset.BalanceOf(portalAddr).String())
	require.Equal(t, "91", net.l2Token.BalancePrivate(l2Owner).String())
	require.Equal(t, "0", net.l2Token.BalancePublic(l2Owner).String())
}

func TestCallerRestrictedFlow(t *testing.T) {
	net := newDevnet(t, true)

	req := defaultRequest()
	req.WithCaller = true
	flow, err := net.service.RunPublicFlow(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, flow.Status)
	require.Equal(t, "9", net.asset.BalanceOf(l1Recipient).String())
}

func TestWithdrawReplayRejected(t *testing.T) {
	net := newDevnet(t, true)

	flow, err := net.service.RunPublicFlow(context.Background(), defaultRequest())
	require.NoError(t, err)

	exitHash := common.HexToHash(flow.ExitMessageHash)
	witnesses := net.node.FindL2ToL1Messages(exitHash)
	require.Len(t, witnesses, 1)
	w := witnesses[0]

	action := utils.Sha256ToField([]byte("replay"))
	sig, err := net.attester.Attest(action, depositor)
	require.NoError(t, err)

	err = net.portal.Withdraw(depositor, l1Recipient, big.NewInt(9), false, w.L2Block, w.LeafIndex, w.Path, action, sig)
	require.ErrorIs(t, err, messaging.ErrAlreadyConsumed)
	require.Equal(t, "9", net.asset.BalanceOf(l1Recipient).String())
}

func TestRepeatedFlowsWithIdenticalAmountsBothComplete(t *testing.T) {
	net := newDevnet(t, true)

	// Two flows with the same depositor, recipient and amounts emit
	// byte-identical exit messages. Each withdrawal must still finalize
	// against its own leaf.
	req := defaultRequest()
	first, err := net.service.RunPublicFlow(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, first.Status)

	req.InitialBalance = nil // already funded
	second, err := net.service.RunPublicFlow(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, second.Status)

	require.Equal(t, first.ExitMessageHash, second.ExitMessageHash)
	require.Equal(t, "18", net.asset.BalanceOf(l1Recipient).String())
	require.Equal(t, "182", net.asset.BalanceOf(portalAddr).String())
}

// recordingRepository captures deposit and withdrawal records in memory.
type recordingRepository struct {
	repository.NoopFlowRepository
	deposits    []models.DepositRecord
	withdrawals []models.WithdrawRecord
}

func (r *recordingRepository) RecordDeposit(record *models.DepositRecord) error {
	r.deposits = append(r.deposits, *record)
	return nil
}

func (r *recordingRepository) RecordWithdrawal(record *models.WithdrawRecord) error {
	r.withdrawals = append(r.withdrawals, *record)
	return nil
}

func TestFlowRecordsCarryProofMaterial(t *testing.T) {
	net := newDevnet(t, true)
	repo := &recordingRepository{}
	net.service.repo = repo

	flow, err := net.service.RunPublicFlow(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, repo.deposits, 1)
	require.NotEmpty(t, repo.deposits[0].SecretHash)
	require.NotEqual(t, common.Hash{}.Hex(), repo.deposits[0].SecretHash)
	require.Equal(t, flow.ID, repo.deposits[0].FlowID)

	require.Len(t, repo.withdrawals, 1)
	require.Equal(t, flow.ExitMessageHash, repo.withdrawals[0].ExitMessageHash)
	require.Equal(t, flow.ExitL2Block, repo.withdrawals[0].L2Block)

	// The leaf index must identify the consumed slot: the same witness
	// replayed against the portal is already spent.
	w := repo.withdrawals[0]
	witnesses := net.node.FindL2ToL1Messages(common.HexToHash(w.ExitMessageHash))
	require.Len(t, witnesses, 1)
	require.Equal(t, witnesses[0].LeafIndex, w.LeafIndex)
}

func TestConsumabilityTimeout(t *testing.T) {
	// No block production: the deposit message never becomes consumable.
	net := newDevnet(t, false)

	req := defaultRequest()
	flow, err := net.service.RunPublicFlow(context.Background(), req)
	require.ErrorIs(t, err, ErrConsumabilityTimeout)
	require.Equal(t, models.FlowStatusFailed, flow.Status)

	// No compensation: the escrow stays with the portal.
	require.Equal(t, "100", net.asset.BalanceOf(portalAddr).String())
	require.Equal(t, "999900", net.asset.BalanceOf(depositor).String())
}

type denyingAttestationSource struct{}

func (denyingAttestationSource) RequestAttestation(context.Context, common.Hash, common.Address) ([]byte, bool, error) {
	return nil, false, nil
}

func TestDeniedAttestationStopsFlowBeforeEscrow(t *testing.T) {
	net := newDevnet(t, true)
	net.service.oracle = denyingAttestationSource{}

	flow, err := net.service.RunPublicFlow(context.Background(), defaultRequest())
	require.ErrorIs(t, err, portal.ErrAttestationDenied)
	require.Equal(t, models.FlowStatusFailed, flow.Status)
	require.Equal(t, "1000000", net.asset.BalanceOf(depositor).String())
	require.Equal(t, "0", net.asset.BalanceOf(portalAddr).String())
}

func TestFlowRequestValidation(t *testing.T) {
	net := newDevnet(t, false)

	req := defaultRequest()
	req.WithdrawAmount = big.NewInt(101)
	_, err := net.service.RunPublicFlow(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidFlowRequest)

	req = defaultRequest()
	req.DepositAmount = big.NewInt(0)
	_, err = net.service.RunPublicFlow(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidFlowRequest)
}

func TestGetFlowTracksTransitions(t *testing.T) {
	net := newDevnet(t, true)

	flow, err := net.service.RunPublicFlow(context.Background(), defaultRequest())
	require.NoError(t, err)

	got, err := net.service.GetFlow(flow.ID)
	require.NoError(t, err)
	require.Equal(t, models.FlowStatusWithdrawn, got.Status)

	_, err = net.service.GetFlow("missing")
	require.ErrorIs(t, err, ErrFlowNotFound)
}
