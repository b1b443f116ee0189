// Package services holds the bridge orchestration layer: the flow service
// drives a deposit through claim, burn and withdrawal across both layers,
// persisting and publishing every transition.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/config"
	"tokenbridge/internal/events"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/metrics"
	"tokenbridge/internal/models"
	"tokenbridge/internal/portal"
	"tokenbridge/internal/repository"
	"tokenbridge/internal/rollup"
	"tokenbridge/internal/token"
	"tokenbridge/internal/utils"
)

var (
	ErrConsumabilityTimeout = errors.New("services: timed out waiting for message consumability")
	ErrExitTimeout          = errors.New("services: timed out waiting for L2-to-L1 message availability")
	ErrFlowNotFound         = errors.New("services: flow not found")
	ErrInvalidFlowRequest   = errors.New("services: invalid flow request")
)

// AttestationSource produces compliance attestations for user actions. The
// production implementation is the HTTP oracle client; the devnet falls back
// to a local signer.
type AttestationSource interface {
	RequestAttestation(ctx context.Context, actionID common.Hash, user common.Address) (sig []byte, approved bool, err error)
}

// FlowRequest describes one end-to-end bridge flow. The same shape serves
// both variants; for private flows L2Owner is the account the redeemed notes
// are credited to.
type FlowRequest struct {
	Depositor      common.Address
	L2Owner        common.Hash
	L1Recipient    common.Address
	InitialBalance *big.Int // optional devnet faucet mint before the deposit
	DepositAmount  *big.Int
	WithdrawAmount *big.Int
	WithCaller     bool // restrict L1 finalization to the recipient
}

func (r *FlowRequest) validate() error {
	if r.DepositAmount == nil || r.DepositAmount.Sign() <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", ErrInvalidFlowRequest)
	}
	if r.WithdrawAmount == nil || r.WithdrawAmount.Sign() <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrInvalidFlowRequest)
	}
	if r.WithdrawAmount.Cmp(r.DepositAmount) > 0 {
		return fmt.Errorf("%w: withdraw amount exceeds deposit amount", ErrInvalidFlowRequest)
	}
	return nil
}

// BridgeFlowService orchestrates flows against the devnet deployment. It is
// a pure client of the two layers: every step goes through the same portal,
// bridge and node entry points an external user would call.
type BridgeFlowService struct {
	asset   *token.Ledger
	portal  *portal.TokenPortal
	bridge  *rollup.Bridge
	node    *rollup.Node
	l2Token *rollup.Token
	auth    *rollup.AuthWitnessRegistry

	oracle AttestationSource
	repo   repository.BridgeFlowRepository
	events *events.Publisher
	push   *FlowPushService
	cfg    *config.OrchestratorConfig
	logger *logrus.Logger

	mu    sync.Mutex
	flows map[string]*models.BridgeFlow
}

func NewBridgeFlowService(
	asset *token.Ledger,
	p *portal.TokenPortal,
	bridge *rollup.Bridge,
	node *rollup.Node,
	l2Token *rollup.Token,
	auth *rollup.AuthWitnessRegistry,
	oracle AttestationSource,
	repo repository.BridgeFlowRepository,
	publisher *events.Publisher,
	push *FlowPushService,
	cfg *config.OrchestratorConfig,
	logger *logrus.Logger,
) *BridgeFlowService {
	return &BridgeFlowService{
		asset:   asset,
		portal:  p,
		bridge:  bridge,
		node:    node,
		l2Token: l2Token,
		auth:    auth,
		oracle:  oracle,
		repo:    repo,
		events:  publisher,
		push:    push,
		cfg:     cfg,
		logger:  logger,
		flows:   make(map[string]*models.BridgeFlow),
	}
}

// GetFlow returns the in-memory flow state by id.
func (s *BridgeFlowService) GetFlow(id string) (*models.BridgeFlow, error) {
	s.mu.Lock()
	if flow, ok := s.flows[id]; ok {
		copied := *flow
		s.mu.Unlock()
		return &copied, nil
	}
	s.mu.Unlock()
	if flow, err := s.repo.GetByID(id); err == nil {
		return flow, nil
	}
	return nil, ErrFlowNotFound
}

// StartPublicFlow launches a public flow in the background and returns its id.
func (s *BridgeFlowService) StartPublicFlow(ctx context.Context, req FlowRequest) (string, error) {
	return s.start(ctx, models.FlowVariantPublic, req)
}

// StartPrivateFlow launches a private flow in the background and returns its id.
func (s *BridgeFlowService) StartPrivateFlow(ctx context.Context, req FlowRequest) (string, error) {
	return s.start(ctx, models.FlowVariantPrivate, req)
}

func (s *BridgeFlowService) start(ctx context.Context, variant models.FlowVariant, req FlowRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}
	flow := s.newFlow(variant, req)
	// The flow outlives the HTTP request that started it.
	ctx = context.WithoutCancel(ctx)
	go func() {
		if _, err := s.run(ctx, flow, req); err != nil {
			s.logger.WithError(err).WithField("flow_id", flow.ID).Warn("bridge flow failed")
		}
	}()
	return flow.ID, nil
}

// RunPublicFlow executes a public flow synchronously.
func (s *BridgeFlowService) RunPublicFlow(ctx context.Context, req FlowRequest) (*models.BridgeFlow, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, s.newFlow(models.FlowVariantPublic, req), req)
}

// RunPrivateFlow executes a private flow synchronously.
func (s *BridgeFlowService) RunPrivateFlow(ctx context.Context, req FlowRequest) (*models.BridgeFlow, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, s.newFlow(models.FlowVariantPrivate, req), req)
}

func (s *BridgeFlowService) newFlow(variant models.FlowVariant, req FlowRequest) *models.BridgeFlow {
	flow := &models.BridgeFlow{
		ID:             uuid.New().String(),
		Variant:        variant,
		Status:         models.FlowStatusMinted,
		Depositor:      req.Depositor.Hex(),
		L2Recipient:    req.L2Owner.Hex(),
		L1Recipient:    req.L1Recipient.Hex(),
		DepositAmount:  req.DepositAmount.String(),
		WithdrawAmount: req.WithdrawAmount.String(),
	}
	s.mu.Lock()
	s.flows[flow.ID] = flow
	s.mu.Unlock()
	if err := s.repo.Create(flow); err != nil {
		s.logger.WithError(err).Warn("failed to persist flow")
	}
	metrics.FlowsStarted.WithLabelValues(string(variant)).Inc()
	return flow
}

func (s *BridgeFlowService) run(ctx context.Context, flow *models.BridgeFlow, req FlowRequest) (*models.BridgeFlow, error) {
	started := time.Now()
	variant := string(flow.Variant)

	fail := func(stage string, err error) (*models.BridgeFlow, error) {
		s.mu.Lock()
		flow.Status = models.FlowStatusFailed
		flow.ErrorMsg = err.Error()
		s.mu.Unlock()
		if repoErr := s.repo.MarkFailed(flow.ID, err.Error()); repoErr != nil {
			s.logger.WithError(repoErr).Warn("failed to persist flow failure")
		}
		metrics.FlowsFailed.WithLabelValues(variant, stage).Inc()
		s.notify(flow, err.Error())
		return flow, err
	}

	// Devnet faucet: fund the depositor before escrowing.
	if req.InitialBalance != nil && req.InitialBalance.Sign() > 0 {
		if err := s.asset.Mint(req.Depositor, req.InitialBalance); err != nil {
			return fail("mint", err)
		}
	}
	s.notify(flow, "")

	if err := s.asset.Approve(req.Depositor, s.portal.Address(), req.DepositAmount); err != nil {
		return fail("approve", err)
	}

	// The claim secret gates consumption of the cross-layer message; private
	// flows carry a second secret gating note redemption.
	secret, err := randomSecret()
	if err != nil {
		return fail("deposit", err)
	}
	var noteSecret common.Hash
	if flow.Variant == models.FlowVariantPrivate {
		if noteSecret, err = randomSecret(); err != nil {
			return fail("deposit", err)
		}
	}

	depositAction := flowActionID(flow.ID, "deposit")
	sig, approved, err := s.oracle.RequestAttestation(ctx, depositAction, req.Depositor)
	if err != nil {
		metrics.DepositsDenied.WithLabelValues(variant, "oracle_unavailable").Inc()
		return fail("attestation", err)
	}
	if !approved {
		metrics.DepositsDenied.WithLabelValues(variant, "denied").Inc()
		return fail("attestation", portal.ErrAttestationDenied)
	}

	var key common.Hash
	secretHash := utils.ComputeSecretHash(secret)
	if flow.Variant == models.FlowVariantPublic {
		key, err = s.portal.DepositPublic(req.Depositor, req.L2Owner, req.DepositAmount, secretHash, depositAction, sig)
	} else {
		key, err = s.portal.DepositPrivate(req.Depositor, utils.ComputeSecretHash(noteSecret), req.DepositAmount, secretHash, depositAction, sig)
	}
	if err != nil {
		metrics.DepositsDenied.WithLabelValues(variant, "portal").Inc()
		return fail("deposit", err)
	}
	metrics.DepositsTotal.WithLabelValues(variant).Inc()
	s.transition(flow, models.FlowStatusEscrowed)

	s.mu.Lock()
	flow.MessageKey = key.Hex()
	s.mu.Unlock()
	if err := s.repo.RecordDeposit(&models.DepositRecord{
		FlowID:     flow.ID,
		Variant:    string(flow.Variant),
		Depositor:  flow.Depositor,
		Amount:     flow.DepositAmount,
		SecretHash: secretHash.Hex(),
		MessageKey: key.Hex(),
	}); err != nil {
		s.logger.WithError(err).Warn("failed to persist deposit record")
	}
	s.transition(flow, models.FlowStatusMessageSent)

	s.transition(flow, models.FlowStatusAwaitingConsumability)
	waitStart := time.Now()
	if err := s.waitFor(ctx, s.cfg.ConsumabilityWait(), ErrConsumabilityTimeout, func() bool {
		return s.node.IsL1ToL2MessageConsumable(key)
	}); err != nil {
		return fail("consumability", err)
	}
	metrics.ConsumabilityWait.Observe(time.Since(waitStart).Seconds())

	if flow.Variant == models.FlowVariantPublic {
		err = s.bridge.ClaimPublic(req.L2Owner, req.DepositAmount, secret)
	} else {
		err = s.bridge.ClaimPrivate(utils.ComputeSecretHash(noteSecret), req.DepositAmount, secret)
	}
	if err != nil {
		metrics.ClaimsFailed.WithLabelValues(variant).Inc()
		return fail("claim", err)
	}
	metrics.ClaimsTotal.WithLabelValues(variant).Inc()
	s.transition(flow, models.FlowStatusClaimedOnL2)

	if flow.Variant == models.FlowVariantPrivate {
		if err := s.l2Token.RedeemShield(req.L2Owner, req.DepositAmount, noteSecret); err != nil {
			return fail("redeem", err)
		}
		s.transition(flow, models.FlowStatusRedeemed)
	}

	callerOnL1 := common.Address{}
	if req.WithCaller {
		callerOnL1 = req.L1Recipient
	}

	nonce, err := randomSecret()
	if err != nil {
		return fail("burn", err)
	}
	if flow.Variant == models.FlowVariantPublic {
		action := rollup.BurnPublicAction(s.bridge.Address(), req.L2Owner, req.WithdrawAmount, nonce)
		s.auth.SetPublicAuthorization(req.L2Owner, action, true)
	} else {
		action := rollup.BurnPrivateAction(s.bridge.Address(), req.L2Owner, req.WithdrawAmount, nonce)
		s.auth.AddWitness(req.L2Owner, action)
	}
	s.transition(flow, models.FlowStatusAuthorizedBurn)

	burnBlock := s.node.BlockNumber()
	var exitMsg messaging.L2ToL1Message
	if flow.Variant == models.FlowVariantPublic {
		exitMsg, err = s.bridge.ExitToL1Public(req.L2Owner, req.L1Recipient, req.WithdrawAmount, callerOnL1, nonce)
	} else {
		exitMsg, err = s.bridge.ExitToL1Private(req.L2Owner, req.L1Recipient, req.WithdrawAmount, callerOnL1, nonce)
	}
	if err != nil {
		return fail("burn", err)
	}
	s.transition(flow, models.FlowStatusBurned)

	exitHash := exitMsg.Hash()
	var witnesses []rollup.ExitWitness
	if err := s.waitFor(ctx, s.cfg.ExitWait(), ErrExitTimeout, func() bool {
		// Earlier flows may have sealed identical messages; only leaves from
		// blocks after this flow's burn can be ours.
		witnesses = witnesses[:0]
		for _, w := range s.node.FindL2ToL1Messages(exitHash) {
			if w.L2Block > burnBlock {
				witnesses = append(witnesses, w)
			}
		}
		return len(witnesses) > 0
	}); err != nil {
		return fail("exit", err)
	}
	s.mu.Lock()
	flow.ExitMessageHash = exitHash.Hex()
	flow.ExitL2Block = witnesses[0].L2Block
	s.mu.Unlock()
	s.transition(flow, models.FlowStatusExitAvailable)

	withdrawCaller := req.Depositor
	if req.WithCaller {
		withdrawCaller = req.L1Recipient
	}
	withdrawAction := flowActionID(flow.ID, "withdraw")
	sig, approved, err = s.oracle.RequestAttestation(ctx, withdrawAction, withdrawCaller)
	if err != nil {
		metrics.WithdrawalsFailed.WithLabelValues("oracle_unavailable").Inc()
		return fail("attestation", err)
	}
	if !approved {
		metrics.WithdrawalsFailed.WithLabelValues("denied").Inc()
		return fail("attestation", portal.ErrAttestationDenied)
	}

	// Identical burns share a message hash but occupy distinct leaves; try
	// each witness until one slot is still unspent.
	var redeemed *rollup.ExitWitness
	for i := range witnesses {
		w := witnesses[i]
		err = s.portal.Withdraw(withdrawCaller, req.L1Recipient, req.WithdrawAmount, req.WithCaller, w.L2Block, w.LeafIndex, w.Path, withdrawAction, sig)
		if err == nil {
			redeemed = &w
			break
		}
		if !errors.Is(err, messaging.ErrAlreadyConsumed) {
			break
		}
	}
	if redeemed == nil {
		metrics.WithdrawalsFailed.WithLabelValues("portal").Inc()
		return fail("withdraw", err)
	}
	metrics.WithdrawalsTotal.Inc()
	if err := s.repo.RecordWithdrawal(&models.WithdrawRecord{
		FlowID:          flow.ID,
		Recipient:       flow.L1Recipient,
		Amount:          flow.WithdrawAmount,
		ExitMessageHash: exitHash.Hex(),
		L2Block:         redeemed.L2Block,
		LeafIndex:       redeemed.LeafIndex,
	}); err != nil {
		s.logger.WithError(err).Warn("failed to persist withdrawal record")
	}
	s.mu.Lock()
	flow.ExitL2Block = redeemed.L2Block
	s.mu.Unlock()
	s.transition(flow, models.FlowStatusWithdrawn)

	if err := s.repo.MarkCompleted(flow.ID); err != nil {
		s.logger.WithError(err).Warn("failed to persist flow completion")
	}
	metrics.FlowsCompleted.WithLabelValues(variant).Inc()
	metrics.FlowDuration.WithLabelValues(variant).Observe(time.Since(started).Seconds())
	now := time.Now()
	s.mu.Lock()
	flow.CompletedAt = &now
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"flow_id": flow.ID,
		"variant": variant,
	}).Info("bridge flow completed")
	return flow, nil
}

func (s *BridgeFlowService) transition(flow *models.BridgeFlow, status models.FlowStatus) {
	s.mu.Lock()
	flow.Status = status
	s.mu.Unlock()
	if err := s.repo.UpdateStatus(flow.ID, status); err != nil {
		s.logger.WithError(err).Warn("failed to persist flow status")
	}
	s.notify(flow, "")
}

func (s *BridgeFlowService) notify(flow *models.BridgeFlow, detail string) {
	event := events.FlowEvent{
		FlowID:  flow.ID,
		Variant: string(flow.Variant),
		Status:  string(flow.Status),
		Detail:  detail,
	}
	s.events.PublishFlowTransition(event)
	s.push.Broadcast(event)
}

// waitFor polls pred until it holds, the bound elapses, or ctx is cancelled.
// The two layers share no clock, so polling is the only coordination.
func (s *BridgeFlowService) waitFor(ctx context.Context, bound time.Duration, timeoutErr error, pred func() bool) error {
	if pred() {
		return nil
	}
	deadline := time.NewTimer(bound)
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.Poll())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return timeoutErr
		case <-ticker.C:
			if pred() {
				return nil
			}
		}
	}
}

// flowActionID derives a per-flow, per-stage action identifier for the
// attestation request.
func flowActionID(flowID, stage string) common.Hash {
	return utils.Sha256ToField([]byte(flowID), []byte(stage))
}

func randomSecret() (common.Hash, error) {
	var secret common.Hash
	if _, err := rand.Read(secret[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to generate secret: %w", err)
	}
	return secret, nil
}
