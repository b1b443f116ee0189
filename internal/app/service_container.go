// Package app assembles the devnet deployment: both layers' in-process
// contracts, the orchestrator, and every ambient service.
package app

import (
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/attestation"
	"tokenbridge/internal/clients"
	"tokenbridge/internal/config"
	"tokenbridge/internal/db"
	"tokenbridge/internal/events"
	"tokenbridge/internal/handlers"
	"tokenbridge/internal/messaging"
	"tokenbridge/internal/portal"
	"tokenbridge/internal/repository"
	"tokenbridge/internal/rollup"
	"tokenbridge/internal/services"
	"tokenbridge/internal/token"
)

// ServiceContainer holds the wired devnet.
type ServiceContainer struct {
	Logger *logrus.Logger

	// L1 side
	Asset  *token.Ledger
	Portal *portal.TokenPortal
	Inbox  *messaging.Inbox
	Outbox *messaging.Outbox

	// L2 side
	Node     *rollup.Node
	L2Token  *rollup.Token
	Bridge   *rollup.Bridge
	AuthWits *rollup.AuthWitnessRegistry

	// Attestation
	Attester *attestation.Attester // devnet-local signer, nil when an external oracle is used

	// Services
	FlowRepo    repository.BridgeFlowRepository
	Events      *events.Publisher
	PushService *services.FlowPushService
	FlowService *services.BridgeFlowService

	// Handlers
	AuthHandler   *handlers.AuthHandler
	FlowHandler   *handlers.FlowHandler
	BridgeHandler *handlers.BridgeHandler
	HealthHandler *handlers.HealthHandler
}

var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container exactly once.
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})

		container := &ServiceContainer{Logger: logger}
		if err := container.init(); err != nil {
			initErr = err
			return
		}
		Container = container
		logger.Info("service container initialized")
	})

	return Container, initErr
}

func (c *ServiceContainer) init() error {
	cfg := config.AppConfig
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	// Persistence (optional).
	c.FlowRepo = repository.NoopFlowRepository{}
	if db.DB != nil {
		c.FlowRepo = repository.NewBridgeFlowRepository(db.DB)
	}

	// Attestation trust root. With no external oracle the devnet signs its
	// own attestations, so the trusted attester is the local key.
	circuitID := common.HexToHash(cfg.Bridge.CircuitID)
	var oracle services.AttestationSource
	var trustedAttester common.Address
	if cfg.Oracle.BaseURL != "" {
		oracle = clients.NewAttestationOracleClient(c.Logger)
		trustedAttester = common.HexToAddress(cfg.Bridge.Attester)
	} else {
		key, err := loadOrGenerateKey(cfg.Oracle.SignerKey)
		if err != nil {
			return fmt.Errorf("failed to load oracle signer key: %w", err)
		}
		c.Attester = attestation.NewAttester(key, circuitID)
		oracle = services.NewLocalAttestationSource(c.Attester)
		trustedAttester = c.Attester.Address()
	}

	// L1 deployment.
	c.Asset = token.NewLedger(cfg.Bridge.AssetSymbol)
	c.Inbox = messaging.NewInbox()
	c.Outbox = messaging.NewOutbox()
	registry := portal.NewRegistry(c.Inbox, c.Outbox, cfg.Bridge.RollupVersion)
	c.Portal = portal.NewTokenPortal(common.HexToAddress(cfg.Bridge.PortalAddress), cfg.Bridge.L1ChainID)

	// L2 deployment.
	c.Node = rollup.NewNode(c.Inbox, c.Outbox, cfg.Bridge.RollupVersion)
	c.AuthWits = rollup.NewAuthWitnessRegistry()
	c.L2Token = rollup.NewToken(c.AuthWits)
	c.Bridge = rollup.NewBridge(
		c.Node, c.L2Token,
		messaging.L1Actor{Address: c.Portal.Address(), ChainID: cfg.Bridge.L1ChainID},
		common.HexToHash(cfg.Bridge.L2BridgeAddress),
	)

	if err := c.Portal.Initialize(registry, c.Asset, c.Bridge.Actor(), trustedAttester, circuitID); err != nil {
		return fmt.Errorf("failed to initialize portal: %w", err)
	}

	// Eventing (optional).
	publisher, err := events.NewPublisher(c.Logger)
	if err != nil {
		c.Logger.WithError(err).Warn("event publishing disabled")
	}
	c.Events = publisher
	c.PushService = services.NewFlowPushService(c.Logger)

	c.FlowService = services.NewBridgeFlowService(
		c.Asset, c.Portal, c.Bridge, c.Node, c.L2Token, c.AuthWits,
		oracle, c.FlowRepo, c.Events, c.PushService,
		&cfg.Orchestrator, c.Logger,
	)

	c.AuthHandler = handlers.NewAuthHandler(c.Logger)
	c.FlowHandler = handlers.NewFlowHandler(c.FlowService, c.PushService, c.Logger)
	c.BridgeHandler = handlers.NewBridgeHandler(c.Asset, c.L2Token, c.Node)
	c.HealthHandler = handlers.NewHealthHandler()

	return nil
}

// Start begins L2 block production.
func (c *ServiceContainer) Start() {
	c.Node.Start(config.AppConfig.Bridge.BlockProduction())
	c.Logger.WithField("interval", config.AppConfig.Bridge.BlockProduction()).Info("L2 block production started")
}

// Shutdown stops block production and closes external connections.
func (c *ServiceContainer) Shutdown() {
	c.Node.Stop()
	c.Events.Close()
	c.Logger.Info("service container shut down")
}

func loadOrGenerateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey != "" {
		return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	}
	return crypto.GenerateKey()
}
