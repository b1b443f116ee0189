// The attestation oracle signs compliance approvals for bridge operations.
// It runs separately from the bridge service so the signing key never lives
// in the same process as user-facing APIs.
package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/attestation"
	"tokenbridge/internal/config"
	"tokenbridge/internal/handlers"
	"tokenbridge/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	port := flag.Int("port", 8090, "listen port")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	signerKey := config.AppConfig.Oracle.SignerKey
	if signerKey == "" {
		logger.Fatal("oracle.signerKey (or ORACLE_SIGNER_KEY) is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKey, "0x"))
	if err != nil {
		logger.Fatalf("Invalid signer key: %v", err)
	}

	circuitID := common.HexToHash(config.AppConfig.Bridge.CircuitID)
	attester := attestation.NewAttester(key, circuitID)
	logger.WithFields(logrus.Fields{
		"attester":   attester.Address().Hex(),
		"circuit_id": circuitID.Hex(),
	}).Info("attestation oracle starting")

	handler := handlers.NewAttestationHandler(attester, logger)
	r := router.SetupOracleRouter(logger, handler)

	addr := fmt.Sprintf(":%d", *port)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}
