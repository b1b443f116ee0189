// Package clients contains HTTP clients for external services the bridge
// depends on, currently the compliance attestation oracle.
package clients

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/config"
	"tokenbridge/internal/metrics"
)

// ErrAttestationUnavailable means the oracle could not be reached or returned
// a malformed response. Callers must treat this as a denial.
var ErrAttestationUnavailable = errors.New("attestation oracle unavailable")

// AttestationRequest asks the oracle to attest a single user action.
type AttestationRequest struct {
	CircuitID string `json:"circuitId"`
	ActionID  string `json:"actionId"` // hex-encoded 32-byte action digest
	User      string `json:"user"`     // hex L1 address
}

// AttestationResponse is the oracle's verdict. The wire field is named
// isUnique after the uniqueness check the verdict reports; approved actions
// carry a 65-byte ECDSA signature over the attestation digest.
type AttestationResponse struct {
	Approved  bool   `json:"isUnique"`
	Signature string `json:"signature,omitempty"` // hex, no 0x prefix
	CircuitID string `json:"circuitId"`
	Reason    string `json:"reason,omitempty"`
}

// AttestationOracleClient talks to the attestation oracle over HTTP.
type AttestationOracleClient struct {
	baseURL    string
	circuitID  common.Hash
	httpClient *http.Client
	maxRetries int
	logger     *logrus.Logger
}

// NewAttestationOracleClient builds a client from the app configuration.
func NewAttestationOracleClient(logger *logrus.Logger) *AttestationOracleClient {
	cfg := config.AppConfig.Oracle
	timeout := 10 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &AttestationOracleClient{
		baseURL:    cfg.BaseURL,
		circuitID:  common.HexToHash(config.AppConfig.Bridge.CircuitID),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		logger:     logger,
	}
}

// RequestAttestation asks the oracle to sign off on (actionID, user).
// Returns the raw signature bytes on approval, ErrAttestationUnavailable on
// transport or protocol failures, and a nil error with approved=false when
// the oracle explicitly denies.
func (c *AttestationOracleClient) RequestAttestation(ctx context.Context, actionID common.Hash, user common.Address) (sig []byte, approved bool, err error) {
	req := AttestationRequest{
		CircuitID: c.circuitID.Hex(),
		ActionID:  actionID.Hex(),
		User:      user.Hex(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal attestation request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.doRequest(ctx, body)
		if err != nil {
			lastErr = err
			c.logger.WithError(err).WithField("attempt", attempt+1).Warn("attestation oracle request failed")
			metrics.OracleRequestsFailed.Inc()
			continue
		}

		if !resp.Approved {
			c.logger.WithFields(logrus.Fields{
				"user":   user.Hex(),
				"reason": resp.Reason,
			}).Info("attestation denied by oracle")
			return nil, false, nil
		}

		sigBytes, err := hex.DecodeString(resp.Signature)
		if err != nil || len(sigBytes) != 65 {
			lastErr = fmt.Errorf("oracle returned malformed signature")
			metrics.OracleRequestsFailed.Inc()
			continue
		}
		return sigBytes, true, nil
	}

	return nil, false, fmt.Errorf("%w: %v", ErrAttestationUnavailable, lastErr)
}

func (c *AttestationOracleClient) doRequest(ctx context.Context, body []byte) (*AttestationResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/attest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp AttestationResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse oracle response: %w", err)
	}
	return &resp, nil
}
