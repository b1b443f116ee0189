package handlers

import (
	"encoding/hex"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/attestation"
)

// AttestationHandler is the server side of the attestation oracle: it signs
// approvals for any user not on its denylist. Production deployments replace
// the denylist with a real compliance backend; the wire contract stays the
// same.
type AttestationHandler struct {
	attester *attestation.Attester
	logger   *logrus.Logger

	mu       sync.RWMutex
	denylist map[common.Address]bool
}

func NewAttestationHandler(attester *attestation.Attester, logger *logrus.Logger) *AttestationHandler {
	return &AttestationHandler{
		attester: attester,
		logger:   logger,
		denylist: make(map[common.Address]bool),
	}
}

// Deny adds or removes a user from the denylist.
func (h *AttestationHandler) Deny(user common.Address, denied bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if denied {
		h.denylist[user] = true
	} else {
		delete(h.denylist, user)
	}
}

type attestRequest struct {
	CircuitID string `json:"circuitId" binding:"required"`
	ActionID  string `json:"actionId" binding:"required"`
	User      string `json:"user" binding:"required"`
}

// Attest handles POST /api/v1/attest.
func (h *AttestationHandler) Attest(c *gin.Context) {
	var req attestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.User) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user must be a hex L1 address"})
		return
	}

	circuitID := common.HexToHash(req.CircuitID)
	if circuitID != h.attester.CircuitID() {
		// A signer only ever attests for its own circuit.
		c.JSON(http.StatusOK, gin.H{
			"isUnique":  false,
			"circuitId": h.attester.CircuitID().Hex(),
			"reason":    "unknown circuit",
		})
		return
	}

	user := common.HexToAddress(req.User)
	h.mu.RLock()
	denied := h.denylist[user]
	h.mu.RUnlock()
	if denied {
		h.logger.WithField("user", user.Hex()).Info("attestation denied")
		c.JSON(http.StatusOK, gin.H{
			"isUnique":  false,
			"circuitId": circuitID.Hex(),
			"reason":    "user denied by compliance policy",
		})
		return
	}

	sig, err := h.attester.Attest(common.HexToHash(req.ActionID), user)
	if err != nil {
		h.logger.WithError(err).Error("failed to sign attestation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign attestation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isUnique":  true,
		"signature": hex.EncodeToString(sig),
		"circuitId": circuitID.Hex(),
	})
}

// DenyUser handles POST /api/v1/admin/deny. Admin only.
func (h *AttestationHandler) DenyUser(c *gin.Context) {
	var req struct {
		User   string `json:"user" binding:"required"`
		Denied bool   `json:"denied"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.User) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user must be a hex L1 address"})
		return
	}
	h.Deny(common.HexToAddress(req.User), req.Denied)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
