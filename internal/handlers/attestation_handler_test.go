package handlers

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tokenbridge/internal/attestation"
)

func newAttestationServer(t *testing.T) (*AttestationHandler, *attestation.Attester, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	attester := attestation.NewAttester(key, common.HexToHash("0x01"))

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	handler := NewAttestationHandler(attester, logger)

	r := gin.New()
	r.POST("/api/v1/attest", handler.Attest)
	return handler, attester, r
}

func postAttest(t *testing.T, r *gin.Engine, body map[string]string) map[string]interface{} {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attest", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAttestReturnsVerifiableSignature(t *testing.T) {
	_, attester, r := newAttestationServer(t)

	user := common.HexToAddress("0x1111111111111111111111111111111111111111")
	actionID := common.HexToHash("0x42")
	resp := postAttest(t, r, map[string]string{
		"circuitId": attester.CircuitID().Hex(),
		"actionId":  actionID.Hex(),
		"user":      user.Hex(),
	})

	// The envelope fields are fixed: isUnique, signature, circuitId.
	require.Equal(t, true, resp["isUnique"])
	require.NotContains(t, resp, "approved")
	require.Equal(t, attester.CircuitID().Hex(), resp["circuitId"])
	sig, err := hex.DecodeString(resp["signature"].(string))
	require.NoError(t, err)

	verifier := attestation.NewVerifier(attester.Address())
	require.True(t, verifier.Verify(attester.CircuitID(), actionID, user, sig))
}

func TestAttestDeniedUser(t *testing.T) {
	handler, attester, r := newAttestationServer(t)

	user := common.HexToAddress("0x2222222222222222222222222222222222222222")
	handler.Deny(user, true)

	resp := postAttest(t, r, map[string]string{
		"circuitId": attester.CircuitID().Hex(),
		"actionId":  common.HexToHash("0x42").Hex(),
		"user":      user.Hex(),
	})
	require.Equal(t, false, resp["isUnique"])
	require.NotEmpty(t, resp["reason"])

	handler.Deny(user, false)
	resp = postAttest(t, r, map[string]string{
		"circuitId": attester.CircuitID().Hex(),
		"actionId":  common.HexToHash("0x42").Hex(),
		"user":      user.Hex(),
	})
	require.Equal(t, true, resp["isUnique"])
}

func TestAttestWrongCircuit(t *testing.T) {
	_, _, r := newAttestationServer(t)

	resp := postAttest(t, r, map[string]string{
		"circuitId": common.HexToHash("0x99").Hex(),
		"actionId":  common.HexToHash("0x42").Hex(),
		"user":      common.HexToAddress("0x3333333333333333333333333333333333333333").Hex(),
	})
	require.Equal(t, false, resp["isUnique"])
}
