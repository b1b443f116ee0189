package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/services"
)

// FlowHandler exposes the bridge flow orchestrator over HTTP.
type FlowHandler struct {
	service *services.BridgeFlowService
	push    *services.FlowPushService
	logger  *logrus.Logger
}

func NewFlowHandler(service *services.BridgeFlowService, push *services.FlowPushService, logger *logrus.Logger) *FlowHandler {
	return &FlowHandler{service: service, push: push, logger: logger}
}

type startFlowRequest struct {
	Depositor      string `json:"depositor" binding:"required"`
	L2Owner        string `json:"l2_owner" binding:"required"`
	L1Recipient    string `json:"l1_recipient" binding:"required"`
	InitialBalance string `json:"initial_balance"`
	DepositAmount  string `json:"deposit_amount" binding:"required"`
	WithdrawAmount string `json:"withdraw_amount" binding:"required"`
	WithCaller     bool   `json:"with_caller"`
}

func (r *startFlowRequest) toFlowRequest() (services.FlowRequest, error) {
	if !common.IsHexAddress(r.Depositor) {
		return services.FlowRequest{}, errors.New("depositor must be a hex L1 address")
	}
	if !common.IsHexAddress(r.L1Recipient) {
		return services.FlowRequest{}, errors.New("l1_recipient must be a hex L1 address")
	}
	deposit, ok := new(big.Int).SetString(r.DepositAmount, 10)
	if !ok {
		return services.FlowRequest{}, errors.New("deposit_amount must be a decimal integer")
	}
	withdraw, ok := new(big.Int).SetString(r.WithdrawAmount, 10)
	if !ok {
		return services.FlowRequest{}, errors.New("withdraw_amount must be a decimal integer")
	}
	var initial *big.Int
	if r.InitialBalance != "" {
		if initial, ok = new(big.Int).SetString(r.InitialBalance, 10); !ok {
			return services.FlowRequest{}, errors.New("initial_balance must be a decimal integer")
		}
	}
	return services.FlowRequest{
		Depositor:      common.HexToAddress(r.Depositor),
		L2Owner:        common.HexToHash(r.L2Owner),
		L1Recipient:    common.HexToAddress(r.L1Recipient),
		InitialBalance: initial,
		DepositAmount:  deposit,
		WithdrawAmount: withdraw,
		WithCaller:     r.WithCaller,
	}, nil
}

// StartPublicFlow handles POST /api/v1/flows/public.
func (h *FlowHandler) StartPublicFlow(c *gin.Context) {
	h.startFlow(c, h.service.StartPublicFlow)
}

// StartPrivateFlow handles POST /api/v1/flows/private.
func (h *FlowHandler) StartPrivateFlow(c *gin.Context) {
	h.startFlow(c, h.service.StartPrivateFlow)
}

func (h *FlowHandler) startFlow(c *gin.Context, start func(ctx context.Context, req services.FlowRequest) (string, error)) {
	var req startFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	flowReq, err := req.toFlowRequest()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	id, err := start(c.Request.Context(), flowReq)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"flow_id": id,
	})
}

// GetFlow handles GET /api/v1/flows/:id.
func (h *FlowHandler) GetFlow(c *gin.Context) {
	flow, err := h.service.GetFlow(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "flow not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "flow": flow})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Devnet API: cross-origin dashboards are expected.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SubscribeFlows handles GET /api/v1/ws/flows by upgrading to a WebSocket
// that streams flow transitions.
func (h *FlowHandler) SubscribeFlows(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	h.push.Register(conn)

	// Consume control frames until the client hangs up.
	go func() {
		defer h.push.Unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
