package handlers

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"tokenbridge/internal/rollup"
	"tokenbridge/internal/token"
)

// BridgeHandler exposes read-only devnet state and admin chain controls.
type BridgeHandler struct {
	asset   *token.Ledger
	l2Token *rollup.Token
	node    *rollup.Node
}

func NewBridgeHandler(asset *token.Ledger, l2Token *rollup.Token, node *rollup.Node) *BridgeHandler {
	return &BridgeHandler{asset: asset, l2Token: l2Token, node: node}
}

// GetL1Balance handles GET /api/v1/balances/l1/:address.
func (h *BridgeHandler) GetL1Balance(c *gin.Context) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid L1 address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"address": common.HexToAddress(addr).Hex(),
		"balance": h.asset.BalanceOf(common.HexToAddress(addr)).String(),
		"symbol":  h.asset.Symbol(),
	})
}

// GetL2Balance handles GET /api/v1/balances/l2/:account.
func (h *BridgeHandler) GetL2Balance(c *gin.Context) {
	account := common.HexToHash(c.Param("account"))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"account": account.Hex(),
		"public":  h.l2Token.BalancePublic(account).String(),
		"private": h.l2Token.BalancePrivate(account).String(),
	})
}

// GetChainStatus handles GET /api/v1/chain/status.
func (h *BridgeHandler) GetChainStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"l2_block_number": h.node.BlockNumber(),
		"total_supply_l2": h.l2Token.TotalSupply().String(),
	})
}

// ProduceBlock handles POST /api/v1/admin/chain/produce-block. Admin only:
// forces an L2 block outside the regular production interval.
func (h *BridgeHandler) ProduceBlock(c *gin.Context) {
	block, err := h.node.ProduceBlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "block": block})
}
