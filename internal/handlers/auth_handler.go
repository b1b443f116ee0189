// Package handlers contains the gin HTTP handlers for the bridge API, the
// devnet attestation oracle, and authentication.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/config"
)

// JWTClaims carries the authenticated L1 address.
type JWTClaims struct {
	UserAddress string `json:"user_address"`
	jwt.RegisteredClaims
}

func jwtSecret() []byte {
	if config.AppConfig != nil && config.AppConfig.Auth.JWTSecret != "" {
		return []byte(config.AppConfig.Auth.JWTSecret)
	}
	return nil
}

func tokenExpiry() time.Duration {
	if config.AppConfig != nil && config.AppConfig.Auth.TokenExpiry > 0 {
		return time.Duration(config.AppConfig.Auth.TokenExpiry) * time.Hour
	}
	return 24 * time.Hour
}

// GenerateJWTToken issues a signed token for the given L1 address.
func GenerateJWTToken(userAddress string) (string, error) {
	secret := jwtSecret()
	if secret == nil {
		return "", fmt.Errorf("JWT secret is not configured")
	}

	now := time.Now()
	claims := JWTClaims{
		UserAddress: userAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userAddress,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry())),
			Issuer:    "tokenbridge",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateJWTToken parses and verifies a token issued by GenerateJWTToken.
func ValidateJWTToken(tokenString string) (*JWTClaims, error) {
	secret := jwtSecret()
	if secret == nil {
		return nil, fmt.Errorf("JWT secret is not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token claims")
}

// AuthHandler issues devnet API tokens. There is no account system: any
// well-formed L1 address gets a token.
type AuthHandler struct {
	logger *logrus.Logger
}

func NewAuthHandler(logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{logger: logger}
}

type tokenRequest struct {
	Address string `json:"address" binding:"required"`
}

// IssueToken handles POST /api/v1/auth/token.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "address is required",
		})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "address must be a hex L1 address",
		})
		return
	}

	token, err := GenerateJWTToken(common.HexToAddress(req.Address).Hex())
	if err != nil {
		h.logger.WithError(err).Error("failed to issue token")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to issue token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
	})
}
