package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"

	"tokenbridge/internal/config"
)

// AdminAuthMiddleware gates admin routes behind a TOTP code carried in the
// X-TOTP-Code header. The shared secret comes from configuration; if none is
// set the admin surface is disabled entirely.
type AdminAuthMiddleware struct {
	logger *logrus.Logger
}

func NewAdminAuthMiddleware(logger *logrus.Logger) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger: logger,
	}
}

// RequireAdminAuth validates the TOTP code.
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := ""
		if config.AppConfig != nil {
			secret = config.AppConfig.Admin.TOTPSecret
		}
		if secret == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Admin access is not configured",
				"code":    "ADMIN_DISABLED",
			})
			c.Abort()
			return
		}

		code := c.GetHeader("X-TOTP-Code")
		if code == "" {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("admin auth failed - missing TOTP code")

			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "TOTP code required",
				"code":    "MISSING_TOTP_CODE",
			})
			c.Abort()
			return
		}

		if !totp.Validate(code, secret) {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("admin auth failed - invalid TOTP code")

			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Invalid TOTP code",
				"code":    "INVALID_TOTP_CODE",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
