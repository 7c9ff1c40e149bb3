package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mun_dashboard/internal/service"
	"mun_dashboard/internal/utils"
)

const (
	identityKey    = "identity"
	DeviceIDHeader = "X-Device-ID"
)

// Identity 決定請求者身分：
// 有 Bearer token 時必須有效 (登入使用者)，否則使用 X-Device-ID (僅本機儲存)。
// 兩者都沒有時回傳 401。
func Identity(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			// 檢查 Authorization 頭的格式
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
				return
			}

			claims, err := utils.ParseToken(parts[1], secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Set(identityKey, service.Identity{UserID: claims.Subject})
			c.Next()
			return
		}

		deviceID := strings.TrimSpace(c.GetHeader(DeviceIDHeader))
		if deviceID == "" {
			deviceID = strings.TrimSpace(c.Query("device_id"))
		}
		if deviceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要 Bearer token 或 " + DeviceIDHeader})
			return
		}
		c.Set(identityKey, service.Identity{DeviceID: deviceID})
		c.Next()
	}
}

// GetIdentity 取得 Identity middleware 設定的身分
func GetIdentity(c *gin.Context) (service.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return service.Identity{}, false
	}
	id, ok := v.(service.Identity)
	return id, ok
}
