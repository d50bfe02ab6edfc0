package shared

import (
	"strings"

	"github.com/autopay-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// MerchantID 从请求头读取商户标识，缺失时返回错误响应。
func MerchantID(c *gin.Context) (string, bool) {
	merchantID := strings.TrimSpace(c.GetHeader("X-Merchant-Id"))
	if merchantID == "" {
		RespondError(c, response.CodeUnauthorized, "缺少商户标识", nil)
		return "", false
	}
	return merchantID, true
}
