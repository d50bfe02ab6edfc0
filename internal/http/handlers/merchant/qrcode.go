package merchant

import (
	"net/http"
	"strings"

	"github.com/autopay-next/internal/http/response"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

// PaymentQRCode 将支付凭证中的二维码内容渲染为 PNG。
func (h *Handler) PaymentQRCode(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}

	content := ""
	if order.Credential != nil {
		if v, ok := order.Credential["qr_content"].(string); ok {
			content = strings.TrimSpace(v)
		}
	}
	if content == "" {
		respondError(c, response.CodeNotFound, "支付单没有可用的二维码凭证", nil)
		return
	}

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		respondError(c, response.CodeInternal, "二维码生成失败", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
