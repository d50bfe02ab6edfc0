package merchant

import (
	"net/http"
	"strings"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ChannelCallback 接收渠道异步回调并驱动支付单状态流转。
// 验签、解析交给对应渠道的适配器，响应体沿用渠道约定的 SUCCESS/FAIL 文本。
func (h *Handler) ChannelCallback(c *gin.Context) {
	channelCode := strings.TrimSpace(c.Param("channel_code"))
	requestLog(c).Infow("channel_callback_received",
		"channel_code", channelCode,
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)

	channel, err := h.ChannelService.GetByCode(channelCode)
	if err != nil {
		requestLog(c).Warnw("channel_callback_channel_not_found",
			"channel_code", channelCode,
			"error", err,
		)
		c.String(http.StatusNotFound, constants.CallbackResultFail)
		return
	}
	adapter, err := h.GatewayRegistry.Get(channel.ChannelType)
	if err != nil {
		requestLog(c).Warnw("channel_callback_adapter_missing",
			"channel_code", channelCode,
			"channel_type", channel.ChannelType,
		)
		c.String(http.StatusBadRequest, constants.CallbackResultFail)
		return
	}

	result, err := adapter.ParseCallback(c.Request.Context(), channel, c.Request)
	if err != nil {
		requestLog(c).Warnw("channel_callback_parse_failed",
			"channel_code", channelCode,
			"error", err,
		)
		c.String(http.StatusBadRequest, constants.CallbackResultFail)
		return
	}
	if strings.TrimSpace(result.TradeNo) == "" {
		requestLog(c).Warnw("channel_callback_trade_no_missing", "channel_code", channelCode)
		c.String(http.StatusBadRequest, constants.CallbackResultFail)
		return
	}

	if _, err := h.PaymentService.ReportChannelCallback(result.TradeNo, service.ChannelCallbackInput{
		Success:        result.Success,
		ChannelTradeNo: result.ChannelTradeNo,
		FailReason:     result.FailReason,
		Payload:        result.Payload,
	}); err != nil {
		requestLog(c).Errorw("channel_callback_apply_failed",
			"channel_code", channelCode,
			"trade_no", result.TradeNo,
			"error", err,
		)
		c.String(http.StatusBadRequest, constants.CallbackResultFail)
		return
	}

	c.String(http.StatusOK, constants.CallbackResultSuccess)
}
