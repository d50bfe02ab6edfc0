// Package simulated 提供走本地模拟链路的渠道适配器。
// 用于未接入真实渠道的类型（如银联、支付宝沙箱），提交即受理，
// 回调使用共享密钥 HMAC-SHA256 验签。
package simulated

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/autopay-next/internal/gateway"
	"github.com/autopay-next/internal/models"
)

// Adapter 模拟渠道适配器
type Adapter struct {
	channelType string
	gatewayURL  string
}

// New 创建模拟适配器，channelType 为其服务的渠道类型
func New(channelType, gatewayURL string) *Adapter {
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "https://sandbox.pay.example.com"
	}
	return &Adapter{
		channelType: strings.ToUpper(strings.TrimSpace(channelType)),
		gatewayURL:  strings.TrimRight(gatewayURL, "/"),
	}
}

// Name 适配器对应的渠道类型
func (a *Adapter) Name() string {
	return a.channelType
}

// Submit 模拟渠道受理：生成渠道流水号与支付凭证
func (a *Adapter) Submit(ctx context.Context, channel *models.Channel, order *models.PaymentOrder) (*gateway.SubmitResult, error) {
	channelTradeNo := fmt.Sprintf("%s-%s", a.channelType, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	// 收银台金额按元展示
	payURL := fmt.Sprintf("%s/cashier?trade_no=%s&money=%s", a.gatewayURL, order.TradeNo, models.NewMoneyFromMinorUnits(order.Amount).String())
	return &gateway.SubmitResult{
		Success:        true,
		ChannelTradeNo: channelTradeNo,
		Credential: models.JSON{
			"pay_url":    payURL,
			"qr_content": payURL,
		},
	}, nil
}

// ParseCallback 验签并解析模拟渠道回调。
// 回调为表单参数，sign 字段为其余参数按键名升序拼接后的 HMAC-SHA256。
func (a *Adapter) ParseCallback(ctx context.Context, channel *models.Channel, req *http.Request) (*gateway.CallbackResult, error) {
	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: parse form failed", gateway.ErrCallbackInvalid)
	}

	secret := callbackSecret(channel)
	if secret == "" {
		return nil, fmt.Errorf("%w: channel callback secret not configured", gateway.ErrCallbackInvalid)
	}

	params := map[string]string{}
	for key, values := range req.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	sign := strings.TrimSpace(params["sign"])
	if sign == "" {
		return nil, fmt.Errorf("%w: missing sign", gateway.ErrCallbackInvalid)
	}
	expected := SignParams(params, secret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sign))) {
		return nil, fmt.Errorf("%w: signature mismatch", gateway.ErrCallbackInvalid)
	}

	payload := models.JSON{}
	for k, v := range params {
		payload[k] = v
	}
	status := strings.ToUpper(strings.TrimSpace(params["trade_status"]))
	return &gateway.CallbackResult{
		Success:        status == "TRADE_SUCCESS",
		TradeNo:        strings.TrimSpace(params["out_trade_no"]),
		ChannelTradeNo: strings.TrimSpace(params["channel_trade_no"]),
		FailReason:     strings.TrimSpace(params["fail_reason"]),
		Payload:        payload,
	}, nil
}

// SignParams 计算回调签名：剔除 sign 后按键名升序拼接 k=v&，再做 HMAC-SHA256
func SignParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" || params[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params[k])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackSecret(channel *models.Channel) string {
	if channel == nil || channel.ConfigJSON == nil {
		return ""
	}
	if v, ok := channel.ConfigJSON["callback_secret"].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
