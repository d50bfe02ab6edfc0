// Package wechat 微信支付 APIv3 渠道适配器。
package wechat

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/gateway"
	"github.com/autopay-next/internal/models"
)

var (
	ErrConfigInvalid    = errors.New("wechat config invalid")
	ErrRequestFailed    = errors.New("wechat request failed")
	ErrResponseInvalid  = errors.New("wechat response invalid")
	ErrSceneUnsupported = errors.New("wechat scene unsupported")
)

const defaultBaseURL = "https://api.mch.weixin.qq.com"

// Config 微信支付接入配置，存放在渠道 config_json 中
type Config struct {
	AppID              string `json:"appid"`
	MerchantID         string `json:"mchid"`
	MerchantSerialNo   string `json:"merchant_serial_no"`
	MerchantPrivateKey string `json:"merchant_private_key"`
	APIV3Key           string `json:"api_v3_key"`
	NotifyURL          string `json:"notify_url"`
	H5Type             string `json:"h5_type"`
	BaseURL            string `json:"base_url"`
}

// ParseConfig 从渠道配置解析微信接入参数
func ParseConfig(raw models.JSON) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.H5Type) == "" {
		cfg.H5Type = "WAP"
	}
	return &cfg, nil
}

// ValidateConfig 校验微信接入配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("%w: appid is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantID) == "" {
		return fmt.Errorf("%w: mchid is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantSerialNo) == "" {
		return fmt.Errorf("%w: merchant_serial_no is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MerchantPrivateKey) == "" {
		return fmt.Errorf("%w: merchant_private_key is required", ErrConfigInvalid)
	}
	if len(strings.TrimSpace(cfg.APIV3Key)) != 32 {
		return fmt.Errorf("%w: api_v3_key must be 32 chars", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.NotifyURL)); err != nil {
		return fmt.Errorf("%w: notify_url is invalid", ErrConfigInvalid)
	}
	if _, err := parsePrivateKey(cfg.MerchantPrivateKey); err != nil {
		return err
	}
	return nil
}

// Adapter 微信支付适配器
type Adapter struct{}

// NewAdapter 创建微信支付适配器
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Name 适配器对应的渠道类型
func (a *Adapter) Name() string {
	return constants.ChannelTypeWechat
}

// Submit 向微信下单。NATIVE 返回二维码内容，H5 返回跳转链接。
func (a *Adapter) Submit(ctx context.Context, channel *models.Channel, order *models.PaymentOrder) (*gateway.SubmitResult, error) {
	cfg, err := ParseConfig(channel.ConfigJSON)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := createAPIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"appid":        cfg.AppID,
		"mchid":        cfg.MerchantID,
		"description":  buildDescription(order.Subject, order.TradeNo),
		"out_trade_no": order.TradeNo,
		"notify_url":   cfg.NotifyURL,
		"amount": map[string]interface{}{
			"total":    order.Amount,
			"currency": order.Currency,
		},
	}
	if order.ExpireTime != nil {
		payload["time_expire"] = order.ExpireTime.Format(time.RFC3339)
	}

	var endpoint string
	switch order.Scene {
	case constants.PaymentSceneNative:
		endpoint = "/v3/pay/transactions/native"
		payload["scene_info"] = map[string]interface{}{
			"payer_client_ip": normalizeClientIP(order.ClientIP),
		}
	case constants.PaymentSceneH5:
		endpoint = "/v3/pay/transactions/h5"
		payload["scene_info"] = map[string]interface{}{
			"payer_client_ip": normalizeClientIP(order.ClientIP),
			"h5_info": map[string]interface{}{
				"type": cfg.H5Type,
			},
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrSceneUnsupported, order.Scene)
	}

	requestURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + endpoint
	raw, err := doPostJSON(ctx, client, requestURL, payload)
	if err != nil {
		// 渠道拒单按提交失败处理，不作为系统错误上抛
		if errors.Is(err, ErrResponseInvalid) {
			return &gateway.SubmitResult{Success: false, FailReason: err.Error()}, nil
		}
		return nil, err
	}

	credential := models.JSON{}
	switch order.Scene {
	case constants.PaymentSceneNative:
		codeURL := strings.TrimSpace(readString(raw, "code_url"))
		if codeURL == "" {
			return nil, fmt.Errorf("%w: missing code_url", ErrResponseInvalid)
		}
		credential["qr_content"] = codeURL
	case constants.PaymentSceneH5:
		h5URL := strings.TrimSpace(readString(raw, "h5_url"))
		if h5URL == "" {
			return nil, fmt.Errorf("%w: missing h5_url", ErrResponseInvalid)
		}
		credential["pay_url"] = h5URL
	}
	return &gateway.SubmitResult{
		Success:    true,
		Credential: credential,
	}, nil
}

// ParseCallback 验签并解密微信支付回调
func (a *Adapter) ParseCallback(ctx context.Context, channel *models.Channel, req *http.Request) (*gateway.CallbackResult, error) {
	cfg, err := ParseConfig(channel.ConfigJSON)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	privateKey, err := parsePrivateKey(cfg.MerchantPrivateKey)
	if err != nil {
		return nil, err
	}
	mgr := downloader.MgrInstance()
	if !mgr.HasDownloader(ctx, cfg.MerchantID) {
		if err := mgr.RegisterDownloaderWithPrivateKey(ctx, privateKey, cfg.MerchantSerialNo, cfg.MerchantID, cfg.APIV3Key); err != nil {
			return nil, fmt.Errorf("%w: register certificate downloader failed", ErrRequestFailed)
		}
	}
	verifier := verifiers.NewSHA256WithRSAVerifier(mgr.GetCertificateVisitor(cfg.MerchantID))
	handler, err := notify.NewRSANotifyHandler(cfg.APIV3Key, verifier)
	if err != nil {
		return nil, fmt.Errorf("%w: init notify handler failed", ErrConfigInvalid)
	}

	transaction := new(payments.Transaction)
	if _, err := handler.ParseNotifyRequest(ctx, req, transaction); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrCallbackInvalid, err)
	}

	tradeState := strings.ToUpper(strings.TrimSpace(pointerString(transaction.TradeState)))
	success := false
	failReason := ""
	switch tradeState {
	case "SUCCESS":
		success = true
	case "CLOSED", "REVOKED", "PAYERROR":
		failReason = tradeState
	default:
		return nil, fmt.Errorf("%w: unsupported trade_state %s", ErrResponseInvalid, tradeState)
	}

	payload := models.JSON{}
	if data, err := json.Marshal(transaction); err == nil {
		_ = json.Unmarshal(data, &payload)
	}
	return &gateway.CallbackResult{
		Success:        success,
		TradeNo:        strings.TrimSpace(pointerString(transaction.OutTradeNo)),
		ChannelTradeNo: strings.TrimSpace(pointerString(transaction.TransactionId)),
		FailReason:     failReason,
		Payload:        payload,
	}, nil
}

func createAPIClient(ctx context.Context, cfg *Config) (*core.Client, error) {
	privateKey, err := parsePrivateKey(cfg.MerchantPrivateKey)
	if err != nil {
		return nil, err
	}
	client, err := core.NewClient(ctx,
		option.WithMerchantCredential(cfg.MerchantID, cfg.MerchantSerialNo, privateKey),
		option.WithoutValidator(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: init client failed", ErrConfigInvalid)
	}
	return client, nil
}

func doPostJSON(ctx context.Context, client *core.Client, requestURL string, payload map[string]interface{}) (map[string]interface{}, error) {
	result, err := client.Post(ctx, requestURL, payload)
	if err != nil {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, strings.TrimSpace(apiErr.Message))
		}
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if result == nil || result.Response == nil || result.Response.Body == nil {
		return nil, fmt.Errorf("%w: empty response", ErrResponseInvalid)
	}
	defer result.Response.Body.Close()

	respBody, readErr := io.ReadAll(result.Response.Body)
	if readErr != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if result.Response.StatusCode < 200 || result.Response.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d body %s", ErrResponseInvalid, result.Response.StatusCode, strings.TrimSpace(string(respBody)))
	}
	raw := map[string]interface{}{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func buildDescription(subject, tradeNo string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "订单 " + tradeNo
	}
	// 微信 description 最长 127 字节
	if len(subject) > 120 {
		subject = subject[:120]
	}
	return subject
}

func normalizeClientIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "127.0.0.1"
	}
	return ip
}

func readString(raw map[string]interface{}, keys ...string) string {
	var current interface{} = raw
	for _, key := range keys {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = m[key]
	}
	s, _ := current.(string)
	return s
}

func pointerString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func parsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(raw)))
	if block == nil {
		return nil, fmt.Errorf("%w: merchant_private_key is not PEM", ErrConfigInvalid)
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey, nil
		}
		return nil, fmt.Errorf("%w: merchant_private_key is not RSA", ErrConfigInvalid)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: merchant_private_key parse failed", ErrConfigInvalid)
}
