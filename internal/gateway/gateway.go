package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/autopay-next/internal/models"
)

var (
	// ErrAdapterNotFound 渠道类型没有对应的接入适配器
	ErrAdapterNotFound = errors.New("gateway adapter not found")
	// ErrCallbackInvalid 回调验签失败或报文非法
	ErrCallbackInvalid = errors.New("gateway callback invalid")
)

// SubmitResult 渠道提交结果
type SubmitResult struct {
	Success        bool
	ChannelTradeNo string
	Credential     models.JSON
	FailReason     string
}

// CallbackResult 渠道回调验签解析结果
type CallbackResult struct {
	Success        bool
	TradeNo        string
	ChannelTradeNo string
	FailReason     string
	Payload        models.JSON
}

// Adapter 渠道接入适配器
type Adapter interface {
	// Name 适配器对应的渠道类型
	Name() string
	// Submit 向渠道提交支付单，返回提交结果与支付凭证
	Submit(ctx context.Context, channel *models.Channel, order *models.PaymentOrder) (*SubmitResult, error)
	// ParseCallback 验签并解析渠道异步回调
	ParseCallback(ctx context.Context, channel *models.Channel, req *http.Request) (*CallbackResult, error)
}

// Registry 按渠道类型注册的适配器表
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry 创建适配器注册表
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register 注册适配器，同类型后注册的覆盖先注册的
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}
	r.adapters[strings.ToUpper(strings.TrimSpace(adapter.Name()))] = adapter
}

// Get 根据渠道类型获取适配器
func (r *Registry) Get(channelType string) (Adapter, error) {
	adapter, ok := r.adapters[strings.ToUpper(strings.TrimSpace(channelType))]
	if !ok {
		return nil, ErrAdapterNotFound
	}
	return adapter, nil
}
