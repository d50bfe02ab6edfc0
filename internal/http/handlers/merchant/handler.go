package merchant

import "github.com/autopay-next/internal/provider"

// Handler 商户侧 API 处理器入口
// 说明：该处理器仅用于商户下单、查单、回调等交易链路接口。
type Handler struct {
	*provider.Container
}

// New 创建商户处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
