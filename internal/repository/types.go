package repository

import "time"

// ChannelListFilter 查询支付渠道列表的过滤条件
type ChannelListFilter struct {
	Page         int
	PageSize     int
	ChannelType  string
	HealthStatus string
	EnabledOnly  bool
	Search       string
}

// OrderListFilter 查询支付单列表的过滤条件
type OrderListFilter struct {
	Page        int
	PageSize    int
	MerchantID  string
	Status      string
	ChannelCode string
	Scene       string
	TradeNo     string
	OutTradeNo  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// RefundListFilter 查询退款列表的过滤条件
type RefundListFilter struct {
	Page     int
	PageSize int
	OrderID  uint
	Status   string
}
