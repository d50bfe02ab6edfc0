package constants

// 支付单状态常量
const (
	OrderStatusCreated   = "created"
	OrderStatusPending   = "pending"
	OrderStatusSuccess   = "success"
	OrderStatusFailed    = "failed"
	OrderStatusExpired   = "expired"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunding = "refunding"
	OrderStatusRefunded  = "refunded"
	OrderStatusClosed    = "closed"
)

// 支付单事件常量
const (
	OrderEventSubmitSuccess  = "submit_success"
	OrderEventSubmitFail     = "submit_fail"
	OrderEventChannelSuccess = "channel_success"
	OrderEventChannelFail    = "channel_fail"
	OrderEventExpire         = "expire"
	OrderEventClose          = "close"
	OrderEventCancel         = "cancel"
	OrderEventRefundRequest  = "refund_request"
	OrderEventRefundSettle   = "refund_settle"
	OrderEventRefundReject   = "refund_reject"
	OrderEventRetry          = "retry"
)

// 渠道类型常量
const (
	ChannelTypeWechat   = "WECHAT"
	ChannelTypeAlipay   = "ALIPAY"
	ChannelTypeUnionPay = "UNIONPAY"
)

// 渠道健康状态常量
const (
	ChannelHealthHealthy     = "healthy"
	ChannelHealthUnhealthy   = "unhealthy"
	ChannelHealthMaintenance = "maintenance"
	ChannelHealthUnknown     = "unknown"
)

// 支付场景常量
const (
	PaymentSceneWeb    = "WEB"
	PaymentSceneApp    = "APP"
	PaymentSceneNative = "NATIVE"
	PaymentSceneH5     = "H5"
	PaymentSceneJSAPI  = "JSAPI"
)

// 退款状态常量
const (
	RefundStatusPending  = "pending"
	RefundStatusSettled  = "settled"
	RefundStatusRejected = "rejected"
)

// 风险等级常量
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// 回调处理结果常量
const (
	CallbackResultSuccess = "SUCCESS"
	CallbackResultFail    = "FAIL"
)

// 渠道限额常量
const (
	ChannelDailyLimitUnlimited = -1
)

// 队列常量
const (
	QueueDefault       = "default"
	TaskOrderExpire    = "order:timeout_expire"
	TaskNotifyMerchant = "order:notify_merchant"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "ap"
)

// 订单事件推送类型常量
const (
	OrderFeedEventCreated       = "order_created"
	OrderFeedEventStatusChanged = "order_status_changed"
)
