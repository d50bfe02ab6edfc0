package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/autopay-next/internal/constants"
)

// PaymentOrder 支付单
type PaymentOrder struct {
	ID             uint           `gorm:"primarykey" json:"id"`                              // 主键
	TradeNo        string         `gorm:"uniqueIndex;size:64;not null" json:"trade_no"`      // 平台流水号
	OutTradeNo     string         `gorm:"index;size:64;not null" json:"out_trade_no"`        // 商户订单号
	MerchantID     string         `gorm:"index;size:64;not null" json:"merchant_id"`         // 商户标识
	Subject        string         `gorm:"not null" json:"subject"`                           // 商品标题
	Amount         int64          `gorm:"not null" json:"amount"`                            // 支付金额（分）
	Currency       string         `gorm:"size:8;not null;default:CNY" json:"currency"`       // 币种
	Scene          string         `gorm:"index;not null" json:"scene"`                       // 支付场景（WEB/APP/NATIVE/H5/JSAPI）
	Status         string         `gorm:"index;not null" json:"status"`                      // 支付单状态
	ChannelCode    string         `gorm:"index;size:64" json:"channel_code"`                 // 选中的渠道编码
	ChannelTradeNo string         `gorm:"index;size:128" json:"channel_trade_no"`            // 渠道侧流水号
	FeeAmount      int64          `gorm:"not null;default:0" json:"fee_amount"`              // 手续费金额（分）
	RiskLevel      string         `gorm:"size:16;not null;default:low" json:"risk_level"`    // 风险等级
	SubmitCount    int            `gorm:"not null;default:0" json:"submit_count"`            // 渠道提交次数
	FailReason     string         `gorm:"type:text" json:"fail_reason"`                      // 最近一次失败原因
	Credential     JSON           `gorm:"type:json" json:"credential"`                       // 支付凭证（二维码内容/跳转链接等）
	NotifyURL      string         `gorm:"type:text" json:"notify_url"`                       // 商户异步通知地址
	ClientIP       string         `gorm:"size:64" json:"client_ip"`                          // 下单客户端 IP
	Extra          JSON           `gorm:"type:json" json:"extra"`                            // 商户透传数据
	PayTime        *time.Time     `gorm:"index" json:"pay_time"`                             // 支付成功时间
	ExpireTime     *time.Time     `gorm:"index" json:"expire_time"`                          // 过期时间
	CloseTime      *time.Time     `json:"close_time"`                                        // 关闭时间
	RefundTime     *time.Time     `json:"refund_time"`                                       // 退款完成时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                           // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间
}

// TableName 指定表名
func (PaymentOrder) TableName() string {
	return "payment_orders"
}

// IsTerminal 判断支付单是否处于不再接受任何事件的终态
func (o *PaymentOrder) IsTerminal() bool {
	switch o.Status {
	case constants.OrderStatusCancelled,
		constants.OrderStatusRefunded,
		constants.OrderStatusClosed:
		return true
	}
	return false
}

// IsOpen 判断支付单是否仍在支付流程中（未成功且未终结）
func (o *PaymentOrder) IsOpen() bool {
	return o.Status == constants.OrderStatusCreated || o.Status == constants.OrderStatusPending
}
