package models

import (
	"time"

	"gorm.io/gorm"
)

// Refund 退款记录
type Refund struct {
	ID         uint           `gorm:"primarykey" json:"id"`                          // 主键
	RefundNo   string         `gorm:"uniqueIndex;size:64;not null" json:"refund_no"` // 退款流水号
	OrderID    uint           `gorm:"index;not null" json:"order_id"`                // 支付单 ID
	TradeNo    string         `gorm:"index;size:64;not null" json:"trade_no"`        // 支付单平台流水号
	Amount     int64          `gorm:"not null" json:"amount"`                        // 退款金额（分）
	Reason     string         `gorm:"type:text" json:"reason"`                       // 退款原因
	Status     string         `gorm:"index;not null" json:"status"`                  // 退款状态（pending/settled/rejected）
	RejectNote string         `gorm:"type:text" json:"reject_note"`                  // 驳回说明
	SettledAt  *time.Time     `json:"settled_at"`                                    // 到账时间
	RejectedAt *time.Time     `json:"rejected_at"`                                   // 驳回时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt  time.Time      `json:"updated_at"`                                    // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (Refund) TableName() string {
	return "refunds"
}
