package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/autopay-next/internal/constants"
)

// Channel 支付渠道配置
type Channel struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                   // 主键
	Code         string         `gorm:"uniqueIndex;size:64;not null" json:"code"`               // 渠道编码（全局唯一）
	Name         string         `gorm:"not null" json:"name"`                                   // 渠道名称
	ChannelType  string         `gorm:"index;not null" json:"channel_type"`                     // 渠道类型（WECHAT/ALIPAY/UNIONPAY）
	FeeRate      Rate           `gorm:"type:decimal(8,4);not null;default:0" json:"fee_rate"`   // 手续费费率（0.006 即 0.6%）
	Priority     int            `gorm:"not null;default:0" json:"priority"`                     // 优先级（数值越大越优先）
	Scenes       StringArray    `gorm:"type:json" json:"scenes"`                                // 支持的支付场景
	MinAmount    int64          `gorm:"not null;default:0" json:"min_amount"`                   // 单笔最小金额（分），0 表示不限
	MaxAmount    int64          `gorm:"not null;default:0" json:"max_amount"`                   // 单笔最大金额（分），0 表示不限
	DailyLimit   int64          `gorm:"not null;default:-1" json:"daily_limit"`                 // 当日累计限额（分），-1 表示不限
	DailyUsed    int64          `gorm:"not null;default:0" json:"daily_used"`                   // 当日已用额度（分）
	UsageDate    string         `gorm:"size:10;not null;default:''" json:"usage_date"`          // 已用额度归属日期（YYYY-MM-DD）
	Enabled      bool           `gorm:"not null;default:true" json:"enabled"`                   // 是否启用
	HealthStatus string         `gorm:"index;not null;default:healthy" json:"health_status"`    // 健康状态（healthy/unhealthy/maintenance/unknown）
	ConfigJSON   JSON           `gorm:"type:json" json:"config_json"`                           // 渠道接入配置
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                         // 软删除时间
}

// TableName 指定表名
func (Channel) TableName() string {
	return "channels"
}

// SupportsScene 判断渠道是否支持指定支付场景
func (c *Channel) SupportsScene(scene string) bool {
	return c.Scenes.Contains(scene)
}

// HasDailyQuota 判断当日额度是否未用尽（已用额度须严格小于限额）
func (c *Channel) HasDailyQuota(today string) bool {
	if c.DailyLimit == constants.ChannelDailyLimitUnlimited {
		return true
	}
	used := c.DailyUsed
	if c.UsageDate != today {
		// 跨日后额度尚未重置，视为已清零
		used = 0
	}
	return used < c.DailyLimit
}

// WithinAmountRange 判断金额是否在单笔限额区间内
func (c *Channel) WithinAmountRange(amount int64) bool {
	if c.MinAmount > 0 && amount < c.MinAmount {
		return false
	}
	if c.MaxAmount > 0 && amount > c.MaxAmount {
		return false
	}
	return true
}
