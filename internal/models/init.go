package models

import (
	"github.com/shopspring/decimal"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/logger"
)

// InitDefaultChannels 初始化默认支付渠道（仅在渠道表为空时写入）
func InitDefaultChannels() error {
	var count int64
	DB.Model(&Channel{}).Count(&count)
	if count > 0 {
		return nil
	}

	defaults := []Channel{
		{
			Code:         "WECHAT_NATIVE",
			Name:         "微信扫码支付",
			ChannelType:  constants.ChannelTypeWechat,
			FeeRate:      NewRateFromDecimal(decimal.NewFromFloat(0.006)),
			Priority:     100,
			Scenes:       StringArray{constants.PaymentSceneNative, constants.PaymentSceneJSAPI},
			DailyLimit:   constants.ChannelDailyLimitUnlimited,
			Enabled:      true,
			HealthStatus: constants.ChannelHealthHealthy,
		},
		{
			Code:         "ALIPAY_PC",
			Name:         "支付宝电脑网站支付",
			ChannelType:  constants.ChannelTypeAlipay,
			FeeRate:      NewRateFromDecimal(decimal.NewFromFloat(0.0055)),
			Priority:     90,
			Scenes:       StringArray{constants.PaymentSceneWeb, constants.PaymentSceneH5},
			DailyLimit:   constants.ChannelDailyLimitUnlimited,
			Enabled:      true,
			HealthStatus: constants.ChannelHealthHealthy,
		},
		{
			Code:         "UNIONPAY_GATEWAY",
			Name:         "银联网关支付",
			ChannelType:  constants.ChannelTypeUnionPay,
			FeeRate:      NewRateFromDecimal(decimal.NewFromFloat(0.005)),
			Priority:     80,
			Scenes:       StringArray{constants.PaymentSceneWeb},
			DailyLimit:   constants.ChannelDailyLimitUnlimited,
			Enabled:      true,
			HealthStatus: constants.ChannelHealthHealthy,
		},
	}

	if err := DB.Create(&defaults).Error; err != nil {
		return err
	}
	logger.Infow("default_channels_created", "count", len(defaults))
	return nil
}
