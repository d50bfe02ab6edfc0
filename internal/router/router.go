package router

import (
	"fmt"
	"strings"

	"github.com/autopay-next/internal/cache"
	"github.com/autopay-next/internal/config"
	adminhandlers "github.com/autopay-next/internal/http/handlers/admin"
	merchanthandlers "github.com/autopay-next/internal/http/handlers/merchant"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按商户/管理端分组）
	merchantHandler := merchanthandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "ap"
	}
	redisClient := cache.Client()
	createRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payment_create", redisPrefix),
		WindowSeconds: cfg.Payment.RateLimit.WindowSeconds,
		MaxRequests:   cfg.Payment.RateLimit.MaxRequests,
		Message:       "下单过于频繁，请稍后重试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 商户交易接口
		payments := apiV1.Group("/payments")
		{
			payments.POST("", RateLimitMiddleware(redisClient, createRule, KeyByIPAndHeader("X-Merchant-Id")), merchantHandler.CreatePayment)
			payments.GET("", merchantHandler.ListPayments)
			payments.GET("/by-out-trade-no/:out_trade_no", merchantHandler.GetPaymentByOutTradeNo)
			payments.GET("/:trade_no", merchantHandler.GetPayment)
			payments.GET("/:trade_no/qrcode", merchantHandler.PaymentQRCode)
			payments.GET("/:trade_no/refunds", merchantHandler.ListRefunds)
			payments.POST("/:trade_no/submit", merchantHandler.SubmitPayment)
			payments.POST("/:trade_no/close", merchantHandler.ClosePayment)
			payments.POST("/:trade_no/cancel", merchantHandler.CancelPayment)
			payments.POST("/:trade_no/retry", merchantHandler.RetryPayment)
			payments.POST("/:trade_no/refund", merchantHandler.RequestRefund)
		}

		// 渠道异步回调（无商户鉴权，靠验签）
		apiV1.POST("/callback/:channel_code", merchantHandler.ChannelCallback)
		apiV1.GET("/callback/:channel_code", merchantHandler.ChannelCallback)

		// 支付单事件推送
		apiV1.GET("/ws/orders", c.Hub.HandleWS)

		// 管理端接口
		admin := apiV1.Group("/admin")
		{
			// 渠道管理
			admin.GET("/channels", adminHandler.ListChannels)
			admin.POST("/channels", adminHandler.CreateChannel)
			admin.GET("/channels/:code", adminHandler.GetChannel)
			admin.PUT("/channels/:code", adminHandler.UpdateChannel)
			admin.DELETE("/channels/:code", adminHandler.DeleteChannel)
			admin.PATCH("/channels/:code/health", adminHandler.SetChannelHealth)
			admin.POST("/channels/usage/reset", adminHandler.ResetChannelUsage)

			// 支付单管理
			admin.GET("/orders", adminHandler.ListOrders)
			admin.GET("/orders/:trade_no", adminHandler.GetOrder)
			admin.GET("/orders/:trade_no/refunds", adminHandler.ListOrderRefunds)
			admin.POST("/orders/:trade_no/refund/settle", adminHandler.SettleRefund)
			admin.POST("/orders/:trade_no/refund/reject", adminHandler.RejectRefund)
			admin.POST("/orders/expire-scan", adminHandler.ExpireDueOrders)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
