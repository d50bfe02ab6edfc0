package provider

import (
	"github.com/autopay-next/internal/cache"
	"github.com/autopay-next/internal/config"
	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/events"
	"github.com/autopay-next/internal/gateway"
	"github.com/autopay-next/internal/gateway/simulated"
	"github.com/autopay-next/internal/gateway/wechat"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/queue"
	"github.com/autopay-next/internal/repository"
	"github.com/autopay-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	ChannelRepo repository.ChannelRepository
	OrderRepo   repository.OrderRepository
	RefundRepo  repository.RefundRepository

	// Services
	ChannelService *service.ChannelService
	PaymentService *service.PaymentService

	// 渠道接入与事件推送
	GatewayRegistry *gateway.Registry
	Hub             *events.Hub
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			qc.SetNotifyMaxRetry(cfg.Worker.NotifyMaxRetry)
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.ChannelRepo = repository.NewChannelRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.RefundRepo = repository.NewRefundRepository(db)
}

func (c *Container) initServices() {
	c.Hub = events.NewHub()
	c.GatewayRegistry = gateway.NewRegistry(
		wechat.NewAdapter(),
		simulated.New(constants.ChannelTypeAlipay, c.Config.Gateway.SandboxURL),
		simulated.New(constants.ChannelTypeUnionPay, c.Config.Gateway.SandboxURL),
	)

	c.ChannelService = service.NewChannelService(c.ChannelRepo, c.OrderRepo)
	c.PaymentService = service.NewPaymentService(
		c.OrderRepo,
		c.ChannelRepo,
		c.RefundRepo,
		c.ChannelService,
		c.QueueClient,
		c.Hub,
		c.Config.Payment.ExpireMinutes,
	)
}

// Close 释放容器持有的资源
func (c *Container) Close() {
	if c.Hub != nil {
		c.Hub.Stop()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
}
