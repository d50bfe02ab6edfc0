package worker

import (
	"context"
	"errors"
	"time"

	"github.com/autopay-next/internal/config"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultExpireScanInterval = time.Minute
	defaultExpireScanBatch    = 200
	defaultUsageResetInterval = 5 * time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	worker   config.WorkerConfig
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		worker:   cfg.Worker,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.PaymentService != nil {
		go s.runExpireScanLoop(ctx)
	}
	if s.consumer != nil && s.consumer.ChannelService != nil {
		go s.runUsageResetLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runExpireScanLoop 兜底扫描到期支付单。
// 延迟任务丢失（如队列重建）时由该循环补偿过期。
func (s *Service) runExpireScanLoop(ctx context.Context) {
	interval := defaultExpireScanInterval
	if s.worker.ExpireScanSeconds > 0 {
		interval = time.Duration(s.worker.ExpireScanSeconds) * time.Second
	}
	batch := s.worker.ExpireScanBatch
	if batch <= 0 {
		batch = defaultExpireScanBatch
	}

	runOnce := func() {
		expired, err := s.consumer.PaymentService.ExpireDueOrders(time.Now(), batch)
		if err != nil {
			logger.Warnw("worker_expire_scan_failed", "error", err)
			return
		}
		if expired > 0 {
			logger.Infow("worker_expire_scan_done", "expired", expired)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

// runUsageResetLoop 跨日后清零渠道已用额度。
func (s *Service) runUsageResetLoop(ctx context.Context) {
	interval := defaultUsageResetInterval
	if s.worker.UsageResetSeconds > 0 {
		interval = time.Duration(s.worker.UsageResetSeconds) * time.Second
	}

	runOnce := func() {
		affected, err := s.consumer.ChannelService.ResetDailyUsage(time.Now())
		if err != nil {
			logger.Warnw("worker_usage_reset_failed", "error", err)
			return
		}
		if affected > 0 {
			logger.Infow("worker_usage_reset_done", "affected", affected)
		}
	}
	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
