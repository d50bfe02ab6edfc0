package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autopay-next/internal/cache"
	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/queue"
	"github.com/autopay-next/internal/repository"

	"gorm.io/gorm"
)

// OrderEventPublisher 支付单事件推送接口，由 WebSocket 中心实现
type OrderEventPublisher interface {
	PublishOrderEvent(event string, order *models.PaymentOrder)
}

// PaymentService 支付编排服务
type PaymentService struct {
	orderRepo      repository.OrderRepository
	channelRepo    repository.ChannelRepository
	refundRepo     repository.RefundRepository
	channelService *ChannelService
	queueClient    *queue.Client
	publisher      OrderEventPublisher
	expireMinutes  int
}

// NewPaymentService 创建支付编排服务
func NewPaymentService(orderRepo repository.OrderRepository, channelRepo repository.ChannelRepository, refundRepo repository.RefundRepository, channelService *ChannelService, queueClient *queue.Client, publisher OrderEventPublisher, expireMinutes int) *PaymentService {
	if expireMinutes <= 0 {
		expireMinutes = 30
	}
	return &PaymentService{
		orderRepo:      orderRepo,
		channelRepo:    channelRepo,
		refundRepo:     refundRepo,
		channelService: channelService,
		queueClient:    queueClient,
		publisher:      publisher,
		expireMinutes:  expireMinutes,
	}
}

// CreatePaymentInput 创建支付单输入
type CreatePaymentInput struct {
	MerchantID    string
	OutTradeNo    string
	Subject       string
	Amount        int64
	Currency      string
	Scene         string
	NotifyURL     string
	ClientIP      string
	Extra         models.JSON
	ExpireMinutes int
}

func (in *CreatePaymentInput) validate() error {
	if strings.TrimSpace(in.MerchantID) == "" {
		return fmt.Errorf("%w: merchant_id is required", ErrValidation)
	}
	if strings.TrimSpace(in.OutTradeNo) == "" {
		return fmt.Errorf("%w: out_trade_no is required", ErrValidation)
	}
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(in.Scene) == "" {
		return fmt.Errorf("%w: scene is required", ErrValidation)
	}
	return nil
}

// CreatePayment 创建支付单：校验请求、选路、落库。
// 不直接发起渠道网络调用，提交结果由 ReportSubmissionResult 回填。
func (s *PaymentService) CreatePayment(input CreatePaymentInput) (*models.PaymentOrder, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	// 同一商户订单号存在未终结支付单时幂等返回
	existing, err := s.orderRepo.GetOpenByOutTradeNo(input.MerchantID, input.OutTradeNo)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Amount != input.Amount {
			return nil, ErrDuplicateOutTradeNo
		}
		return existing, nil
	}

	eligible, err := s.channelService.ListEligible(input.Scene, input.Amount)
	if err != nil {
		return nil, err
	}
	chosen := ChooseChannel(eligible)
	if chosen == nil {
		return nil, ErrNoChannelAvailable
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "CNY"
	}
	expireMinutes := input.ExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = s.expireMinutes
	}

	now := time.Now()
	expireAt := now.Add(time.Duration(expireMinutes) * time.Minute)
	order := &models.PaymentOrder{
		TradeNo:     GenerateTradeNo(),
		OutTradeNo:  input.OutTradeNo,
		MerchantID:  input.MerchantID,
		Subject:     input.Subject,
		Amount:      input.Amount,
		Currency:    currency,
		Scene:       input.Scene,
		Status:      constants.OrderStatusCreated,
		ChannelCode: chosen.Code,
		FeeAmount:   chosen.FeeRate.FeeOn(input.Amount),
		RiskLevel:   constants.RiskLevelLow,
		NotifyURL:   input.NotifyURL,
		ClientIP:    input.ClientIP,
		Extra:       input.Extra,
		ExpireTime:  &expireAt,
	}
	if err := s.orderRepo.Create(order); err != nil {
		// 并发同号下单时唯一索引 uk_open_out_trade_no 拦截后写，
		// 回读先写的开放单走幂等分支
		if winner, qerr := s.orderRepo.GetOpenByOutTradeNo(input.MerchantID, input.OutTradeNo); qerr == nil && winner != nil {
			if winner.Amount != input.Amount {
				return nil, ErrDuplicateOutTradeNo
			}
			return winner, nil
		}
		return nil, err
	}

	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderExpire(queue.OrderExpirePayload{TradeNo: order.TradeNo}, time.Until(expireAt)); err != nil {
			logger.Warnw("enqueue_order_expire_failed", "trade_no", order.TradeNo, "error", err)
		}
	}
	s.publish(constants.OrderFeedEventCreated, order)

	logger.Infow("payment_order_created",
		"trade_no", order.TradeNo,
		"out_trade_no", order.OutTradeNo,
		"channel_code", order.ChannelCode,
		"amount", order.Amount,
		"scene", order.Scene,
	)
	return order, nil
}

// QueryPayment 根据平台流水号查询支付单
func (s *PaymentService) QueryPayment(tradeNo string) (*models.PaymentOrder, error) {
	order, err := s.orderRepo.GetByTradeNo(tradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// QueryPaymentByOutTradeNo 根据商户订单号查询最新支付单
func (s *PaymentService) QueryPaymentByOutTradeNo(merchantID, outTradeNo string) (*models.PaymentOrder, error) {
	order, err := s.orderRepo.GetByOutTradeNo(merchantID, outTradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 支付单列表
func (s *PaymentService) ListOrders(filter repository.OrderListFilter) ([]models.PaymentOrder, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// CloseOrder 关闭支付单，重复关闭幂等返回
func (s *PaymentService) CloseOrder(tradeNo string) (*models.PaymentOrder, error) {
	return s.applyEvent(tradeNo, constants.OrderEventClose, nil, nil)
}

// CancelOrder 取消支付单，重复取消幂等返回
func (s *PaymentService) CancelOrder(tradeNo string) (*models.PaymentOrder, error) {
	return s.applyEvent(tradeNo, constants.OrderEventCancel, nil, nil)
}

// ExpireOrder 将到期支付单置为过期，未到期时拒绝
func (s *PaymentService) ExpireOrder(tradeNo string, now time.Time) (*models.PaymentOrder, error) {
	return s.applyEvent(tradeNo, constants.OrderEventExpire, func(order *models.PaymentOrder) error {
		if order.ExpireTime == nil || now.Before(*order.ExpireTime) {
			return fmt.Errorf("%w: event %q not allowed before expire time", ErrInvalidStateTransition, constants.OrderEventExpire)
		}
		return nil
	}, nil)
}

// RetryPayment 失败或过期后重新开启一轮提交，渠道保持不变
func (s *PaymentService) RetryPayment(tradeNo string) (*models.PaymentOrder, error) {
	var expireAt time.Time
	order, err := s.applyEvent(tradeNo, constants.OrderEventRetry, nil, func(order *models.PaymentOrder) {
		// 新一轮提交重置过期时间，与状态迁移同一事务落库
		expireAt = time.Now().Add(time.Duration(s.expireMinutes) * time.Minute)
		order.ExpireTime = &expireAt
	})
	if err != nil {
		return nil, err
	}
	if s.queueClient != nil {
		if err := s.queueClient.EnqueueOrderExpire(queue.OrderExpirePayload{TradeNo: order.TradeNo}, time.Until(expireAt)); err != nil {
			logger.Warnw("enqueue_order_expire_failed", "trade_no", order.TradeNo, "error", err)
		}
	}
	return order, nil
}

// ExpireDueOrders 扫描并过期所有已到期支付单，返回处理数量
func (s *PaymentService) ExpireDueOrders(now time.Time, limit int) (int, error) {
	orders, err := s.orderRepo.ListExpired(now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, order := range orders {
		if _, err := s.ExpireOrder(order.TradeNo, now); err != nil {
			logger.Warnw("expire_order_failed", "trade_no", order.TradeNo, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// applyEvent 在事务内对支付单加行锁并应用状态事件。
// guard 不为空时在迁移前做额外校验，mutate 在迁移后、落库前执行。
// 仅当支付单已处于终态且恰为事件目标状态时视为重复投递，幂等返回；
// 非终态的目标状态重合不是重复投递，仍按迁移表判定。
func (s *PaymentService) applyEvent(tradeNo string, event string, guard func(*models.PaymentOrder) error, mutate func(*models.PaymentOrder)) (*models.PaymentOrder, error) {
	var result *models.PaymentOrder
	changed := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.IsTerminal() && order.Status == OrderEventTarget(event) {
			result = order
			return nil
		}
		if guard != nil {
			if err := guard(order); err != nil {
				return err
			}
		}
		if err := ApplyOrderEvent(order, event, time.Now()); err != nil {
			return err
		}
		if mutate != nil {
			mutate(order)
		}
		if err := s.orderRepo.WithTx(tx).Update(order); err != nil {
			return err
		}
		result = order
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(constants.OrderFeedEventStatusChanged, result)
		logger.Infow("payment_order_event_applied", "trade_no", tradeNo, "event", event, "status", result.Status)
	}
	return result, nil
}

func (s *PaymentService) publish(event string, order *models.PaymentOrder) {
	if order == nil {
		return
	}
	cache.InvalidateOrderSnapshot(context.Background(), order.TradeNo)
	if s.publisher == nil {
		return
	}
	s.publisher.PublishOrderEvent(event, order)
}
