package service

import (
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/queue"

	"gorm.io/gorm"
)

// SubmissionResultInput 渠道提交结果
type SubmissionResultInput struct {
	Success        bool
	ChannelTradeNo string
	Credential     models.JSON
	FailReason     string
}

// ChannelCallbackInput 渠道异步回调结果
type ChannelCallbackInput struct {
	Success        bool
	ChannelTradeNo string
	FailReason     string
	Payload        models.JSON
}

// ReportSubmissionResult 回填渠道提交结果，驱动 created → pending/failed
func (s *PaymentService) ReportSubmissionResult(tradeNo string, input SubmissionResultInput) (*models.PaymentOrder, error) {
	event := constants.OrderEventSubmitFail
	if input.Success {
		event = constants.OrderEventSubmitSuccess
	}

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
		// 同一结果重复上报幂等返回
		if order.Status == OrderEventTarget(event) {
			result = order
			return nil
		}
		if err := ApplyOrderEvent(order, event, time.Now()); err != nil {
			return err
		}
		order.SubmitCount++
		if input.Success {
			order.ChannelTradeNo = input.ChannelTradeNo
			order.Credential = input.Credential
		} else {
			order.FailReason = input.FailReason
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
		logger.Infow("submission_result_applied",
			"trade_no", tradeNo,
			"success", input.Success,
			"status", result.Status,
		)
	}
	return result, nil
}

// ReportChannelCallback 处理渠道异步回调，驱动 pending → success/failed。
// 支付成功时原子累加渠道当日已用额度并触发商户通知。
func (s *PaymentService) ReportChannelCallback(tradeNo string, input ChannelCallbackInput) (*models.PaymentOrder, error) {
	event := constants.OrderEventChannelFail
	if input.Success {
		event = constants.OrderEventChannelSuccess
	}

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
		// 渠道回调可能重复投递，同一结果幂等返回
		if order.Status == OrderEventTarget(event) {
			result = order
			return nil
		}
		now := time.Now()
		if err := ApplyOrderEvent(order, event, now); err != nil {
			return err
		}
		if input.ChannelTradeNo != "" {
			order.ChannelTradeNo = input.ChannelTradeNo
		}
		if !input.Success {
			order.FailReason = input.FailReason
		}
		if err := s.orderRepo.WithTx(tx).Update(order); err != nil {
			return err
		}
		if input.Success {
			if err := s.channelRepo.WithTx(tx).IncrementDailyUsed(order.ChannelCode, order.Amount, usageDay(now)); err != nil {
				return err
			}
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
		s.notifyMerchant(result)
		logger.Infow("channel_callback_applied",
			"trade_no", tradeNo,
			"success", input.Success,
			"status", result.Status,
			"channel_trade_no", result.ChannelTradeNo,
		)
	}
	return result, nil
}

// notifyMerchant 推送商户异步通知任务
func (s *PaymentService) notifyMerchant(order *models.PaymentOrder) {
	if s.queueClient == nil || order.NotifyURL == "" {
		return
	}
	payload := queue.MerchantNotifyPayload{TradeNo: order.TradeNo, Status: order.Status}
	if err := s.queueClient.EnqueueMerchantNotify(payload); err != nil {
		logger.Warnw("enqueue_merchant_notify_failed", "trade_no", order.TradeNo, "error", err)
	}
}
