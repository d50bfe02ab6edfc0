package service

import (
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"

	"gorm.io/gorm"
)

// RequestRefund 发起退款：success → refunding，并建立退款记录。
// 同一支付单同时只允许一笔处理中的退款。
func (s *PaymentService) RequestRefund(tradeNo string, amount int64, reason string) (*models.PaymentOrder, error) {
	var result *models.PaymentOrder
	var refundNo string
	var refundAmount int64
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if amount <= 0 {
			amount = order.Amount
		}
		if amount > order.Amount {
			return ErrRefundAmountExceeded
		}
		pending, err := s.refundRepo.WithTx(tx).GetPendingByOrderID(order.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			return ErrRefundInProgress
		}
		if err := ApplyOrderEvent(order, constants.OrderEventRefundRequest, time.Now()); err != nil {
			return err
		}
		refund := &models.Refund{
			RefundNo: GenerateRefundNo(),
			OrderID:  order.ID,
			TradeNo:  order.TradeNo,
			Amount:   amount,
			Reason:   reason,
			Status:   constants.RefundStatusPending,
		}
		if err := s.refundRepo.WithTx(tx).Create(refund); err != nil {
			return err
		}
		if err := s.orderRepo.WithTx(tx).Update(order); err != nil {
			return err
		}
		result = order
		refundNo = refund.RefundNo
		refundAmount = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(constants.OrderFeedEventStatusChanged, result)
	logger.Infow("refund_requested", "trade_no", tradeNo, "refund_no", refundNo, "amount", refundAmount)
	return result, nil
}

// SettleRefund 退款到账：refunding → refunded，重复投递幂等返回
func (s *PaymentService) SettleRefund(tradeNo string) (*models.PaymentOrder, error) {
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
		if order.Status == constants.OrderStatusRefunded {
			result = order
			return nil
		}
		now := time.Now()
		if err := ApplyOrderEvent(order, constants.OrderEventRefundSettle, now); err != nil {
			return err
		}
		pending, err := s.refundRepo.WithTx(tx).GetPendingByOrderID(order.ID)
		if err != nil {
			return err
		}
		if pending != nil {
			pending.Status = constants.RefundStatusSettled
			pending.SettledAt = &now
			if err := s.refundRepo.WithTx(tx).Update(pending); err != nil {
				return err
			}
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
		s.notifyMerchant(result)
		logger.Infow("refund_settled", "trade_no", tradeNo)
	}
	return result, nil
}

// RejectRefund 退款驳回：refunding → success，退款记录作废，原支付时间保持不变
func (s *PaymentService) RejectRefund(tradeNo string, note string) (*models.PaymentOrder, error) {
	var result *models.PaymentOrder
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		order, err := s.orderRepo.WithTx(tx).GetByTradeNoForUpdate(tradeNo)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		now := time.Now()
		if err := ApplyOrderEvent(order, constants.OrderEventRefundReject, now); err != nil {
			return err
		}
		pending, err := s.refundRepo.WithTx(tx).GetPendingByOrderID(order.ID)
		if err != nil {
			return err
		}
		if pending == nil {
			return ErrRefundNotFound
		}
		pending.Status = constants.RefundStatusRejected
		pending.RejectNote = note
		pending.RejectedAt = &now
		if err := s.refundRepo.WithTx(tx).Update(pending); err != nil {
			return err
		}
		if err := s.orderRepo.WithTx(tx).Update(order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(constants.OrderFeedEventStatusChanged, result)
	logger.Infow("refund_rejected", "trade_no", tradeNo)
	return result, nil
}

// ListRefunds 查询支付单的退款记录
func (s *PaymentService) ListRefunds(tradeNo string) ([]models.Refund, error) {
	order, err := s.orderRepo.GetByTradeNo(tradeNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.refundRepo.ListByOrderID(order.ID)
}
