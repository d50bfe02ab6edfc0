package service

import (
	"fmt"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"
)

// orderTransition 单条状态迁移规则
type orderTransition struct {
	from []string
	to   string
}

// orderTransitions 支付单状态迁移表
var orderTransitions = map[string]orderTransition{
	constants.OrderEventSubmitSuccess: {
		from: []string{constants.OrderStatusCreated},
		to:   constants.OrderStatusPending,
	},
	constants.OrderEventSubmitFail: {
		from: []string{constants.OrderStatusCreated},
		to:   constants.OrderStatusFailed,
	},
	constants.OrderEventChannelSuccess: {
		from: []string{constants.OrderStatusPending},
		to:   constants.OrderStatusSuccess,
	},
	constants.OrderEventChannelFail: {
		from: []string{constants.OrderStatusPending},
		to:   constants.OrderStatusFailed,
	},
	constants.OrderEventExpire: {
		from: []string{constants.OrderStatusCreated, constants.OrderStatusPending},
		to:   constants.OrderStatusExpired,
	},
	constants.OrderEventClose: {
		from: []string{constants.OrderStatusCreated, constants.OrderStatusPending},
		to:   constants.OrderStatusClosed,
	},
	constants.OrderEventCancel: {
		from: []string{constants.OrderStatusCreated},
		to:   constants.OrderStatusCancelled,
	},
	constants.OrderEventRefundRequest: {
		from: []string{constants.OrderStatusSuccess},
		to:   constants.OrderStatusRefunding,
	},
	constants.OrderEventRefundSettle: {
		from: []string{constants.OrderStatusRefunding},
		to:   constants.OrderStatusRefunded,
	},
	constants.OrderEventRefundReject: {
		from: []string{constants.OrderStatusRefunding},
		to:   constants.OrderStatusSuccess,
	},
	constants.OrderEventRetry: {
		from: []string{constants.OrderStatusFailed, constants.OrderStatusExpired},
		to:   constants.OrderStatusCreated,
	},
}

// orderStatusTexts 支付单状态展示文案
var orderStatusTexts = map[string]string{
	constants.OrderStatusCreated:   "已创建",
	constants.OrderStatusPending:   "待支付",
	constants.OrderStatusSuccess:   "支付成功",
	constants.OrderStatusFailed:    "支付失败",
	constants.OrderStatusExpired:   "已过期",
	constants.OrderStatusCancelled: "已取消",
	constants.OrderStatusRefunding: "退款中",
	constants.OrderStatusRefunded:  "已退款",
	constants.OrderStatusClosed:    "已关闭",
}

// OrderStatusText 返回状态展示文案，未知状态原样返回
func OrderStatusText(status string) string {
	if text, ok := orderStatusTexts[status]; ok {
		return text
	}
	return status
}

// OrderEventTarget 返回事件的目标状态，未知事件返回空串
func OrderEventTarget(event string) string {
	t, ok := orderTransitions[event]
	if !ok {
		return ""
	}
	return t.to
}

// CanApplyOrderEvent 判断事件在当前状态下是否允许
func CanApplyOrderEvent(status, event string) bool {
	t, ok := orderTransitions[event]
	if !ok {
		return false
	}
	for _, from := range t.from {
		if from == status {
			return true
		}
	}
	return false
}

// ApplyOrderEvent 在内存中应用状态迁移并维护时间字段，失败时订单保持不变。
// 仅做状态演算，持久化由调用方在事务内完成。
func ApplyOrderEvent(order *models.PaymentOrder, event string, now time.Time) error {
	t, ok := orderTransitions[event]
	if !ok {
		return fmt.Errorf("%w: unknown event %q in status %q", ErrInvalidStateTransition, event, order.Status)
	}
	allowed := false
	for _, from := range t.from {
		if from == order.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: event %q not allowed in status %q", ErrInvalidStateTransition, event, order.Status)
	}

	order.Status = t.to
	switch t.to {
	case constants.OrderStatusSuccess:
		// 退款驳回返回 success 时不得改写原支付时间
		if event == constants.OrderEventChannelSuccess {
			order.PayTime = &now
		}
	case constants.OrderStatusClosed:
		// closeTime 仅在进入 closed 时落值，取消不写
		order.CloseTime = &now
	case constants.OrderStatusRefunded:
		order.RefundTime = &now
	case constants.OrderStatusCreated:
		// 重试开启新一轮提交，清空上一轮渠道侧痕迹
		order.ChannelTradeNo = ""
		order.Credential = nil
		order.FailReason = ""
	}
	return nil
}

// IsOrderRefundable 判断支付单当前是否可发起退款
func IsOrderRefundable(order *models.PaymentOrder) bool {
	return order.Status == constants.OrderStatusSuccess
}
