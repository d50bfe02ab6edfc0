package service

import (
	"errors"
	"testing"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"
)

func TestCanApplyOrderEvent(t *testing.T) {
	cases := []struct {
		status string
		event  string
		want   bool
	}{
		{constants.OrderStatusCreated, constants.OrderEventSubmitSuccess, true},
		{constants.OrderStatusCreated, constants.OrderEventSubmitFail, true},
		{constants.OrderStatusCreated, constants.OrderEventCancel, true},
		{constants.OrderStatusCreated, constants.OrderEventClose, true},
		{constants.OrderStatusCreated, constants.OrderEventExpire, true},
		{constants.OrderStatusCreated, constants.OrderEventChannelSuccess, false},
		{constants.OrderStatusPending, constants.OrderEventChannelSuccess, true},
		{constants.OrderStatusPending, constants.OrderEventChannelFail, true},
		{constants.OrderStatusPending, constants.OrderEventExpire, true},
		{constants.OrderStatusPending, constants.OrderEventClose, true},
		{constants.OrderStatusPending, constants.OrderEventCancel, false},
		{constants.OrderStatusSuccess, constants.OrderEventRefundRequest, true},
		{constants.OrderStatusSuccess, constants.OrderEventClose, false},
		{constants.OrderStatusSuccess, constants.OrderEventExpire, false},
		{constants.OrderStatusRefunding, constants.OrderEventRefundSettle, true},
		{constants.OrderStatusRefunding, constants.OrderEventRefundReject, true},
		{constants.OrderStatusRefunding, constants.OrderEventRefundRequest, false},
		{constants.OrderStatusFailed, constants.OrderEventRetry, true},
		{constants.OrderStatusExpired, constants.OrderEventRetry, true},
		{constants.OrderStatusCancelled, constants.OrderEventRetry, false},
		{constants.OrderStatusRefunded, constants.OrderEventRefundRequest, false},
		{constants.OrderStatusClosed, constants.OrderEventSubmitSuccess, false},
	}
	for _, tc := range cases {
		if got := CanApplyOrderEvent(tc.status, tc.event); got != tc.want {
			t.Fatalf("CanApplyOrderEvent(%s, %s) want %v got %v", tc.status, tc.event, tc.want, got)
		}
	}
}

func TestApplyOrderEventInvalidTransition(t *testing.T) {
	order := &models.PaymentOrder{Status: constants.OrderStatusSuccess}
	err := ApplyOrderEvent(order, constants.OrderEventClose, time.Now())
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if order.Status != constants.OrderStatusSuccess {
		t.Fatalf("order status should be unchanged on error, got %s", order.Status)
	}
	if err := ApplyOrderEvent(order, "no_such_event", time.Now()); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("unknown event should fail with ErrInvalidStateTransition, got %v", err)
	}
}

func TestApplyOrderEventChannelSuccessSetsPayTime(t *testing.T) {
	now := time.Now()
	order := &models.PaymentOrder{Status: constants.OrderStatusPending}
	if err := ApplyOrderEvent(order, constants.OrderEventChannelSuccess, now); err != nil {
		t.Fatalf("apply channel success failed: %v", err)
	}
	if order.Status != constants.OrderStatusSuccess {
		t.Fatalf("status want success got %s", order.Status)
	}
	if order.PayTime == nil || !order.PayTime.Equal(now) {
		t.Fatalf("pay time should be set to event time, got %v", order.PayTime)
	}
}

func TestApplyOrderEventRefundRejectKeepsPayTime(t *testing.T) {
	paid := time.Now().Add(-time.Hour)
	order := &models.PaymentOrder{Status: constants.OrderStatusRefunding, PayTime: &paid}
	if err := ApplyOrderEvent(order, constants.OrderEventRefundReject, time.Now()); err != nil {
		t.Fatalf("apply refund reject failed: %v", err)
	}
	if order.Status != constants.OrderStatusSuccess {
		t.Fatalf("status want success got %s", order.Status)
	}
	if order.PayTime == nil || !order.PayTime.Equal(paid) {
		t.Fatalf("reject should not rewrite original pay time, got %v", order.PayTime)
	}
}

func TestApplyOrderEventTimeFields(t *testing.T) {
	now := time.Now()

	order := &models.PaymentOrder{Status: constants.OrderStatusCreated}
	if err := ApplyOrderEvent(order, constants.OrderEventClose, now); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if order.CloseTime == nil || !order.CloseTime.Equal(now) {
		t.Fatalf("close time should be set, got %v", order.CloseTime)
	}

	order = &models.PaymentOrder{Status: constants.OrderStatusCreated}
	if err := ApplyOrderEvent(order, constants.OrderEventCancel, now); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if order.CloseTime != nil {
		t.Fatalf("cancel should not set close time, got %v", order.CloseTime)
	}

	order = &models.PaymentOrder{Status: constants.OrderStatusRefunding}
	if err := ApplyOrderEvent(order, constants.OrderEventRefundSettle, now); err != nil {
		t.Fatalf("refund settle failed: %v", err)
	}
	if order.RefundTime == nil || !order.RefundTime.Equal(now) {
		t.Fatalf("refund time should be set, got %v", order.RefundTime)
	}
}

func TestApplyOrderEventRetryClearsChannelTrace(t *testing.T) {
	order := &models.PaymentOrder{
		Status:         constants.OrderStatusFailed,
		ChannelTradeNo: "CH-123",
		Credential:     models.JSON{"pay_url": "https://pay.example.com/x"},
		FailReason:     "channel timeout",
	}
	if err := ApplyOrderEvent(order, constants.OrderEventRetry, time.Now()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if order.Status != constants.OrderStatusCreated {
		t.Fatalf("retry should return to created, got %s", order.Status)
	}
	if order.ChannelTradeNo != "" || order.Credential != nil || order.FailReason != "" {
		t.Fatalf("retry should clear channel trace: %+v", order)
	}
}

func TestOrderEventTarget(t *testing.T) {
	if got := OrderEventTarget(constants.OrderEventChannelSuccess); got != constants.OrderStatusSuccess {
		t.Fatalf("target want success got %s", got)
	}
	if got := OrderEventTarget("no_such_event"); got != "" {
		t.Fatalf("unknown event target should be empty, got %s", got)
	}
}

func TestOrderStatusText(t *testing.T) {
	if got := OrderStatusText(constants.OrderStatusRefunding); got != "退款中" {
		t.Fatalf("unexpected text: %s", got)
	}
	if got := OrderStatusText("mystery"); got != "mystery" {
		t.Fatalf("unknown status should echo input, got %s", got)
	}
}

func TestIsOrderRefundable(t *testing.T) {
	if !IsOrderRefundable(&models.PaymentOrder{Status: constants.OrderStatusSuccess}) {
		t.Fatalf("success order should be refundable")
	}
	for _, status := range []string{
		constants.OrderStatusCreated,
		constants.OrderStatusPending,
		constants.OrderStatusRefunding,
		constants.OrderStatusRefunded,
		constants.OrderStatusClosed,
	} {
		if IsOrderRefundable(&models.PaymentOrder{Status: status}) {
			t.Fatalf("status %s should not be refundable", status)
		}
	}
}
