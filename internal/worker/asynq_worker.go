package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/provider"
	"github.com/autopay-next/internal/queue"
	"github.com/autopay-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container

	httpClient *http.Client
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	timeout := 5 * time.Second
	if c != nil && c.Config != nil && c.Config.Worker.NotifyTimeoutMS > 0 {
		timeout = time.Duration(c.Config.Worker.NotifyTimeoutMS) * time.Millisecond
	}
	return &Consumer{
		Container:  c,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskOrderExpire, c.handleOrderExpire)
	mux.HandleFunc(queue.TaskNotifyMerchant, c.handleMerchantNotify)
}

func (c *Consumer) handleOrderExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.OrderExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_expire_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.TradeNo) == "" {
		logger.Debugw("worker_order_expire_skip_empty_trade_no")
		return nil
	}

	order, err := c.PaymentService.ExpireOrder(payload.TradeNo, time.Now())
	if err != nil {
		// 已支付、已关闭或尚未到期的支付单不再重试
		if errors.Is(err, service.ErrOrderNotFound) || errors.Is(err, service.ErrInvalidStateTransition) {
			logger.Debugw("worker_order_expire_skip", "trade_no", payload.TradeNo, "reason", err.Error())
			return nil
		}
		logger.Warnw("worker_order_expire_failed", "trade_no", payload.TradeNo, "error", err)
		return err
	}
	logger.Infow("worker_order_expired", "trade_no", order.TradeNo, "status", order.Status)
	return nil
}

// merchantNotifyBody 商户异步通知报文
type merchantNotifyBody struct {
	TradeNo        string `json:"trade_no"`
	OutTradeNo     string `json:"out_trade_no"`
	MerchantID     string `json:"merchant_id"`
	Status         string `json:"status"`
	Amount         int64  `json:"amount"`
	AmountText     string `json:"amount_text"`
	Currency       string `json:"currency"`
	ChannelCode    string `json:"channel_code"`
	ChannelTradeNo string `json:"channel_trade_no"`
	PayTime        string `json:"pay_time,omitempty"`
	NotifiedAt     string `json:"notified_at"`
}

func (c *Consumer) handleMerchantNotify(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.MerchantNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_merchant_notify_unmarshal_failed", "error", err)
		return err
	}

	order, err := c.PaymentService.QueryPayment(payload.TradeNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			logger.Debugw("worker_merchant_notify_skip_order_not_found", "trade_no", payload.TradeNo)
			return nil
		}
		return err
	}
	notifyURL := strings.TrimSpace(order.NotifyURL)
	if notifyURL == "" {
		logger.Debugw("worker_merchant_notify_skip_empty_url", "trade_no", order.TradeNo)
		return nil
	}

	body := merchantNotifyBody{
		TradeNo:        order.TradeNo,
		OutTradeNo:     order.OutTradeNo,
		MerchantID:     order.MerchantID,
		Status:         order.Status,
		Amount:         order.Amount,
		AmountText:     models.NewMoneyFromMinorUnits(order.Amount).String(),
		Currency:       order.Currency,
		ChannelCode:    order.ChannelCode,
		ChannelTradeNo: order.ChannelTradeNo,
		NotifiedAt:     time.Now().Format(time.RFC3339),
	}
	if order.PayTime != nil {
		body.PayTime = order.PayTime.Format(time.RFC3339)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, notifyURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warnw("worker_merchant_notify_request_failed", "trade_no", order.TradeNo, "error", err)
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warnw("worker_merchant_notify_rejected",
			"trade_no", order.TradeNo,
			"status_code", resp.StatusCode,
			"body", strings.TrimSpace(string(respBody)),
		)
		return fmt.Errorf("merchant notify rejected: status %d", resp.StatusCode)
	}

	logger.Infow("worker_merchant_notified",
		"trade_no", order.TradeNo,
		"status", order.Status,
		"status_code", resp.StatusCode,
	)
	return nil
}
