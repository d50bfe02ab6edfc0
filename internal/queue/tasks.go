package queue

import (
	"encoding/json"

	"github.com/autopay-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskOrderExpire 支付单超时过期任务
	TaskOrderExpire = constants.TaskOrderExpire
	// TaskNotifyMerchant 商户异步通知任务
	TaskNotifyMerchant = constants.TaskNotifyMerchant
)

// OrderExpirePayload 支付单超时过期任务载荷
type OrderExpirePayload struct {
	TradeNo string `json:"trade_no"`
}

// MerchantNotifyPayload 商户异步通知任务载荷
type MerchantNotifyPayload struct {
	TradeNo string `json:"trade_no"`
	Status  string `json:"status"`
}

// NewOrderExpireTask 创建支付单超时过期任务
func NewOrderExpireTask(payload OrderExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderExpire, body), nil
}

// NewMerchantNotifyTask 创建商户异步通知任务
func NewMerchantNotifyTask(payload MerchantNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotifyMerchant, body), nil
}
