package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/autopay-next/internal/models"
)

// 查单接口的短 TTL 快照，状态变更时主动失效
const orderSnapshotTTL = 10 * time.Second

func orderSnapshotKey(tradeNo string) string {
	return fmt.Sprintf("order:snapshot:%s", tradeNo)
}

// GetOrderSnapshot 读取支付单快照缓存
func GetOrderSnapshot(ctx context.Context, tradeNo string) (*models.PaymentOrder, bool) {
	if !Enabled() {
		return nil, false
	}
	var order models.PaymentOrder
	found, err := GetJSON(ctx, orderSnapshotKey(tradeNo), &order)
	if err != nil || !found {
		return nil, false
	}
	return &order, true
}

// SetOrderSnapshot 写入支付单快照缓存
func SetOrderSnapshot(ctx context.Context, order *models.PaymentOrder) {
	if order == nil || order.TradeNo == "" {
		return
	}
	_ = SetJSON(ctx, orderSnapshotKey(order.TradeNo), order, orderSnapshotTTL)
}

// InvalidateOrderSnapshot 状态变更后失效快照
func InvalidateOrderSnapshot(ctx context.Context, tradeNo string) {
	if tradeNo == "" {
		return
	}
	_ = Del(ctx, orderSnapshotKey(tradeNo))
}
