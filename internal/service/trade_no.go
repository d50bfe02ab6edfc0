package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTradeNo 生成平台流水号，格式 PAY_<毫秒时间戳>_<uuid前8位>
func GenerateTradeNo() string {
	return generateNo("PAY")
}

// GenerateRefundNo 生成退款流水号，格式 RFD_<毫秒时间戳>_<uuid前8位>
func GenerateRefundNo() string {
	return generateNo("RFD")
}

func generateNo(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), id[:8])
}
