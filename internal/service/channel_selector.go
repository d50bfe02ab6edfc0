package service

import (
	"sort"

	"github.com/autopay-next/internal/models"
)

// ChooseChannel 从候选渠道中确定性地选出最优渠道。
// 规则：优先级降序，同优先级按费率升序，仍相同按编码升序。
// 候选为空时返回 nil，由调用方映射为无可用渠道错误。
func ChooseChannel(eligible []models.Channel) *models.Channel {
	if len(eligible) == 0 {
		return nil
	}

	sorted := make([]models.Channel, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		if cmp := sorted[i].FeeRate.Cmp(sorted[j].FeeRate); cmp != 0 {
			return cmp < 0
		}
		return sorted[i].Code < sorted[j].Code
	})

	best := sorted[0]
	return &best
}
