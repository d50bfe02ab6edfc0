package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/logger"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/repository"
)

// validHealthStatuses 合法的渠道健康状态
var validHealthStatuses = map[string]bool{
	constants.ChannelHealthHealthy:     true,
	constants.ChannelHealthUnhealthy:   true,
	constants.ChannelHealthMaintenance: true,
	constants.ChannelHealthUnknown:     true,
}

// ChannelService 支付渠道注册表服务
type ChannelService struct {
	channelRepo repository.ChannelRepository
	orderRepo   repository.OrderRepository
}

// NewChannelService 创建支付渠道服务
func NewChannelService(channelRepo repository.ChannelRepository, orderRepo repository.OrderRepository) *ChannelService {
	return &ChannelService{
		channelRepo: channelRepo,
		orderRepo:   orderRepo,
	}
}

// usageDay 当日额度归属日期（本地时区）
func usageDay(now time.Time) string {
	return now.Format("2006-01-02")
}

// ListEligible 返回指定场景与金额下的候选渠道，按选路顺序排序。
// 无候选渠道返回空切片，不视为错误。
func (s *ChannelService) ListEligible(scene string, amount int64) ([]models.Channel, error) {
	candidates, err := s.channelRepo.ListCandidates()
	if err != nil {
		return nil, err
	}

	today := usageDay(time.Now())
	eligible := make([]models.Channel, 0, len(candidates))
	for _, ch := range candidates {
		if ch.HealthStatus != constants.ChannelHealthHealthy {
			continue
		}
		if !ch.SupportsScene(scene) {
			continue
		}
		if !ch.WithinAmountRange(amount) {
			continue
		}
		if !ch.HasDailyQuota(today) {
			continue
		}
		eligible = append(eligible, ch)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority > eligible[j].Priority
		}
		if cmp := eligible[i].FeeRate.Cmp(eligible[j].FeeRate); cmp != 0 {
			return cmp < 0
		}
		return eligible[i].Code < eligible[j].Code
	})
	return eligible, nil
}

// RecordUsage 原子累加渠道当日已用额度
func (s *ChannelService) RecordUsage(code string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: usage amount must be positive", ErrValidation)
	}
	channel, err := s.channelRepo.GetByCode(code)
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrChannelNotFound
	}
	return s.channelRepo.IncrementDailyUsed(code, amount, usageDay(time.Now()))
}

// SetHealth 更新渠道健康状态
func (s *ChannelService) SetHealth(code string, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validHealthStatuses[status] {
		return fmt.Errorf("%w: unknown health status %q", ErrValidation, status)
	}
	channel, err := s.channelRepo.GetByCode(code)
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrChannelNotFound
	}
	found, err := s.channelRepo.UpdateHealth(code, status)
	if err != nil {
		return err
	}
	if !found {
		return ErrChannelNotFound
	}
	logger.Infow("channel_health_updated", "code", code, "status", status)

	// 该类型已无健康渠道时提醒运营关注
	if status != constants.ChannelHealthHealthy {
		if remain, err := s.channelRepo.CountHealthyByType(channel.ChannelType); err == nil && remain == 0 {
			logger.Warnw("channel_type_no_healthy_left", "channel_type", channel.ChannelType)
		}
	}
	return nil
}

// GetByCode 根据编码获取渠道
func (s *ChannelService) GetByCode(code string) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	return channel, nil
}

// List 渠道列表
func (s *ChannelService) List(filter repository.ChannelListFilter) ([]models.Channel, int64, error) {
	return s.channelRepo.List(filter)
}

// Create 创建渠道
func (s *ChannelService) Create(channel *models.Channel) error {
	if err := s.validateChannel(channel); err != nil {
		return err
	}
	existing, err := s.channelRepo.GetByCode(channel.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrChannelCodeExists
	}
	if channel.HealthStatus == "" {
		channel.HealthStatus = constants.ChannelHealthUnknown
	}
	if channel.DailyLimit == 0 {
		channel.DailyLimit = constants.ChannelDailyLimitUnlimited
	}
	return s.channelRepo.Create(channel)
}

// Update 更新渠道（编码不可变）
func (s *ChannelService) Update(code string, apply func(*models.Channel) error) (*models.Channel, error) {
	channel, err := s.channelRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, ErrChannelNotFound
	}
	if err := apply(channel); err != nil {
		return nil, err
	}
	channel.Code = code
	if err := s.validateChannel(channel); err != nil {
		return nil, err
	}
	if err := s.channelRepo.Update(channel); err != nil {
		return nil, err
	}
	return channel, nil
}

// Delete 删除渠道，存在未终结支付单时拒绝
func (s *ChannelService) Delete(code string) error {
	channel, err := s.channelRepo.GetByCode(code)
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrChannelNotFound
	}
	open, err := s.orderRepo.CountOpenByChannelCode(code)
	if err != nil {
		return err
	}
	if open > 0 {
		return ErrChannelInUse
	}
	return s.channelRepo.Delete(channel.ID)
}

// ResetDailyUsage 跨日清零已用额度（定时任务调用）
func (s *ChannelService) ResetDailyUsage(now time.Time) (int64, error) {
	return s.channelRepo.ResetDailyUsed(usageDay(now))
}

func (s *ChannelService) validateChannel(channel *models.Channel) error {
	if strings.TrimSpace(channel.Code) == "" {
		return fmt.Errorf("%w: channel code is required", ErrValidation)
	}
	if strings.TrimSpace(channel.Name) == "" {
		return fmt.Errorf("%w: channel name is required", ErrValidation)
	}
	if channel.FeeRate.IsNegative() {
		return fmt.Errorf("%w: fee rate must be non-negative", ErrValidation)
	}
	if channel.MinAmount < 0 || channel.MaxAmount < 0 {
		return fmt.Errorf("%w: amount limits must be non-negative", ErrValidation)
	}
	if channel.MaxAmount > 0 && channel.MinAmount > channel.MaxAmount {
		return fmt.Errorf("%w: min amount exceeds max amount", ErrValidation)
	}
	if channel.HealthStatus != "" && !validHealthStatuses[channel.HealthStatus] {
		return fmt.Errorf("%w: unknown health status %q", ErrValidation, channel.HealthStatus)
	}
	return nil
}
