package repository

import (
	"errors"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"

	"gorm.io/gorm"
)

// ChannelRepository 支付渠道数据访问接口
type ChannelRepository interface {
	Create(channel *models.Channel) error
	Update(channel *models.Channel) error
	Delete(id uint) error
	GetByID(id uint) (*models.Channel, error)
	GetByCode(code string) (*models.Channel, error)
	ListCandidates() ([]models.Channel, error)
	List(filter ChannelListFilter) ([]models.Channel, int64, error)
	IncrementDailyUsed(code string, amount int64, today string) error
	UpdateHealth(code string, status string) (bool, error)
	ResetDailyUsed(today string) (int64, error)
	CountHealthyByType(channelType string) (int64, error)
	WithTx(tx *gorm.DB) *GormChannelRepository
}

// GormChannelRepository GORM 实现
type GormChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository 创建支付渠道仓库
func NewChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// WithTx 绑定事务
func (r *GormChannelRepository) WithTx(tx *gorm.DB) *GormChannelRepository {
	if tx == nil {
		return r
	}
	return &GormChannelRepository{db: tx}
}

// Create 创建支付渠道
func (r *GormChannelRepository) Create(channel *models.Channel) error {
	return r.db.Create(channel).Error
}

// Update 更新支付渠道
func (r *GormChannelRepository) Update(channel *models.Channel) error {
	return r.db.Save(channel).Error
}

// Delete 删除支付渠道
func (r *GormChannelRepository) Delete(id uint) error {
	return r.db.Delete(&models.Channel{}, id).Error
}

// GetByID 根据 ID 获取支付渠道
func (r *GormChannelRepository) GetByID(id uint) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.First(&channel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// GetByCode 根据渠道编码获取支付渠道
func (r *GormChannelRepository) GetByCode(code string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.Where("code = ?", code).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &channel, nil
}

// ListCandidates 获取全部启用渠道，供选路在内存中过滤排序
func (r *GormChannelRepository) ListCandidates() ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.db.Where("enabled = ?", true).Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// List 支付渠道列表
func (r *GormChannelRepository) List(filter ChannelListFilter) ([]models.Channel, int64, error) {
	query := r.db.Model(&models.Channel{})

	if filter.ChannelType != "" {
		query = query.Where("channel_type = ?", filter.ChannelType)
	}
	if filter.HealthStatus != "" {
		query = query.Where("health_status = ?", filter.HealthStatus)
	}
	if filter.EnabledOnly {
		query = query.Where("enabled = ?", true)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("code LIKE ? OR name LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var channels []models.Channel
	if err := query.Order("priority DESC, code ASC").Find(&channels).Error; err != nil {
		return nil, 0, err
	}
	return channels, total, nil
}

// IncrementDailyUsed 原子累加当日已用额度，跨日自动翻转
func (r *GormChannelRepository) IncrementDailyUsed(code string, amount int64, today string) error {
	// 当日计数直接累加
	res := r.db.Model(&models.Channel{}).
		Where("code = ? AND usage_date = ?", code, today).
		UpdateColumn("daily_used", gorm.Expr("daily_used + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 首笔或跨日：翻转到当日后以本次金额起算
	res = r.db.Model(&models.Channel{}).
		Where("code = ? AND usage_date <> ?", code, today).
		Updates(map[string]interface{}{"usage_date": today, "daily_used": amount})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 并发翻转时另一请求可能已切到当日，重试累加
	res = r.db.Model(&models.Channel{}).
		Where("code = ? AND usage_date = ?", code, today).
		UpdateColumn("daily_used", gorm.Expr("daily_used + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateHealth 更新渠道健康状态，返回渠道是否存在
func (r *GormChannelRepository) UpdateHealth(code string, status string) (bool, error) {
	res := r.db.Model(&models.Channel{}).
		Where("code = ?", code).
		Update("health_status", status)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// 状态未变化时 RowsAffected 也可能为 0，需要区分渠道不存在
	var count int64
	if err := r.db.Model(&models.Channel{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResetDailyUsed 将非当日的已用额度清零（定时任务调用）
func (r *GormChannelRepository) ResetDailyUsed(today string) (int64, error) {
	res := r.db.Model(&models.Channel{}).
		Where("usage_date <> ? AND daily_used > 0", today).
		Updates(map[string]interface{}{"usage_date": today, "daily_used": 0})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CountHealthyByType 统计指定类型下启用且健康的渠道数
func (r *GormChannelRepository) CountHealthyByType(channelType string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Channel{}).
		Where("channel_type = ? AND enabled = ? AND health_status = ?", channelType, true, constants.ChannelHealthHealthy).
		Count(&count).Error
	return count, err
}
