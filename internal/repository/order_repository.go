package repository

import (
	"errors"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// openOrderStatuses 仍处于支付流程中的状态
var openOrderStatuses = []string{
	constants.OrderStatusCreated,
	constants.OrderStatusPending,
}

// OrderRepository 支付单数据访问接口
type OrderRepository interface {
	Create(order *models.PaymentOrder) error
	Update(order *models.PaymentOrder) error
	GetByID(id uint) (*models.PaymentOrder, error)
	GetByTradeNo(tradeNo string) (*models.PaymentOrder, error)
	GetByTradeNoForUpdate(tradeNo string) (*models.PaymentOrder, error)
	GetOpenByOutTradeNo(merchantID, outTradeNo string) (*models.PaymentOrder, error)
	GetByOutTradeNo(merchantID, outTradeNo string) (*models.PaymentOrder, error)
	ListExpired(now time.Time, limit int) ([]models.PaymentOrder, error)
	ListAdmin(filter OrderListFilter) ([]models.PaymentOrder, int64, error)
	CountOpenByChannelCode(code string) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建支付单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建支付单
func (r *GormOrderRepository) Create(order *models.PaymentOrder) error {
	return r.db.Create(order).Error
}

// Update 更新支付单
func (r *GormOrderRepository) Update(order *models.PaymentOrder) error {
	return r.db.Save(order).Error
}

// GetByID 根据 ID 获取支付单
func (r *GormOrderRepository) GetByID(id uint) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTradeNo 根据平台流水号获取支付单
func (r *GormOrderRepository) GetByTradeNo(tradeNo string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := r.db.Where("trade_no = ?", tradeNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByTradeNoForUpdate 根据平台流水号获取支付单并加行锁（需在事务内调用）
func (r *GormOrderRepository) GetByTradeNoForUpdate(tradeNo string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("trade_no = ?", tradeNo).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetOpenByOutTradeNo 查询商户订单号对应的未终结支付单（幂等去重用）
func (r *GormOrderRepository) GetOpenByOutTradeNo(merchantID, outTradeNo string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.Where("merchant_id = ? AND out_trade_no = ? AND status IN ?", merchantID, outTradeNo, openOrderStatuses).
		Order("id DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOutTradeNo 查询商户订单号对应的最新支付单
func (r *GormOrderRepository) GetByOutTradeNo(merchantID, outTradeNo string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := r.db.Where("merchant_id = ? AND out_trade_no = ?", merchantID, outTradeNo).
		Order("id DESC").
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListExpired 查询已到期但仍未终结的支付单
func (r *GormOrderRepository) ListExpired(now time.Time, limit int) ([]models.PaymentOrder, error) {
	var orders []models.PaymentOrder
	query := r.db.Where("status IN ? AND expire_time IS NOT NULL AND expire_time <= ?", openOrderStatuses, now).
		Order("expire_time ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListAdmin 后台支付单列表
func (r *GormOrderRepository) ListAdmin(filter OrderListFilter) ([]models.PaymentOrder, int64, error) {
	query := r.db.Model(&models.PaymentOrder{})

	if filter.MerchantID != "" {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ChannelCode != "" {
		query = query.Where("channel_code = ?", filter.ChannelCode)
	}
	if filter.Scene != "" {
		query = query.Where("scene = ?", filter.Scene)
	}
	if filter.TradeNo != "" {
		query = query.Where("trade_no = ?", filter.TradeNo)
	}
	if filter.OutTradeNo != "" {
		query = query.Where("out_trade_no = ?", filter.OutTradeNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.PaymentOrder
	if err := query.Order("id DESC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// CountOpenByChannelCode 统计渠道上未终结的支付单数（删除渠道前校验）
func (r *GormOrderRepository) CountOpenByChannelCode(code string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PaymentOrder{}).
		Where("channel_code = ? AND status IN ?", code, openOrderStatuses).
		Count(&count).Error
	return count, err
}
