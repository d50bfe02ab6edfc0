package repository

import (
	"errors"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"

	"gorm.io/gorm"
)

// RefundRepository 退款数据访问接口
type RefundRepository interface {
	Create(refund *models.Refund) error
	Update(refund *models.Refund) error
	GetByRefundNo(refundNo string) (*models.Refund, error)
	GetPendingByOrderID(orderID uint) (*models.Refund, error)
	ListByOrderID(orderID uint) ([]models.Refund, error)
	List(filter RefundListFilter) ([]models.Refund, int64, error)
	WithTx(tx *gorm.DB) *GormRefundRepository
}

// GormRefundRepository GORM 实现
type GormRefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓库
func NewRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	if tx == nil {
		return r
	}
	return &GormRefundRepository{db: tx}
}

// Create 创建退款记录
func (r *GormRefundRepository) Create(refund *models.Refund) error {
	return r.db.Create(refund).Error
}

// Update 更新退款记录
func (r *GormRefundRepository) Update(refund *models.Refund) error {
	return r.db.Save(refund).Error
}

// GetByRefundNo 根据退款流水号获取退款记录
func (r *GormRefundRepository) GetByRefundNo(refundNo string) (*models.Refund, error) {
	var refund models.Refund
	if err := r.db.Where("refund_no = ?", refundNo).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// GetPendingByOrderID 获取支付单上处理中的退款
func (r *GormRefundRepository) GetPendingByOrderID(orderID uint) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.Where("order_id = ? AND status = ?", orderID, constants.RefundStatusPending).
		Order("id DESC").
		First(&refund).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &refund, nil
}

// ListByOrderID 获取支付单的全部退款记录
func (r *GormRefundRepository) ListByOrderID(orderID uint) ([]models.Refund, error) {
	var refunds []models.Refund
	if err := r.db.Where("order_id = ?", orderID).Order("id ASC").Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}

// List 退款列表
func (r *GormRefundRepository) List(filter RefundListFilter) ([]models.Refund, int64, error) {
	query := r.db.Model(&models.Refund{})

	if filter.OrderID > 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var refunds []models.Refund
	if err := query.Order("id DESC").Find(&refunds).Error; err != nil {
		return nil, 0, err
	}
	return refunds, total, nil
}
