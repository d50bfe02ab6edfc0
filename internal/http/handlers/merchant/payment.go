package merchant

import (
	"errors"
	"strings"

	"github.com/autopay-next/internal/cache"
	"github.com/autopay-next/internal/constants"
	handlershared "github.com/autopay-next/internal/http/handlers/shared"
	"github.com/autopay-next/internal/http/response"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/repository"
	"github.com/autopay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentRequest 创建支付单请求
type CreatePaymentRequest struct {
	OutTradeNo    string      `json:"out_trade_no" binding:"required"`
	Subject       string      `json:"subject" binding:"required"`
	Amount        int64       `json:"amount" binding:"required"`
	Currency      string      `json:"currency"`
	Scene         string      `json:"scene" binding:"required"`
	NotifyURL     string      `json:"notify_url"`
	Extra         models.JSON `json:"extra"`
	ExpireMinutes int         `json:"expire_minutes"`
}

// RefundRequest 发起退款请求
type RefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// ListPaymentsQuery 支付单列表查询参数
type ListPaymentsQuery struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	Status      string `form:"status"`
	ChannelCode string `form:"channel_code"`
	Scene       string `form:"scene"`
	OutTradeNo  string `form:"out_trade_no"`
}

// CreatePayment 创建支付单并完成渠道路由
func (h *Handler) CreatePayment(c *gin.Context) {
	merchantID, ok := handlershared.MerchantID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	order, err := h.PaymentService.CreatePayment(service.CreatePaymentInput{
		MerchantID:    merchantID,
		OutTradeNo:    req.OutTradeNo,
		Subject:       req.Subject,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Scene:         req.Scene,
		NotifyURL:     req.NotifyURL,
		ClientIP:      c.ClientIP(),
		Extra:         req.Extra,
		ExpireMinutes: req.ExpireMinutes,
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}

	response.Success(c, order)
}

// GetPayment 查询支付单详情
func (h *Handler) GetPayment(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	response.Success(c, order)
}

// GetPaymentByOutTradeNo 按商户订单号查询支付单
func (h *Handler) GetPaymentByOutTradeNo(c *gin.Context) {
	merchantID, ok := handlershared.MerchantID(c)
	if !ok {
		return
	}
	outTradeNo := strings.TrimSpace(c.Param("out_trade_no"))
	if outTradeNo == "" {
		respondError(c, response.CodeBadRequest, "商户订单号不能为空", nil)
		return
	}

	order, err := h.PaymentService.QueryPaymentByOutTradeNo(merchantID, outTradeNo)
	if err != nil {
		respondPaymentStateError(c, err)
		return
	}
	response.Success(c, order)
}

// ListPayments 查询支付单列表
func (h *Handler) ListPayments(c *gin.Context) {
	merchantID, ok := handlershared.MerchantID(c)
	if !ok {
		return
	}

	var query ListPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	orders, total, err := h.PaymentService.ListOrders(repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		MerchantID:  merchantID,
		Status:      query.Status,
		ChannelCode: query.ChannelCode,
		Scene:       query.Scene,
		OutTradeNo:  query.OutTradeNo,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询支付单列表失败", err)
		return
	}

	response.SuccessWithPage(c, orders, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// SubmitPayment 将支付单提交到已路由的渠道并回写提交结果
func (h *Handler) SubmitPayment(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	// 仅 created 允许提交，防止重复 POST 把已提交的支付单再次推给渠道
	if order.Status != constants.OrderStatusCreated {
		respondError(c, response.CodeConflict, "当前状态不允许提交渠道", nil)
		return
	}

	channel, err := h.ChannelService.GetByCode(order.ChannelCode)
	if err != nil {
		respondPaymentSubmitError(c, err)
		return
	}
	adapter, err := h.GatewayRegistry.Get(channel.ChannelType)
	if err != nil {
		respondPaymentSubmitError(c, err)
		return
	}

	input := service.SubmissionResultInput{}
	result, err := adapter.Submit(c.Request.Context(), channel, order)
	if err != nil {
		requestLog(c).Warnw("payment_submit_gateway_failed",
			"trade_no", order.TradeNo,
			"channel_code", channel.Code,
			"error", err,
		)
		input.FailReason = err.Error()
	} else {
		input.Success = result.Success
		input.ChannelTradeNo = result.ChannelTradeNo
		input.Credential = result.Credential
		input.FailReason = result.FailReason
	}

	updated, err := h.PaymentService.ReportSubmissionResult(order.TradeNo, input)
	if err != nil {
		respondPaymentSubmitError(c, err)
		return
	}
	response.Success(c, updated)
}

// ClosePayment 关闭支付单
func (h *Handler) ClosePayment(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	updated, err := h.PaymentService.CloseOrder(order.TradeNo)
	if err != nil {
		respondPaymentStateError(c, err)
		return
	}
	response.Success(c, updated)
}

// CancelPayment 主动撤销支付单
func (h *Handler) CancelPayment(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	updated, err := h.PaymentService.CancelOrder(order.TradeNo)
	if err != nil {
		respondPaymentStateError(c, err)
		return
	}
	response.Success(c, updated)
}

// RetryPayment 对失败或超时的支付单发起重试
func (h *Handler) RetryPayment(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	updated, err := h.PaymentService.RetryPayment(order.TradeNo)
	if err != nil {
		respondPaymentStateError(c, err)
		return
	}
	response.Success(c, updated)
}

// RequestRefund 发起退款
func (h *Handler) RequestRefund(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	updated, err := h.PaymentService.RequestRefund(order.TradeNo, req.Amount, req.Reason)
	if err != nil {
		respondRefundError(c, err)
		return
	}
	response.Success(c, updated)
}

// ListRefunds 查询支付单的退款记录
func (h *Handler) ListRefunds(c *gin.Context) {
	order, ok := h.loadMerchantOrder(c)
	if !ok {
		return
	}
	refunds, err := h.PaymentService.ListRefunds(order.TradeNo)
	if err != nil {
		respondRefundError(c, err)
		return
	}
	response.Success(c, refunds)
}

// loadMerchantOrder 读取路径中的支付单并校验归属商户。
// 详情查询优先命中短时快照缓存，减少对订单表的读压力。
func (h *Handler) loadMerchantOrder(c *gin.Context) (*models.PaymentOrder, bool) {
	merchantID, ok := handlershared.MerchantID(c)
	if !ok {
		return nil, false
	}
	tradeNo := strings.TrimSpace(c.Param("trade_no"))
	if tradeNo == "" {
		respondError(c, response.CodeBadRequest, "平台交易号不能为空", nil)
		return nil, false
	}

	if order, hit := cache.GetOrderSnapshot(c.Request.Context(), tradeNo); hit {
		if order.MerchantID != merchantID {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
			return nil, false
		}
		return order, true
	}

	order, err := h.PaymentService.QueryPayment(tradeNo)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
		} else {
			respondError(c, response.CodeInternal, "查询支付单失败", err)
		}
		return nil, false
	}
	if order.MerchantID != merchantID {
		respondError(c, response.CodeNotFound, "支付单不存在", nil)
		return nil, false
	}

	cache.SetOrderSnapshot(c.Request.Context(), order)
	return order, true
}
