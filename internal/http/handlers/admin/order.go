package admin

import (
	"strings"
	"time"

	handlershared "github.com/autopay-next/internal/http/handlers/shared"
	"github.com/autopay-next/internal/http/response"
	"github.com/autopay-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListOrdersQuery 支付单列表查询参数
type ListOrdersQuery struct {
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
	MerchantID  string `form:"merchant_id"`
	Status      string `form:"status"`
	ChannelCode string `form:"channel_code"`
	Scene       string `form:"scene"`
	TradeNo     string `form:"trade_no"`
	OutTradeNo  string `form:"out_trade_no"`
	CreatedFrom string `form:"created_from"`
	CreatedTo   string `form:"created_to"`
}

// RejectRefundRequest 拒绝退款请求
type RejectRefundRequest struct {
	Note string `json:"note"`
}

// ListOrders 查询支付单列表
func (h *Handler) ListOrders(c *gin.Context) {
	var query ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	filter := repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		MerchantID:  query.MerchantID,
		Status:      query.Status,
		ChannelCode: query.ChannelCode,
		Scene:       query.Scene,
		TradeNo:     query.TradeNo,
		OutTradeNo:  query.OutTradeNo,
	}
	if from, err := time.Parse(time.RFC3339, query.CreatedFrom); err == nil {
		filter.CreatedFrom = &from
	}
	if to, err := time.Parse(time.RFC3339, query.CreatedTo); err == nil {
		filter.CreatedTo = &to
	}

	orders, total, err := h.PaymentService.ListOrders(filter)
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

// GetOrder 查询支付单详情
func (h *Handler) GetOrder(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("trade_no"))
	order, err := h.PaymentService.QueryPayment(tradeNo)
	if err != nil {
		respondOrderAdminError(c, err)
		return
	}
	response.Success(c, order)
}

// ListOrderRefunds 查询支付单的退款记录
func (h *Handler) ListOrderRefunds(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("trade_no"))
	refunds, err := h.PaymentService.ListRefunds(tradeNo)
	if err != nil {
		respondOrderAdminError(c, err)
		return
	}
	response.Success(c, refunds)
}

// SettleRefund 确认渠道退款到账，支付单进入已退款
func (h *Handler) SettleRefund(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("trade_no"))
	order, err := h.PaymentService.SettleRefund(tradeNo)
	if err != nil {
		respondOrderAdminError(c, err)
		return
	}
	requestLog(c).Infow("refund_settled", "trade_no", tradeNo)
	response.Success(c, order)
}

// RejectRefund 拒绝退款，支付单回到支付成功
func (h *Handler) RejectRefund(c *gin.Context) {
	tradeNo := strings.TrimSpace(c.Param("trade_no"))
	// 请求体可为空，note 为可选说明
	var req RejectRefundRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.PaymentService.RejectRefund(tradeNo, req.Note)
	if err != nil {
		respondOrderAdminError(c, err)
		return
	}
	requestLog(c).Infow("refund_rejected", "trade_no", tradeNo, "note", req.Note)
	response.Success(c, order)
}

// ExpireDueOrders 手动触发超时扫描
func (h *Handler) ExpireDueOrders(c *gin.Context) {
	expired, err := h.PaymentService.ExpireDueOrders(time.Now(), h.Config.Worker.ExpireScanBatch)
	if err != nil {
		respondError(c, response.CodeInternal, "超时扫描失败", err)
		return
	}
	response.Success(c, gin.H{"expired": expired})
}
