package admin

import (
	"errors"
	"strings"
	"time"

	handlershared "github.com/autopay-next/internal/http/handlers/shared"
	"github.com/autopay-next/internal/http/response"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/repository"
	"github.com/autopay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateChannelRequest 创建支付渠道请求
type CreateChannelRequest struct {
	Code         string             `json:"code" binding:"required"`
	Name         string             `json:"name" binding:"required"`
	ChannelType  string             `json:"channel_type" binding:"required"`
	FeeRate      *models.Rate       `json:"fee_rate"`
	Priority     int                `json:"priority"`
	Scenes       models.StringArray `json:"scenes"`
	MinAmount    int64              `json:"min_amount"`
	MaxAmount    int64              `json:"max_amount"`
	DailyLimit   int64              `json:"daily_limit"`
	Enabled      *bool              `json:"enabled"`
	HealthStatus string             `json:"health_status"`
	ConfigJSON   models.JSON        `json:"config_json"`
}

// UpdateChannelRequest 更新支付渠道请求（code 不可变）
type UpdateChannelRequest struct {
	Name         string              `json:"name"`
	ChannelType  string              `json:"channel_type"`
	FeeRate      *models.Rate        `json:"fee_rate"`
	Priority     *int                `json:"priority"`
	Scenes       *models.StringArray `json:"scenes"`
	MinAmount    *int64              `json:"min_amount"`
	MaxAmount    *int64              `json:"max_amount"`
	DailyLimit   *int64              `json:"daily_limit"`
	Enabled      *bool               `json:"enabled"`
	HealthStatus string              `json:"health_status"`
	ConfigJSON   models.JSON         `json:"config_json"`
}

// SetChannelHealthRequest 更新渠道健康状态请求
type SetChannelHealthRequest struct {
	HealthStatus string `json:"health_status" binding:"required"`
}

// ListChannelsQuery 渠道列表查询参数
type ListChannelsQuery struct {
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
	ChannelType  string `form:"channel_type"`
	HealthStatus string `form:"health_status"`
	EnabledOnly  bool   `form:"enabled_only"`
	Search       string `form:"search"`
}

// ListChannels 查询渠道列表
func (h *Handler) ListChannels(c *gin.Context) {
	var query ListChannelsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	channels, total, err := h.ChannelService.List(repository.ChannelListFilter{
		Page:         page,
		PageSize:     pageSize,
		ChannelType:  query.ChannelType,
		HealthStatus: query.HealthStatus,
		EnabledOnly:  query.EnabledOnly,
		Search:       query.Search,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询渠道列表失败", err)
		return
	}

	response.SuccessWithPage(c, channels, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetChannel 查询渠道详情
func (h *Handler) GetChannel(c *gin.Context) {
	channel, ok := h.loadChannel(c)
	if !ok {
		return
	}
	response.Success(c, channel)
}

// CreateChannel 创建支付渠道
func (h *Handler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	channel := &models.Channel{
		Code:         strings.TrimSpace(req.Code),
		Name:         req.Name,
		ChannelType:  strings.ToUpper(strings.TrimSpace(req.ChannelType)),
		Priority:     req.Priority,
		Scenes:       req.Scenes,
		MinAmount:    req.MinAmount,
		MaxAmount:    req.MaxAmount,
		DailyLimit:   req.DailyLimit,
		Enabled:      true,
		HealthStatus: req.HealthStatus,
		ConfigJSON:   req.ConfigJSON,
	}
	if req.FeeRate != nil {
		channel.FeeRate = *req.FeeRate
	}
	if req.Enabled != nil {
		channel.Enabled = *req.Enabled
	}

	if err := h.ChannelService.Create(channel); err != nil {
		respondChannelError(c, err)
		return
	}
	response.Success(c, channel)
}

// UpdateChannel 更新支付渠道
func (h *Handler) UpdateChannel(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	var req UpdateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	channel, err := h.ChannelService.Update(code, func(channel *models.Channel) error {
		if req.Name != "" {
			channel.Name = req.Name
		}
		if req.ChannelType != "" {
			channel.ChannelType = strings.ToUpper(strings.TrimSpace(req.ChannelType))
		}
		if req.FeeRate != nil {
			channel.FeeRate = *req.FeeRate
		}
		if req.Priority != nil {
			channel.Priority = *req.Priority
		}
		if req.Scenes != nil {
			channel.Scenes = *req.Scenes
		}
		if req.MinAmount != nil {
			channel.MinAmount = *req.MinAmount
		}
		if req.MaxAmount != nil {
			channel.MaxAmount = *req.MaxAmount
		}
		if req.DailyLimit != nil {
			channel.DailyLimit = *req.DailyLimit
		}
		if req.Enabled != nil {
			channel.Enabled = *req.Enabled
		}
		if req.HealthStatus != "" {
			channel.HealthStatus = req.HealthStatus
		}
		if req.ConfigJSON != nil {
			channel.ConfigJSON = req.ConfigJSON
		}
		return nil
	})
	if err != nil {
		respondChannelError(c, err)
		return
	}
	response.Success(c, channel)
}

// DeleteChannel 删除支付渠道，存在未终结支付单时拒绝
func (h *Handler) DeleteChannel(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	if err := h.ChannelService.Delete(code); err != nil {
		respondChannelError(c, err)
		return
	}
	response.Success(c, gin.H{"code": code})
}

// SetChannelHealth 更新渠道健康状态
func (h *Handler) SetChannelHealth(c *gin.Context) {
	code := strings.TrimSpace(c.Param("code"))
	var req SetChannelHealthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	if err := h.ChannelService.SetHealth(code, req.HealthStatus); err != nil {
		respondChannelError(c, err)
		return
	}
	requestLog(c).Infow("channel_health_updated",
		"channel_code", code,
		"health_status", req.HealthStatus,
	)
	response.Success(c, gin.H{"code": code, "health_status": req.HealthStatus})
}

// ResetChannelUsage 手动触发当日额度清零
func (h *Handler) ResetChannelUsage(c *gin.Context) {
	affected, err := h.ChannelService.ResetDailyUsage(time.Now())
	if err != nil {
		respondError(c, response.CodeInternal, "渠道额度清零失败", err)
		return
	}
	response.Success(c, gin.H{"affected": affected})
}

func (h *Handler) loadChannel(c *gin.Context) (*models.Channel, bool) {
	code := strings.TrimSpace(c.Param("code"))
	channel, err := h.ChannelService.GetByCode(code)
	if err != nil {
		if errors.Is(err, service.ErrChannelNotFound) {
			respondError(c, response.CodeNotFound, "支付渠道不存在", nil)
		} else {
			respondError(c, response.CodeInternal, "查询渠道失败", err)
		}
		return nil, false
	}
	return channel, true
}
