package service

import "errors"

// 业务错误定义，由 HTTP 层统一映射为响应码
var (
	ErrValidation             = errors.New("validation failed")
	ErrOrderNotFound          = errors.New("payment order not found")
	ErrChannelNotFound        = errors.New("payment channel not found")
	ErrChannelCodeExists      = errors.New("payment channel code already exists")
	ErrChannelInUse           = errors.New("payment channel has open orders")
	ErrNoChannelAvailable     = errors.New("no payment channel available")
	ErrInvalidStateTransition = errors.New("invalid order state transition")
	ErrRefundNotFound         = errors.New("refund not found")
	ErrRefundAmountExceeded   = errors.New("refund amount exceeds paid amount")
	ErrRefundInProgress       = errors.New("another refund is in progress")
	ErrDuplicateOutTradeNo    = errors.New("out trade no already has an open order")
)
