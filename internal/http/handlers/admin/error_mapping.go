package admin

import (
	"errors"

	"github.com/autopay-next/internal/http/response"
	"github.com/autopay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
// msg 为空时直接使用业务错误文本。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			msg := rule.msg
			if msg == "" {
				msg = err.Error()
			}
			respondError(c, rule.code, msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var channelErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest},
	{target: service.ErrChannelNotFound, code: response.CodeNotFound, msg: "支付渠道不存在"},
	{target: service.ErrChannelCodeExists, code: response.CodeConflict, msg: "渠道编码已存在"},
	{target: service.ErrChannelInUse, code: response.CodeConflict, msg: "渠道存在未终结支付单，无法删除"},
}

var orderAdminErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "支付单不存在"},
	{target: service.ErrRefundNotFound, code: response.CodeNotFound, msg: "退款记录不存在"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict},
}

func respondChannelError(c *gin.Context, err error) {
	respondWithMappedError(c, err, channelErrorRules, response.CodeInternal, "渠道操作失败")
}

func respondOrderAdminError(c *gin.Context, err error) {
	respondWithMappedError(c, err, orderAdminErrorRules, response.CodeInternal, "支付单操作失败")
}
