package merchant

import (
	"errors"

	"github.com/autopay-next/internal/gateway"
	"github.com/autopay-next/internal/http/response"
	"github.com/autopay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
// msg 为空时直接使用业务错误文本，用于需要透出细节的错误（如状态流转冲突）。
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

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest},
	{target: service.ErrNoChannelAvailable, code: response.CodeBadRequest, msg: "没有可用的支付渠道"},
	{target: service.ErrDuplicateOutTradeNo, code: response.CodeConflict, msg: "商户订单号已存在未完成的支付单"},
}

var paymentStateErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "支付单不存在"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict},
	{target: service.ErrNoChannelAvailable, code: response.CodeBadRequest, msg: "没有可用的支付渠道"},
}

var paymentSubmitErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "支付单不存在"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict},
	{target: service.ErrChannelNotFound, code: response.CodeBadRequest, msg: "支付渠道不存在"},
	{target: gateway.ErrAdapterNotFound, code: response.CodeBadRequest, msg: "渠道类型暂不支持提交"},
}

var refundErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "支付单不存在"},
	{target: service.ErrRefundNotFound, code: response.CodeNotFound, msg: "退款记录不存在"},
	{target: service.ErrRefundAmountExceeded, code: response.CodeBadRequest, msg: "退款金额超过支付单金额"},
	{target: service.ErrRefundInProgress, code: response.CodeConflict, msg: "已有退款在处理中"},
	{target: service.ErrInvalidStateTransition, code: response.CodeConflict},
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "创建支付单失败")
}

func respondPaymentStateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentStateErrorRules, response.CodeInternal, "支付单操作失败")
}

func respondPaymentSubmitError(c *gin.Context, err error) {
	respondWithMappedError(c, err, paymentSubmitErrorRules, response.CodeInternal, "支付单提交失败")
}

func respondRefundError(c *gin.Context, err error) {
	respondWithMappedError(c, err, refundErrorRules, response.CodeInternal, "退款操作失败")
}
