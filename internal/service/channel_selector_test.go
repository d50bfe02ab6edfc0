package service

import (
	"testing"

	"github.com/autopay-next/internal/models"

	"github.com/shopspring/decimal"
)

func selectorChannel(code string, priority int, feeRate float64) models.Channel {
	return models.Channel{
		Code:     code,
		Priority: priority,
		FeeRate:  models.NewRateFromDecimal(decimal.NewFromFloat(feeRate)),
	}
}

func TestChooseChannelEmpty(t *testing.T) {
	if got := ChooseChannel(nil); got != nil {
		t.Fatalf("empty candidates should return nil, got %+v", got)
	}
	if got := ChooseChannel([]models.Channel{}); got != nil {
		t.Fatalf("empty slice should return nil, got %+v", got)
	}
}

func TestChooseChannelByPriority(t *testing.T) {
	eligible := []models.Channel{
		selectorChannel("ALIPAY_PC", 90, 0.0055),
		selectorChannel("WECHAT_NATIVE", 100, 0.006),
		selectorChannel("UNIONPAY_GATEWAY", 80, 0.005),
	}
	got := ChooseChannel(eligible)
	if got == nil || got.Code != "WECHAT_NATIVE" {
		t.Fatalf("highest priority should win, got %+v", got)
	}
}

func TestChooseChannelFeeRateTieBreak(t *testing.T) {
	eligible := []models.Channel{
		selectorChannel("ALIPAY_PC", 10, 0.006),
		selectorChannel("WECHAT_NATIVE", 10, 0.005),
	}
	got := ChooseChannel(eligible)
	if got == nil || got.Code != "WECHAT_NATIVE" {
		t.Fatalf("lower fee rate should win at equal priority, got %+v", got)
	}
}

func TestChooseChannelCodeTieBreak(t *testing.T) {
	eligible := []models.Channel{
		selectorChannel("B_CHANNEL", 10, 0.006),
		selectorChannel("A_CHANNEL", 10, 0.006),
	}
	got := ChooseChannel(eligible)
	if got == nil || got.Code != "A_CHANNEL" {
		t.Fatalf("smaller code should win at equal priority and fee, got %+v", got)
	}
}

func TestChooseChannelDeterministic(t *testing.T) {
	eligible := []models.Channel{
		selectorChannel("C", 10, 0.006),
		selectorChannel("A", 20, 0.006),
		selectorChannel("B", 20, 0.005),
	}
	first := ChooseChannel(eligible)
	for i := 0; i < 10; i++ {
		got := ChooseChannel(eligible)
		if got == nil || got.Code != first.Code {
			t.Fatalf("selection should be deterministic, first=%s got=%+v", first.Code, got)
		}
	}
	if first.Code != "B" {
		t.Fatalf("expected B (priority 20, lower fee), got %s", first.Code)
	}
	// 入参顺序不应被修改
	if eligible[0].Code != "C" || eligible[1].Code != "A" || eligible[2].Code != "B" {
		t.Fatalf("input slice should not be reordered: %+v", eligible)
	}
}
