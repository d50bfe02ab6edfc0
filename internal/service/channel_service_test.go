package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"
	"github.com/autopay-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupChannelServiceTest(t *testing.T) (*ChannelService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:channel_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Channel{}, &models.PaymentOrder{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	channelRepo := repository.NewChannelRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	return NewChannelService(channelRepo, orderRepo), db
}

func testChannel(code string) models.Channel {
	return models.Channel{
		Code:         code,
		Name:         "测试渠道 " + code,
		ChannelType:  constants.ChannelTypeWechat,
		FeeRate:      models.NewRateFromDecimal(decimal.NewFromFloat(0.006)),
		Priority:     10,
		Scenes:       models.StringArray{constants.PaymentSceneWeb},
		DailyLimit:   constants.ChannelDailyLimitUnlimited,
		Enabled:      true,
		HealthStatus: constants.ChannelHealthHealthy,
	}
}

func TestListEligibleFilters(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	today := usageDay(time.Now())

	disabled := testChannel("DISABLED")
	disabled.Enabled = false

	unhealthy := testChannel("UNHEALTHY")
	unhealthy.HealthStatus = constants.ChannelHealthUnhealthy

	maintenance := testChannel("MAINTENANCE")
	maintenance.HealthStatus = constants.ChannelHealthMaintenance

	wrongScene := testChannel("APP_ONLY")
	wrongScene.Scenes = models.StringArray{constants.PaymentSceneApp}

	tooSmall := testChannel("MIN_20000")
	tooSmall.MinAmount = 20000

	tooBig := testChannel("MAX_5000")
	tooBig.MaxAmount = 5000

	quotaFull := testChannel("QUOTA_FULL")
	quotaFull.DailyLimit = 10000
	quotaFull.DailyUsed = 10000
	quotaFull.UsageDate = today

	quotaLeft := testChannel("QUOTA_LEFT")
	quotaLeft.DailyLimit = 10000
	quotaLeft.DailyUsed = 9999
	quotaLeft.UsageDate = today

	ok := testChannel("OK")

	channels := []models.Channel{disabled, unhealthy, maintenance, wrongScene, tooSmall, tooBig, quotaFull, quotaLeft, ok}
	if err := db.Create(&channels).Error; err != nil {
		t.Fatalf("seed channels failed: %v", err)
	}

	eligible, err := svc.ListEligible(constants.PaymentSceneWeb, 10000)
	if err != nil {
		t.Fatalf("list eligible failed: %v", err)
	}
	got := map[string]bool{}
	for _, ch := range eligible {
		got[ch.Code] = true
	}
	if len(eligible) != 2 || !got["OK"] || !got["QUOTA_LEFT"] {
		t.Fatalf("eligible want [OK QUOTA_LEFT] got %v", got)
	}
}

func TestListEligibleQuotaCrossDay(t *testing.T) {
	svc, db := setupChannelServiceTest(t)

	// 昨日用满额度，今日尚未翻转，应视为已清零
	stale := testChannel("STALE_USAGE")
	stale.DailyLimit = 10000
	stale.DailyUsed = 10000
	stale.UsageDate = usageDay(time.Now().AddDate(0, 0, -1))
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	eligible, err := svc.ListEligible(constants.PaymentSceneWeb, 100)
	if err != nil {
		t.Fatalf("list eligible failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].Code != "STALE_USAGE" {
		t.Fatalf("stale usage channel should be eligible, got %+v", eligible)
	}
}

func TestListEligibleEmpty(t *testing.T) {
	svc, _ := setupChannelServiceTest(t)
	eligible, err := svc.ListEligible(constants.PaymentSceneWeb, 100)
	if err != nil {
		t.Fatalf("list eligible failed: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("expected empty result, got %+v", eligible)
	}
}

func TestListEligibleOrdering(t *testing.T) {
	svc, db := setupChannelServiceTest(t)

	low := testChannel("LOW_PRIORITY")
	low.Priority = 1

	cheap := testChannel("A_CHEAP")
	cheap.Priority = 10
	cheap.FeeRate = models.NewRateFromDecimal(decimal.NewFromFloat(0.005))

	expensive := testChannel("B_EXPENSIVE")
	expensive.Priority = 10

	channels := []models.Channel{expensive, low, cheap}
	if err := db.Create(&channels).Error; err != nil {
		t.Fatalf("seed channels failed: %v", err)
	}

	eligible, err := svc.ListEligible(constants.PaymentSceneWeb, 100)
	if err != nil {
		t.Fatalf("list eligible failed: %v", err)
	}
	if len(eligible) != 3 {
		t.Fatalf("eligible count want 3 got %d", len(eligible))
	}
	order := []string{eligible[0].Code, eligible[1].Code, eligible[2].Code}
	if order[0] != "A_CHEAP" || order[1] != "B_EXPENSIVE" || order[2] != "LOW_PRIORITY" {
		t.Fatalf("unexpected ordering: %v", order)
	}
}

func TestRecordUsageConcurrent(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	ch := testChannel("CONCURRENT")
	if err := db.Create(&ch).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	const workers = 5
	const rounds = 100
	var wg sync.WaitGroup
	errCh := make(chan error, workers*rounds)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if err := svc.RecordUsage("CONCURRENT", 1); err != nil {
					errCh <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("record usage failed: %v", err)
	}

	var reloaded models.Channel
	if err := db.Where("code = ?", "CONCURRENT").First(&reloaded).Error; err != nil {
		t.Fatalf("reload channel failed: %v", err)
	}
	if reloaded.DailyUsed != workers*rounds {
		t.Fatalf("daily used want %d got %d", workers*rounds, reloaded.DailyUsed)
	}
	if reloaded.UsageDate != usageDay(time.Now()) {
		t.Fatalf("usage date want today got %s", reloaded.UsageDate)
	}
}

func TestRecordUsageValidation(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	ch := testChannel("OK")
	if err := db.Create(&ch).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	if err := svc.RecordUsage("OK", 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero amount want ErrValidation got %v", err)
	}
	if err := svc.RecordUsage("MISSING", 100); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("missing channel want ErrChannelNotFound got %v", err)
	}
}

func TestSetHealth(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	ch := testChannel("OK")
	if err := db.Create(&ch).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}

	if err := svc.SetHealth("OK", "degraded"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status want ErrValidation got %v", err)
	}
	if err := svc.SetHealth("MISSING", constants.ChannelHealthUnhealthy); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("missing channel want ErrChannelNotFound got %v", err)
	}
	if err := svc.SetHealth("OK", " Maintenance "); err != nil {
		t.Fatalf("set health failed: %v", err)
	}

	var reloaded models.Channel
	if err := db.Where("code = ?", "OK").First(&reloaded).Error; err != nil {
		t.Fatalf("reload channel failed: %v", err)
	}
	if reloaded.HealthStatus != constants.ChannelHealthMaintenance {
		t.Fatalf("health want maintenance got %s", reloaded.HealthStatus)
	}
}

func TestCreateChannel(t *testing.T) {
	svc, _ := setupChannelServiceTest(t)

	ch := testChannel("NEW")
	ch.HealthStatus = ""
	ch.DailyLimit = 0
	if err := svc.Create(&ch); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if ch.HealthStatus != constants.ChannelHealthUnknown {
		t.Fatalf("default health want unknown got %s", ch.HealthStatus)
	}
	if ch.DailyLimit != constants.ChannelDailyLimitUnlimited {
		t.Fatalf("default daily limit want -1 got %d", ch.DailyLimit)
	}

	dup := testChannel("NEW")
	if err := svc.Create(&dup); !errors.Is(err, ErrChannelCodeExists) {
		t.Fatalf("duplicate code want ErrChannelCodeExists got %v", err)
	}

	invalid := testChannel("BAD_RANGE")
	invalid.MinAmount = 2000
	invalid.MaxAmount = 1000
	if err := svc.Create(&invalid); !errors.Is(err, ErrValidation) {
		t.Fatalf("inverted amount range want ErrValidation got %v", err)
	}
}

func TestUpdateChannelCodeImmutable(t *testing.T) {
	svc, _ := setupChannelServiceTest(t)
	ch := testChannel("FIXED")
	if err := svc.Create(&ch); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := svc.Update("FIXED", func(c *models.Channel) error {
		c.Code = "CHANGED"
		c.Priority = 99
		return nil
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Code != "FIXED" {
		t.Fatalf("code should be immutable, got %s", updated.Code)
	}
	if updated.Priority != 99 {
		t.Fatalf("priority want 99 got %d", updated.Priority)
	}

	if _, err := svc.Update("MISSING", func(c *models.Channel) error { return nil }); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("missing channel want ErrChannelNotFound got %v", err)
	}
}

func TestDeleteChannelInUse(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	ch := testChannel("BUSY")
	if err := db.Create(&ch).Error; err != nil {
		t.Fatalf("seed channel failed: %v", err)
	}
	order := models.PaymentOrder{
		TradeNo:     "PAY_test_1",
		OutTradeNo:  "OUT-1",
		MerchantID:  "m_001",
		Subject:     "测试商品",
		Amount:      100,
		Currency:    "CNY",
		Scene:       constants.PaymentSceneWeb,
		Status:      constants.OrderStatusPending,
		ChannelCode: "BUSY",
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}

	if err := svc.Delete("BUSY"); !errors.Is(err, ErrChannelInUse) {
		t.Fatalf("delete with open order want ErrChannelInUse got %v", err)
	}

	// 支付单终结后允许删除
	if err := db.Model(&models.PaymentOrder{}).Where("trade_no = ?", "PAY_test_1").Update("status", constants.OrderStatusClosed).Error; err != nil {
		t.Fatalf("close order failed: %v", err)
	}
	if err := svc.Delete("BUSY"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetByCode("BUSY"); !errors.Is(err, ErrChannelNotFound) {
		t.Fatalf("deleted channel should be gone, got %v", err)
	}
}

func TestResetDailyUsage(t *testing.T) {
	svc, db := setupChannelServiceTest(t)
	yesterday := usageDay(time.Now().AddDate(0, 0, -1))
	today := usageDay(time.Now())

	stale := testChannel("STALE")
	stale.DailyUsed = 5000
	stale.UsageDate = yesterday

	fresh := testChannel("FRESH")
	fresh.DailyUsed = 3000
	fresh.UsageDate = today

	channels := []models.Channel{stale, fresh}
	if err := db.Create(&channels).Error; err != nil {
		t.Fatalf("seed channels failed: %v", err)
	}

	reset, err := svc.ResetDailyUsage(time.Now())
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset count want 1 got %d", reset)
	}

	var reloaded models.Channel
	if err := db.Where("code = ?", "STALE").First(&reloaded).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.DailyUsed != 0 || reloaded.UsageDate != today {
		t.Fatalf("stale channel should be reset, got used=%d date=%s", reloaded.DailyUsed, reloaded.UsageDate)
	}
	reloaded = models.Channel{}
	if err := db.Where("code = ?", "FRESH").First(&reloaded).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.DailyUsed != 3000 {
		t.Fatalf("fresh channel should be untouched, got %d", reloaded.DailyUsed)
	}
}
