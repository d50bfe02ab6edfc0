package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/autopay-next/internal/constants"
	"github.com/autopay-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupOrderRepositoryTest(t *testing.T) (*GormOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_repository_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentOrder{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewOrderRepository(db), db
}

func seedOrder(t *testing.T, db *gorm.DB, order models.PaymentOrder) models.PaymentOrder {
	t.Helper()
	if order.MerchantID == "" {
		order.MerchantID = "m_001"
	}
	if order.Subject == "" {
		order.Subject = "测试商品"
	}
	if order.Amount == 0 {
		order.Amount = 100
	}
	if order.Currency == "" {
		order.Currency = "CNY"
	}
	if order.Scene == "" {
		order.Scene = constants.PaymentSceneWeb
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return order
}

func TestGetOpenByOutTradeNo(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_1", OutTradeNo: "OUT-1", Status: constants.OrderStatusClosed})
	open := seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_2", OutTradeNo: "OUT-1", Status: constants.OrderStatusPending})

	got, err := repo.GetOpenByOutTradeNo("m_001", "OUT-1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got == nil || got.TradeNo != open.TradeNo {
		t.Fatalf("open order want %s got %+v", open.TradeNo, got)
	}

	// 其他商户不可见
	got, err = repo.GetOpenByOutTradeNo("m_other", "OUT-1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != nil {
		t.Fatalf("cross-merchant query should return nil, got %+v", got)
	}

	// 全部终结时返回 nil
	if err := db.Model(&models.PaymentOrder{}).Where("trade_no = ?", "PAY_2").Update("status", constants.OrderStatusExpired).Error; err != nil {
		t.Fatalf("expire order failed: %v", err)
	}
	got, err = repo.GetOpenByOutTradeNo("m_001", "OUT-1")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if got != nil {
		t.Fatalf("no open order should return nil, got %+v", got)
	}
}

func TestListExpired(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_due_created", OutTradeNo: "OUT-1", Status: constants.OrderStatusCreated, ExpireTime: &past})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_due_pending", OutTradeNo: "OUT-2", Status: constants.OrderStatusPending, ExpireTime: &past})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_fresh", OutTradeNo: "OUT-3", Status: constants.OrderStatusPending, ExpireTime: &future})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_done", OutTradeNo: "OUT-4", Status: constants.OrderStatusSuccess, ExpireTime: &past})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_no_expiry", OutTradeNo: "OUT-5", Status: constants.OrderStatusCreated})

	orders, err := repo.ListExpired(now, 0)
	if err != nil {
		t.Fatalf("list expired failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expired count want 2 got %d", len(orders))
	}
	for _, o := range orders {
		if o.TradeNo != "PAY_due_created" && o.TradeNo != "PAY_due_pending" {
			t.Fatalf("unexpected expired order %s", o.TradeNo)
		}
	}

	limited, err := repo.ListExpired(now, 1)
	if err != nil {
		t.Fatalf("limited list failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit should cap results, got %d", len(limited))
	}
}

func TestCountOpenByChannelCode(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_1", OutTradeNo: "OUT-1", Status: constants.OrderStatusCreated, ChannelCode: "CH"})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_2", OutTradeNo: "OUT-2", Status: constants.OrderStatusPending, ChannelCode: "CH"})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_3", OutTradeNo: "OUT-3", Status: constants.OrderStatusSuccess, ChannelCode: "CH"})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_4", OutTradeNo: "OUT-4", Status: constants.OrderStatusCreated, ChannelCode: "OTHER"})

	count, err := repo.CountOpenByChannelCode("CH")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("open count want 2 got %d", count)
	}
}

func TestListAdminFilters(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_1", OutTradeNo: "OUT-1", Status: constants.OrderStatusSuccess, ChannelCode: "CH_A"})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_2", OutTradeNo: "OUT-2", Status: constants.OrderStatusPending, ChannelCode: "CH_A"})
	seedOrder(t, db, models.PaymentOrder{TradeNo: "PAY_3", OutTradeNo: "OUT-3", Status: constants.OrderStatusSuccess, ChannelCode: "CH_B", MerchantID: "m_002"})

	orders, total, err := repo.ListAdmin(OrderListFilter{Page: 1, PageSize: 10, Status: constants.OrderStatusSuccess})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(orders) != 2 {
		t.Fatalf("success list want 2 got total=%d len=%d", total, len(orders))
	}

	orders, total, err = repo.ListAdmin(OrderListFilter{Page: 1, PageSize: 10, MerchantID: "m_002"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || orders[0].TradeNo != "PAY_3" {
		t.Fatalf("merchant filter want PAY_3 got %+v", orders)
	}

	orders, total, err = repo.ListAdmin(OrderListFilter{Page: 1, PageSize: 1, ChannelCode: "CH_A"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(orders) != 1 {
		t.Fatalf("pagination want total=2 len=1 got total=%d len=%d", total, len(orders))
	}
}
