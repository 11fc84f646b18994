package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/middlewares"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dinnerTime = time.Date(2030, 5, 10, 18, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SilenceLogger()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ctl_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Table{}, &models.Food{}, &models.StockMovement{},
		&models.Customer{}, &models.Reservation{}, &models.TableHistory{},
		&models.Order{}, &models.OrderItem{}, &models.Discount{}, &models.Payment{},
	))
	return db
}

// brokenFoods answers reads but fails every stock adjustment.
type brokenFoods struct {
	*services.FoodService
}

func (brokenFoods) AdjustStock(context.Context, uint, int, string) (*models.Food, error) {
	return nil, utils.NewUpstreamError("food service unavailable", errors.New("connection refused"))
}

type fixture struct {
	db           *gorm.DB
	tables       *services.TableService
	foods        *services.FoodService
	reservations *services.ReservationService
	orders       *services.OrderService
	items        *services.OrderItemService
	discounts    *services.DiscountService
	payments     *services.PaymentService
	router       *gin.Engine
}

func newFixture(t *testing.T, foodsDown bool) *fixture {
	t.Helper()
	db := setupTestDB(t)
	locker := locks.NewMemoryLocker()
	pub := events.Noop{}

	f := &fixture{db: db}
	f.tables = services.NewTableService(db, pub)
	f.foods = services.NewFoodService(db, pub, 10)
	var catalog services.FoodCatalog = f.foods
	if foodsDown {
		catalog = brokenFoods{f.foods}
	}
	f.reservations = services.NewReservationService(db, f.tables, services.NewCustomerService(db), locker, pub, services.ReservationRules{
		DepositAmount:    decimal.NewFromInt(100000),
		DepositThreshold: 6,
		SlotDuration:     2 * time.Hour,
		BookingWindow:    2 * time.Hour,
	})
	f.orders = services.NewOrderService(db, f.reservations, catalog, locker, pub)
	f.items = services.NewOrderItemService(db, catalog, locker, pub)
	f.discounts = services.NewDiscountService(db, pub)
	f.payments = services.NewPaymentService(db, f.orders, f.reservations, f.discounts, locker, pub, services.PaymentRules{
		TaxPercentage: decimal.NewFromInt(10),
	})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middlewares.ContextUserID, uint(1))
		c.Set(middlewares.ContextRole, models.RoleAdmin)
		c.Next()
	})

	tables := NewTableController(f.tables)
	r.GET("/tables", tables.GetAllTables)
	r.POST("/tables", tables.CreateTable)
	r.GET("/tables/:id", tables.GetTableByID)

	foods := NewFoodController(f.foods)
	r.GET("/foods/:id", foods.GetFoodByID)
	r.PATCH("/foods/:id/stock", foods.AdjustStock)
	r.GET("/foods/:id/stock-movements", foods.StockMovements)

	reservations := NewReservationController(f.reservations)
	r.GET("/reservations", reservations.GetAllReservations)
	r.GET("/reservations/available", reservations.GetAvailableTables)
	r.PUT("/reservations/:id/unassign-table", reservations.UnassignTable)

	orders := NewOrderController(f.orders)
	r.PATCH("/orders/:id", orders.UpdateOrder)
	r.PATCH("/orders/:id/status", orders.UpdateOrderStatus)

	items := NewOrderItemController(f.items)
	r.POST("/order-items", items.CreateOrderItem)
	r.GET("/order-items/reconciliation", items.PendingReconciliation)

	discounts := NewDiscountController(f.discounts)
	r.GET("/discounts/code/:code", discounts.GetDiscountByCode)

	receipts := NewReceiptController(f.payments)
	r.GET("/payments/:id/receipt", receipts.GetReceipt)

	f.router = r
	return f
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) utils.JSONResponse {
	t.Helper()
	raw := struct {
		utils.JSONResponse
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.JSONResponse
}

func (f *fixture) table(t *testing.T, name string, capacity int) *models.Table {
	t.Helper()
	table, err := f.tables.CreateTable(context.Background(), services.TableInput{Name: name, Capacity: capacity})
	require.NoError(t, err)
	return table
}

func (f *fixture) food(t *testing.T, name string, price int64, stock int) *models.Food {
	t.Helper()
	food, err := f.foods.CreateFood(context.Background(), services.FoodInput{Name: name, Price: decimal.NewFromInt(price), Quantity: stock})
	require.NoError(t, err)
	return food
}

// seated books table for quantity guests at dinnerTime and checks them in.
func (f *fixture) seated(t *testing.T, table *models.Table, quantity int) *models.Reservation {
	t.Helper()
	ctx := context.Background()
	r, err := f.reservations.CreateReservation(ctx, services.CreateReservationInput{
		CustomerName: "Sari", CustomerPhone: "0811111111", CustomerEmail: "sari@example.com",
		Quantity: quantity, CheckInTime: dinnerTime,
	})
	require.NoError(t, err)
	_, err = f.reservations.AssignTable(ctx, r.ID, table.ID, 1)
	require.NoError(t, err)
	r, err = f.reservations.CheckIn(ctx, r.ID)
	require.NoError(t, err)
	return r
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
