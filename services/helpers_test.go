package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dinnerTime = time.Date(2030, 5, 10, 18, 0, 0, 0, time.UTC)

func init() {
	utils.SilenceLogger()
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
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

// flakyFoods lets a test break the food service between calls.
type flakyFoods struct {
	*FoodService
	mu         sync.Mutex
	adjustErr  error
	adjustCall int
}

func (f *flakyFoods) AdjustStock(ctx context.Context, id uint, delta int, reference string) (*models.Food, error) {
	f.mu.Lock()
	f.adjustCall++
	err := f.adjustErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.FoodService.AdjustStock(ctx, id, delta, reference)
}

func (f *flakyFoods) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adjustErr = err
}

var errFoodDown = utils.NewUpstreamError("food service unavailable", errors.New("connection refused"))

type platform struct {
	db           *gorm.DB
	events       *events.Recorder
	locker       *locks.MemoryLocker
	tables       *TableService
	customers    *CustomerService
	reservations *ReservationService
	foods        *FoodService
	catalog      *flakyFoods
	orders       *OrderService
	items        *OrderItemService
	discounts    *DiscountService
	payments     *PaymentService
	reconciler   *StockReconciler

	seq int
}

func newPlatform(t *testing.T) *platform {
	t.Helper()
	db := setupTestDB(t)
	rec := &events.Recorder{}
	locker := locks.NewMemoryLocker()

	p := &platform{db: db, events: rec, locker: locker}
	p.tables = NewTableService(db, rec)
	p.customers = NewCustomerService(db)
	p.reservations = NewReservationService(db, p.tables, p.customers, locker, rec, ReservationRules{
		DepositAmount:    decimal.NewFromInt(100000),
		DepositThreshold: 6,
		SlotDuration:     2 * time.Hour,
		BookingWindow:    2 * time.Hour,
	})
	p.foods = NewFoodService(db, rec, 10)
	p.catalog = &flakyFoods{FoodService: p.foods}
	p.orders = NewOrderService(db, p.reservations, p.catalog, locker, rec)
	p.items = NewOrderItemService(db, p.catalog, locker, rec)
	p.reconciler = NewStockReconciler(p.items, time.Hour, 3)
	p.items.UseReconciler(p.reconciler)
	p.discounts = NewDiscountService(db, rec)
	p.payments = NewPaymentService(db, p.orders, p.reservations, p.discounts, locker, rec, PaymentRules{
		TaxPercentage: decimal.NewFromInt(10),
		CodeRetries:   20,
	})
	return p
}

func (p *platform) table(t *testing.T, capacity int) *models.Table {
	t.Helper()
	p.seq++
	table, err := p.tables.CreateTable(context.Background(), TableInput{Name: fmt.Sprintf("T%d", p.seq), Capacity: capacity})
	require.NoError(t, err)
	return table
}

func (p *platform) food(t *testing.T, price int64, stock int) *models.Food {
	t.Helper()
	p.seq++
	food, err := p.foods.CreateFood(context.Background(), FoodInput{
		Name:     fmt.Sprintf("Dish %d", p.seq),
		Price:    decimal.NewFromInt(price),
		Quantity: stock,
	})
	require.NoError(t, err)
	return food
}

func (p *platform) reservationInput(quantity int, at time.Time) CreateReservationInput {
	p.seq++
	return CreateReservationInput{
		CustomerName:  fmt.Sprintf("Guest %d", p.seq),
		CustomerPhone: fmt.Sprintf("09000%05d", p.seq),
		CustomerEmail: fmt.Sprintf("guest%d@example.com", p.seq),
		Quantity:      quantity,
		CheckInTime:   at,
	}
}

func (p *platform) reservation(t *testing.T, quantity int, at time.Time) *models.Reservation {
	t.Helper()
	r, err := p.reservations.CreateReservation(context.Background(), p.reservationInput(quantity, at))
	require.NoError(t, err)
	return r
}

// seated creates a reservation, gives it a table and checks it in.
func (p *platform) seated(t *testing.T, quantity int) (*models.Reservation, *models.Table) {
	t.Helper()
	table := p.table(t, quantity+2)
	r := p.reservation(t, quantity, dinnerTime.Add(time.Duration(p.seq)*24*time.Hour))
	_, err := p.reservations.AssignTable(context.Background(), r.ID, table.ID, 1)
	require.NoError(t, err)
	r, err = p.reservations.CheckIn(context.Background(), r.ID)
	require.NoError(t, err)
	return r, table
}

func (p *platform) order(t *testing.T, reservationID uint) *models.Order {
	t.Helper()
	o, err := p.orders.CreateOrder(context.Background(), CreateOrderInput{ReservationID: reservationID, UserID: 1})
	require.NoError(t, err)
	return o
}

func (p *platform) item(t *testing.T, orderID, foodID uint, quantity int) *models.OrderItem {
	t.Helper()
	item, err := p.items.CreateOrderItem(context.Background(), CreateOrderItemInput{OrderID: orderID, FoodID: foodID, Quantity: quantity})
	require.NoError(t, err)
	return item
}

func (p *platform) advance(t *testing.T, itemID uint, steps ...models.OrderItemStatus) {
	t.Helper()
	for _, st := range steps {
		_, err := p.items.UpdateOrderItemStatus(context.Background(), itemID, st)
		require.NoError(t, err)
	}
}

func (p *platform) serve(t *testing.T, itemID uint) {
	t.Helper()
	p.advance(t, itemID, models.ItemPreparing, models.ItemReadyToServe, models.ItemServed)
}

// completedOrder builds a Completed order on a seated reservation whose served
// items add up to total.
func (p *platform) completedOrder(t *testing.T, reservationID uint, price int64, quantity int) *models.Order {
	t.Helper()
	food := p.food(t, price, 100)
	o := p.order(t, reservationID)
	item := p.item(t, o.ID, food.ID, quantity)
	p.serve(t, item.ID)
	o, err := p.orders.UpdateOrderStatus(context.Background(), o.ID, models.OrderCompleted)
	require.NoError(t, err)
	return o
}

func assertKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := utils.GetAppError(err)
	require.Truef(t, ok, "expected AppError, got %T: %v", err, err)
	require.Equalf(t, kind, appErr.Kind, "unexpected kind for %v", err)
}
