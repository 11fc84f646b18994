package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/metrics"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"github.com/yeremiapane/restaurant-platform/validators"
	"gorm.io/gorm"
)

type CreateOrderInput struct {
	ReservationID uint   `json:"reservation_id"`
	OrderItemIDs  []uint `json:"order_items"`
	UserID        uint   `json:"-"`
}

// UpdateOrderInput carries the editable order fields. The status and total
// fields are only decoded so they can be refused.
type UpdateOrderInput struct {
	ReservationID *uint   `json:"reservation_id"`
	OrderItemIDs  *[]uint `json:"order_items"`

	OrderStatus        *string         `json:"order_status"`
	OrderStatusHistory json.RawMessage `json:"order_status_history"`
	TotalPrice         json.RawMessage `json:"total_price"`
}

type OrderFilter struct {
	Status        models.OrderStatus
	ReservationID uint
}

// createOrderState travels through the create pipeline.
type createOrderState struct {
	in          CreateOrderInput
	reservation *models.Reservation
	items       []models.OrderItem
}

// orderStatusChange travels through the status pipeline inside a transaction.
type orderStatusChange struct {
	tx    *gorm.DB
	order *models.Order
	next  models.OrderStatus
}

type OrderService struct {
	db           *gorm.DB
	reservations ReservationLookup
	foods        FoodCatalog
	locker       locks.Locker
	events       events.Publisher
	now          func() time.Time

	createPipeline *validators.Pipeline[createOrderState]
	statusPipeline *validators.Pipeline[orderStatusChange]
}

func NewOrderService(db *gorm.DB, reservations ReservationLookup, foods FoodCatalog,
	locker locks.Locker, publisher events.Publisher) *OrderService {
	s := &OrderService{
		db:           db,
		reservations: reservations,
		foods:        foods,
		locker:       locker,
		events:       publisher,
		now:          func() time.Time { return time.Now().UTC() },
	}
	s.createPipeline = validators.New(s.requireLiveReservation, s.requireAttachableItems)
	s.statusPipeline = validators.New(requireLegalOrderTransition, requireItemsFinished)
	return s
}

func (s *OrderService) requireLiveReservation(ctx context.Context, st createOrderState) (createOrderState, error) {
	if st.in.ReservationID == 0 {
		return st, utils.NewValidationError("reservation_id is required")
	}
	reservation, err := s.reservations.GetReservation(ctx, st.in.ReservationID)
	if err != nil {
		return st, err
	}
	if reservation.Status == models.ReservationCanceled {
		return st, utils.NewConflictError("reservation %d is canceled", reservation.ID)
	}
	st.reservation = reservation
	return st, nil
}

func (s *OrderService) requireAttachableItems(ctx context.Context, st createOrderState) (createOrderState, error) {
	items, err := s.loadAttachableItems(ctx, s.db, st.in.OrderItemIDs, 0)
	if err != nil {
		return st, err
	}
	st.items = items
	return st, nil
}

// loadAttachableItems loads ids and checks that none belongs to another order
// and that no food appears twice. orderID is the order being edited, or 0.
func (s *OrderService) loadAttachableItems(ctx context.Context, db *gorm.DB, ids []uint, orderID uint) ([]models.OrderItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	unique := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if unique[id] {
			return nil, utils.NewValidationError("order item %d listed twice", id)
		}
		unique[id] = true
	}

	var items []models.OrderItem
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, utils.PersistenceError("order item", err)
	}
	if len(items) != len(ids) {
		return nil, utils.NewNotFoundError("order item not found")
	}

	foods := make(map[uint]bool, len(items))
	for _, item := range items {
		if item.OrderID != nil && *item.OrderID != orderID {
			return nil, utils.NewConflictError("order item %d already belongs to order %d", item.ID, *item.OrderID)
		}
		if foods[item.FoodID] {
			return nil, utils.NewValidationError("food %d appears in more than one order item", item.FoodID)
		}
		foods[item.FoodID] = true
	}
	return items, nil
}

func requireLegalOrderTransition(_ context.Context, ch orderStatusChange) (orderStatusChange, error) {
	if !ch.order.OrderStatus.CanTransitionTo(ch.next) {
		metrics.Rejected(events.EntityOrder)
		return ch, utils.NewConflictError("cannot change order status from %s to %s", ch.order.OrderStatus, ch.next)
	}
	return ch, nil
}

func requireItemsFinished(_ context.Context, ch orderStatusChange) (orderStatusChange, error) {
	if ch.next != models.OrderCompleted {
		return ch, nil
	}
	var items []models.OrderItem
	if err := ch.tx.Where("order_id = ?", ch.order.ID).Find(&items).Error; err != nil {
		return ch, err
	}
	if !models.AllItemsTerminal(items) {
		return ch, utils.NewValidationError("all order items must be served or cancelled before completing the order")
	}
	ch.order.OrderItems = items
	return ch, nil
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	st, err := s.createPipeline.Run(ctx, createOrderState{in: in})
	if err != nil {
		return nil, err
	}

	if st.reservation.TableID != nil {
		unlock, err := s.locker.Lock(ctx, locks.TableKey(*st.reservation.TableID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	now := s.now()
	order := models.Order{
		ReservationID:      st.reservation.ID,
		TableID:            st.reservation.TableID,
		UserID:             in.UserID,
		OrderStatus:        models.OrderServing,
		OrderStatusHistory: seedHistory(string(models.OrderServing), now),
		TotalPrice:         models.ServedTotal(st.items),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if order.TableID != nil {
			var serving int64
			if err := tx.Model(&models.Order{}).
				Where("table_id = ? AND order_status = ?", *order.TableID, models.OrderServing).
				Count(&serving).Error; err != nil {
				return err
			}
			if serving > 0 {
				return utils.NewConflictError("table %d already has a serving order", *order.TableID)
			}
		}
		if err := tx.Omit("OrderItems").Create(&order).Error; err != nil {
			return err
		}
		if len(in.OrderItemIDs) == 0 {
			return nil
		}
		// Guard against an item being attached elsewhere since the pipeline ran.
		res := tx.Model(&models.OrderItem{}).
			Where("id IN ? AND order_id IS NULL", in.OrderItemIDs).
			Update("order_id", order.ID)
		if res.Error != nil {
			return res.Error
		}
		if int(res.RowsAffected) != len(in.OrderItemIDs) {
			return utils.NewConflictError("order items changed while creating the order, retry")
		}
		return nil
	})
	if err != nil {
		return nil, utils.PersistenceError("order", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"reservation_id": order.ReservationID,
		"items":          len(in.OrderItemIDs),
	}).Info("order created")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrder, Name: events.Created, ID: order.ID, To: string(order.OrderStatus)})
	return s.GetOrder(ctx, order.ID)
}

func (s *OrderService) UpdateOrder(ctx context.Context, id uint, in UpdateOrderInput) (*models.Order, error) {
	if in.OrderStatus != nil || len(in.OrderStatusHistory) > 0 {
		return nil, utils.NewValidationError("order status cannot be updated here, use the status endpoint")
	}
	if len(in.TotalPrice) > 0 {
		return nil, utils.NewValidationError("total_price is computed from served items and cannot be set")
	}

	keys := []string{locks.OrderKey(id)}
	var target *models.Reservation
	if in.ReservationID != nil {
		reservation, err := s.reservations.GetReservation(ctx, *in.ReservationID)
		if err != nil {
			return nil, err
		}
		if reservation.Status == models.ReservationCanceled {
			return nil, utils.NewConflictError("reservation %d is canceled", reservation.ID)
		}
		target = reservation
		if target.TableID != nil {
			keys = append(keys, locks.TableKey(*target.TableID))
		}
	}

	unlock, err := lockAll(ctx, s.locker, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.OrderStatus == models.OrderCompleted {
			return utils.NewConflictError("completed orders cannot be modified")
		}
		if target != nil {
			// The order follows the reservation to its table, which may hold
			// only one serving order.
			if target.TableID != nil {
				var serving int64
				if err := tx.Model(&models.Order{}).
					Where("table_id = ? AND order_status = ? AND id <> ?", *target.TableID, models.OrderServing, id).
					Count(&serving).Error; err != nil {
					return err
				}
				if serving > 0 {
					return utils.NewConflictError("table %d already has a serving order", *target.TableID)
				}
			}
			if err := tx.Model(order).Updates(map[string]interface{}{
				"reservation_id": target.ID,
				"table_id":       target.TableID,
			}).Error; err != nil {
				return err
			}
		}
		if in.OrderItemIDs == nil {
			return nil
		}

		if _, err := s.loadAttachableItems(ctx, tx, *in.OrderItemIDs, id); err != nil {
			return err
		}
		detach := tx.Model(&models.OrderItem{}).Where("order_id = ?", id)
		if len(*in.OrderItemIDs) > 0 {
			detach = detach.Where("id NOT IN ?", *in.OrderItemIDs)
		}
		if err := detach.Update("order_id", nil).Error; err != nil {
			return err
		}
		if len(*in.OrderItemIDs) > 0 {
			if err := tx.Model(&models.OrderItem{}).Where("id IN ?", *in.OrderItemIDs).Update("order_id", id).Error; err != nil {
				return err
			}
		}
		_, err = recomputeOrderTotal(tx, id)
		return err
	})
	if err != nil {
		return nil, utils.PersistenceError("order", err)
	}
	return s.GetOrder(ctx, id)
}

// UpdateOrderStatus moves an order along its flow. Completing requires every
// item to be Served or Cancelled; that check runs inside the transaction
// under the order lock so a concurrent item change cannot slip past it.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("invalid order status %q", status)
	}

	unlock, err := s.locker.Lock(ctx, locks.OrderKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var from models.OrderStatus
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		from = order.OrderStatus
		if from == status {
			return nil
		}
		if _, err := s.statusPipeline.Run(ctx, orderStatusChange{tx: tx, order: order, next: status}); err != nil {
			return err
		}

		order.Transition(status, s.now())
		if _, err := recomputeOrderTotal(tx, id); err != nil {
			return err
		}
		res := tx.Model(order).Where("order_status = ?", from).Select("OrderStatus", "OrderStatusHistory").Updates(order)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("order was modified concurrently, retry")
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, utils.PersistenceError("order", err)
	}

	if changed {
		metrics.Transition(events.EntityOrder, string(status))
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": id,
			"from":     from,
			"to":       status,
		}).Info("order status changed")
		events.Emit(ctx, s.events, events.Transition(events.EntityOrder, id, string(from), string(status)))
	}
	return s.GetOrder(ctx, id)
}

// DeleteOrder removes a Serving order with its items. Stock held by items that
// never left Pending is given back.
func (s *OrderService) DeleteOrder(ctx context.Context, id uint) error {
	unlock, err := s.locker.Lock(ctx, locks.OrderKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	var items []models.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.loadOrder(ctx, tx, id)
		if err != nil {
			return err
		}
		if order.OrderStatus == models.OrderCompleted {
			return utils.NewConflictError("completed orders cannot be deleted")
		}
		if err := tx.Where("order_id = ?", id).Find(&items).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		return utils.PersistenceError("order", err)
	}

	for i := range items {
		if items[i].Status == models.ItemPending && !items[i].NeedsStockReconciliation {
			restoreStock(ctx, s.foods, &items[i])
		}
	}
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrder, Name: events.Deleted, ID: id})
	return nil
}

func (s *OrderService) loadOrder(ctx context.Context, db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	if err := db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, utils.PersistenceError("order", err)
	}
	return &order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("OrderItems", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&order, id).Error
	if err != nil {
		return nil, utils.PersistenceError("order", err)
	}
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("OrderItems").Order("id")
	if filter.Status != "" {
		query = query.Where("order_status = ?", filter.Status)
	}
	if filter.ReservationID != 0 {
		query = query.Where("reservation_id = ?", filter.ReservationID)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, utils.PersistenceError("order", err)
	}
	return orders, nil
}

func (s *OrderService) ListOrdersByReservation(ctx context.Context, reservationID uint) ([]models.Order, error) {
	return s.ListOrders(ctx, OrderFilter{ReservationID: reservationID})
}

// recomputeOrderTotal sets total_price to the sum of the order's Served items.
func recomputeOrderTotal(tx *gorm.DB, orderID uint) (decimal.Decimal, error) {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return decimal.Zero, err
	}
	total := models.ServedTotal(items)
	if err := tx.Model(&models.Order{}).Where("id = ?", orderID).Update("total_price", total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// restoreStock gives an item's quantity back to the food service. Failures are
// logged only; the item is already gone.
func restoreStock(ctx context.Context, foods FoodCatalog, item *models.OrderItem) {
	if _, err := foods.AdjustStock(ctx, item.FoodID, item.Quantity, item.StockReference()+":restore"); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_item_id": item.ID,
			"food_id":       item.FoodID,
			"quantity":      item.Quantity,
		}).Warnf("could not restore stock: %v", err)
	}
}
