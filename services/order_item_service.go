package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/metrics"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

type CreateOrderItemInput struct {
	OrderID  uint   `json:"order_id"`
	FoodID   uint   `json:"food_id"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

type UpdateOrderItemInput struct {
	Note     *string `json:"note"`
	Quantity *int    `json:"quantity"`

	Status        *string         `json:"status"`
	StatusHistory json.RawMessage `json:"status_history"`
}

// reconcileQueue receives items whose stock decrement has to be retried.
type reconcileQueue interface {
	Enqueue(itemID uint)
}

type OrderItemService struct {
	db     *gorm.DB
	foods  FoodCatalog
	locker locks.Locker
	events events.Publisher
	queue  reconcileQueue
	now    func() time.Time
}

func NewOrderItemService(db *gorm.DB, foods FoodCatalog, locker locks.Locker, publisher events.Publisher) *OrderItemService {
	return &OrderItemService{
		db:     db,
		foods:  foods,
		locker: locker,
		events: publisher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UseReconciler sets where items with a failed stock decrement are queued.
func (s *OrderItemService) UseReconciler(q reconcileQueue) {
	s.queue = q
}

// CreateOrderItem adds an item to a Serving order and then decrements the
// food stock. The two writes live in different services: when the decrement
// fails the item is kept, flagged for reconciliation and returned flagged.
func (s *OrderItemService) CreateOrderItem(ctx context.Context, in CreateOrderItemInput) (*models.OrderItem, error) {
	if in.OrderID == 0 {
		return nil, utils.NewValidationError("order_id is required")
	}
	if in.FoodID == 0 {
		return nil, utils.NewValidationError("food_id is required")
	}
	if in.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity must be greater than 0")
	}

	food, err := s.foods.GetFood(ctx, in.FoodID)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return nil, utils.NewValidationError("food not found")
		}
		return nil, err
	}
	if food.Quantity < in.Quantity {
		return nil, utils.NewValidationError("insufficient stock for %s: %d left", food.Name, food.Quantity)
	}

	unlock, err := s.locker.Lock(ctx, locks.OrderKey(in.OrderID))
	if err != nil {
		return nil, err
	}

	orderID := in.OrderID
	item := models.OrderItem{
		OrderID:       &orderID,
		FoodID:        food.ID,
		Quantity:      in.Quantity,
		Note:          in.Note,
		Price:         food.Price.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:        models.ItemPending,
		StatusHistory: seedHistory(string(models.ItemPending), s.now()),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, in.OrderID).Error; err != nil {
			return err
		}
		if order.OrderStatus != models.OrderServing {
			return utils.NewConflictError("order %d is %s, items can only be added while Serving", order.ID, order.OrderStatus)
		}
		var existing int64
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND food_id = ?", in.OrderID, food.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return utils.NewValidationError("food %d already has an order item on order %d", food.ID, in.OrderID)
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		_, err := recomputeOrderTotal(tx, in.OrderID)
		return err
	})
	unlock()
	if err != nil {
		return nil, utils.PersistenceError("order", err)
	}

	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrderItem, Name: events.Created, ID: item.ID, To: string(item.Status)})

	if _, err := s.foods.AdjustStock(ctx, item.FoodID, -item.Quantity, item.StockReference()); err != nil {
		if flagErr := s.flagForReconciliation(ctx, &item, err); flagErr != nil {
			return nil, flagErr
		}
		return &item, nil
	}

	reconciled := s.now()
	item.StockReconciledAt = &reconciled
	if err := s.db.WithContext(ctx).Model(&item).Update("stock_reconciled_at", reconciled).Error; err != nil {
		utils.ErrorLogger.WithField("order_item_id", item.ID).Warnf("could not record stock reconciliation time: %v", err)
	}
	item.Food = food
	return &item, nil
}

func (s *OrderItemService) flagForReconciliation(ctx context.Context, item *models.OrderItem, cause error) error {
	utils.ErrorLogger.WithFields(logrus.Fields{
		"order_item_id": item.ID,
		"food_id":       item.FoodID,
		"quantity":      item.Quantity,
	}).Warnf("stock decrement failed, item flagged for reconciliation: %v", cause)

	item.NeedsStockReconciliation = true
	if err := s.db.WithContext(ctx).Model(item).Update("needs_stock_reconciliation", true).Error; err != nil {
		return utils.PersistenceError("order item", err)
	}
	if s.queue != nil {
		s.queue.Enqueue(item.ID)
	}
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrderItem, Name: events.StockFlagged, ID: item.ID})
	return nil
}

// UpdateOrderItemStatus applies one edge of the item flow and recomputes the
// parent total in the same transaction.
func (s *OrderItemService) UpdateOrderItemStatus(ctx context.Context, id uint, status models.OrderItemStatus) (*models.OrderItem, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("invalid order item status %q", status)
	}
	current, err := s.GetOrderItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.OrderID != nil {
		unlock, err := s.locker.Lock(ctx, locks.OrderKey(*current.OrderID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	var from models.OrderItemStatus
	changed := false
	var item models.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		from = item.Status
		if from == status {
			return nil
		}
		if !item.Transition(status, s.now()) {
			metrics.Rejected(events.EntityOrderItem)
			return utils.NewConflictError("cannot change order item status from %s to %s", from, status)
		}
		res := tx.Model(&item).Where("status = ?", from).Select("Status", "StatusHistory").Updates(&item)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("order item was modified concurrently, retry")
		}
		changed = true
		if item.OrderID == nil {
			return nil
		}
		_, err := recomputeOrderTotal(tx, *item.OrderID)
		return err
	})
	if err != nil {
		return nil, utils.PersistenceError("order item", err)
	}

	if changed {
		metrics.Transition(events.EntityOrderItem, string(status))
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_item_id": id,
			"from":          from,
			"to":            status,
		}).Info("order item status changed")
		events.Emit(ctx, s.events, events.Transition(events.EntityOrderItem, id, string(from), string(status)))
	}
	return &item, nil
}

// UpdateOrderItem edits the note of an unfinished item, or the quantity of a
// Pending one. A quantity change re-prices the item and moves the difference
// in stock before the item is saved.
func (s *OrderItemService) UpdateOrderItem(ctx context.Context, id uint, in UpdateOrderItemInput) (*models.OrderItem, error) {
	if in.Status != nil || len(in.StatusHistory) > 0 {
		return nil, utils.NewValidationError("status cannot be updated here, use the status endpoint")
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity must be greater than 0")
	}

	current, err := s.GetOrderItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, utils.NewConflictError("order item is %s and can no longer be edited", current.Status)
	}
	if current.OrderID != nil {
		unlock, err := s.locker.Lock(ctx, locks.OrderKey(*current.OrderID))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	delta := 0
	var unitPrice decimal.Decimal
	if in.Quantity != nil && *in.Quantity != current.Quantity {
		if current.Status != models.ItemPending {
			return nil, utils.NewConflictError("quantity can only change while the item is Pending")
		}
		delta = *in.Quantity - current.Quantity
		food, err := s.foods.GetFood(ctx, current.FoodID)
		if err != nil {
			return nil, err
		}
		unitPrice = food.Price
	}

	// Flagged items are decremented later by their current quantity, so the
	// difference must not be moved now.
	reference := ""
	if delta != 0 && !current.NeedsStockReconciliation {
		reference = current.StockReference() + ":edit:" + uuid.NewString()
		if _, err := s.foods.AdjustStock(ctx, current.FoodID, -delta, reference); err != nil {
			return nil, err
		}
	}

	var item models.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		if item.Status.IsTerminal() || (delta != 0 && item.Status != models.ItemPending) {
			return utils.NewConflictError("order item changed while editing, retry")
		}
		if in.Note != nil {
			item.Note = *in.Note
		}
		if delta != 0 {
			item.Quantity = *in.Quantity
			item.Price = unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		if err := tx.Model(&item).Select("Note", "Quantity", "Price").Updates(&item).Error; err != nil {
			return err
		}
		if item.OrderID == nil {
			return nil
		}
		_, err := recomputeOrderTotal(tx, *item.OrderID)
		return err
	})
	if err != nil {
		if reference != "" {
			if _, revertErr := s.foods.AdjustStock(ctx, current.FoodID, delta, reference+":revert"); revertErr != nil {
				utils.ErrorLogger.WithField("order_item_id", id).Warnf("could not revert stock after failed edit: %v", revertErr)
			}
		}
		return nil, utils.PersistenceError("order item", err)
	}
	return &item, nil
}

// DeleteOrderItem removes a Pending item and gives its stock back.
func (s *OrderItemService) DeleteOrderItem(ctx context.Context, id uint) error {
	current, err := s.GetOrderItem(ctx, id)
	if err != nil {
		return err
	}
	if current.OrderID != nil {
		unlock, err := s.locker.Lock(ctx, locks.OrderKey(*current.OrderID))
		if err != nil {
			return err
		}
		defer unlock()
	}

	var item models.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		if item.Status != models.ItemPending {
			return utils.NewConflictError("only Pending order items can be deleted, this one is %s", item.Status)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return err
		}
		if item.OrderID == nil {
			return nil
		}
		_, err := recomputeOrderTotal(tx, *item.OrderID)
		return err
	})
	if err != nil {
		return utils.PersistenceError("order item", err)
	}

	if !item.NeedsStockReconciliation {
		restoreStock(ctx, s.foods, &item)
	}
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrderItem, Name: events.Deleted, ID: id})
	return nil
}

// ReconcileStock retries the stock decrement of a flagged item. Items that are
// not flagged are returned unchanged.
func (s *OrderItemService) ReconcileStock(ctx context.Context, id uint) (*models.OrderItem, error) {
	item, err := s.GetOrderItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.NeedsStockReconciliation {
		return item, nil
	}

	if _, err := s.foods.AdjustStock(ctx, item.FoodID, -item.Quantity, item.StockReference()); err != nil {
		metrics.StockReconciliationsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	now := s.now()
	err = s.db.WithContext(ctx).Model(item).
		Select("NeedsStockReconciliation", "StockReconciledAt").
		Updates(&models.OrderItem{NeedsStockReconciliation: false, StockReconciledAt: &now}).Error
	if err != nil {
		return nil, utils.PersistenceError("order item", err)
	}
	item.NeedsStockReconciliation = false
	item.StockReconciledAt = &now

	metrics.StockReconciliationsTotal.WithLabelValues("reconciled").Inc()
	utils.InfoLogger.WithField("order_item_id", id).Info("stock reconciled")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityOrderItem, Name: events.StockSettled, ID: id})
	return item, nil
}

func (s *OrderItemService) ListPendingReconciliation(ctx context.Context) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := s.db.WithContext(ctx).Where("needs_stock_reconciliation = ?", true).Order("id").Find(&items).Error; err != nil {
		return nil, utils.PersistenceError("order item", err)
	}
	return items, nil
}

func (s *OrderItemService) GetOrderItem(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, utils.PersistenceError("order item", err)
	}
	return &item, nil
}

// ListOrderItems lists the items of one order, or every item when orderID is 0.
func (s *OrderItemService) ListOrderItems(ctx context.Context, orderID uint, status models.OrderItemStatus) ([]models.OrderItem, error) {
	query := s.db.WithContext(ctx).Order("id")
	if orderID != 0 {
		query = query.Where("order_id = ?", orderID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []models.OrderItem
	if err := query.Find(&items).Error; err != nil {
		return nil, utils.PersistenceError("order item", err)
	}
	return items, nil
}
