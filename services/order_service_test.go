package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

func TestCreateOrderOnSeatedReservation(t *testing.T) {
	p := newPlatform(t)
	r, table := p.seated(t, 2)

	o := p.order(t, r.ID)
	assert.Equal(t, models.OrderServing, o.OrderStatus)
	assert.Equal(t, table.ID, *o.TableID)
	assert.True(t, o.TotalPrice.IsZero())
	require.Len(t, o.OrderStatusHistory, 1)
}

func TestCreateOrderRejectsCanceledReservation(t *testing.T) {
	p := newPlatform(t)
	p.table(t, 4)
	r := p.reservation(t, 2, dinnerTime)
	_, err := p.reservations.Cancel(context.Background(), r.ID)
	require.NoError(t, err)

	_, err = p.orders.CreateOrder(context.Background(), CreateOrderInput{ReservationID: r.ID})
	assertKind(t, err, utils.KindConflict)

	_, err = p.orders.CreateOrder(context.Background(), CreateOrderInput{ReservationID: 404})
	assertKind(t, err, utils.KindNotFound)
}

func TestOnlyOneServingOrderPerTable(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)

	first := p.order(t, r.ID)
	_, err := p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: r.ID})
	assertKind(t, err, utils.KindConflict)

	_, err = p.orders.UpdateOrderStatus(ctx, first.ID, models.OrderCompleted)
	require.NoError(t, err)
	_, err = p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: r.ID})
	assert.NoError(t, err)
}

func TestMovingOrderFollowsReservationTable(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	a, _ := p.seated(t, 2)
	b, tableB := p.seated(t, 2)
	c, tableC := p.seated(t, 2)

	moved := p.order(t, a.ID)
	p.order(t, b.ID)

	// Table B already has a serving order.
	_, err := p.orders.UpdateOrder(ctx, moved.ID, UpdateOrderInput{ReservationID: &b.ID})
	assertKind(t, err, utils.KindConflict)

	got, err := p.orders.UpdateOrder(ctx, moved.ID, UpdateOrderInput{ReservationID: &c.ID})
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ReservationID)
	require.NotNil(t, got.TableID)
	assert.Equal(t, tableC.ID, *got.TableID)

	_, err = p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: c.ID})
	assertKind(t, err, utils.KindConflict)

	// Table A is free again.
	_, err = p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: a.ID})
	assert.NoError(t, err)

	var serving int64
	require.NoError(t, p.db.Model(&models.Order{}).
		Where("table_id = ? AND order_status = ?", tableB.ID, models.OrderServing).
		Count(&serving).Error)
	assert.EqualValues(t, 1, serving)
}

func TestCreateOrderValidatesItems(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	food := p.food(t, 30000, 50)

	o := p.order(t, r.ID)
	a := p.item(t, o.ID, food.ID, 1)
	// Detach each one so both are free to attach again.
	_, err := p.orders.UpdateOrder(ctx, o.ID, UpdateOrderInput{OrderItemIDs: &[]uint{}})
	require.NoError(t, err)
	b := p.item(t, o.ID, food.ID, 2)
	_, err = p.orders.UpdateOrder(ctx, o.ID, UpdateOrderInput{OrderItemIDs: &[]uint{}})
	require.NoError(t, err)
	_, err = p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	require.NoError(t, err)

	_, err = p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: r.ID, OrderItemIDs: []uint{a.ID, b.ID}})
	assertKind(t, err, utils.KindValidation)
	assert.Contains(t, err.Error(), "more than one order item")

	_, err = p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: r.ID, OrderItemIDs: []uint{a.ID, 999}})
	assertKind(t, err, utils.KindNotFound)

	created, err := p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: r.ID, OrderItemIDs: []uint{a.ID}})
	require.NoError(t, err)
	require.Len(t, created.OrderItems, 1)
	assert.Equal(t, a.ID, created.OrderItems[0].ID)

	_, err = p.orders.UpdateOrderStatus(ctx, created.ID, models.OrderCompleted)
	assertKind(t, err, utils.KindValidation)
}

func TestOrderItemAlreadyAttachedIsRejected(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	first, _ := p.seated(t, 2)
	second, _ := p.seated(t, 2)
	food := p.food(t, 10000, 50)

	o := p.order(t, first.ID)
	item := p.item(t, o.ID, food.ID, 1)

	_, err := p.orders.CreateOrder(ctx, CreateOrderInput{ReservationID: second.ID, OrderItemIDs: []uint{item.ID}})
	assertKind(t, err, utils.KindConflict)
}

func TestUpdateOrderRefusesStatusAndTotal(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	o := p.order(t, r.ID)

	status := "Completed"
	_, err := p.orders.UpdateOrder(ctx, o.ID, UpdateOrderInput{OrderStatus: &status})
	assertKind(t, err, utils.KindValidation)

	_, err = p.orders.UpdateOrder(ctx, o.ID, UpdateOrderInput{TotalPrice: json.RawMessage(`"1000"`)})
	assertKind(t, err, utils.KindValidation)

	_, err = p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	require.NoError(t, err)
	_, err = p.orders.UpdateOrder(ctx, o.ID, UpdateOrderInput{OrderItemIDs: &[]uint{}})
	assertKind(t, err, utils.KindConflict)
}

func TestOrderTotalCountsServedItemsOnly(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 4)
	pho := p.food(t, 45000, 50)
	tea := p.food(t, 15000, 50)
	rice := p.food(t, 30000, 50)

	o := p.order(t, r.ID)
	served := p.item(t, o.ID, pho.ID, 2)
	cancelled := p.item(t, o.ID, tea.ID, 1)
	pending := p.item(t, o.ID, rice.ID, 1)

	got, err := p.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.IsZero())

	p.serve(t, served.ID)
	p.advance(t, cancelled.ID, models.ItemPreparing, models.ItemCancelled)

	got, err = p.orders.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(90000)), got.TotalPrice.String())

	_, err = p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	assertKind(t, err, utils.KindValidation)

	p.advance(t, pending.ID, models.ItemCancelled)
	got, err = p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.OrderStatus)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(90000)))
	assert.Len(t, got.OrderStatusHistory, 2)
}

func TestCompletedOrderIsFinal(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	o := p.order(t, r.ID)

	_, err := p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	require.NoError(t, err)

	again, err := p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted)
	require.NoError(t, err)
	assert.Len(t, again.OrderStatusHistory, 2)

	_, err = p.orders.UpdateOrderStatus(ctx, o.ID, models.OrderServing)
	assertKind(t, err, utils.KindConflict)

	_, err = p.orders.UpdateOrderStatus(ctx, o.ID, "Paid")
	assertKind(t, err, utils.KindValidation)

	assert.Error(t, p.orders.DeleteOrder(ctx, o.ID))
}

func TestDeleteOrderRestoresPendingStock(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	food := p.food(t, 10000, 20)

	o := p.order(t, r.ID)
	p.item(t, o.ID, food.ID, 5)
	left, err := p.foods.GetFood(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, left.Quantity)

	require.NoError(t, p.orders.DeleteOrder(ctx, o.ID))

	left, err = p.foods.GetFood(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, left.Quantity)

	_, err = p.orders.GetOrder(ctx, o.ID)
	assertKind(t, err, utils.KindNotFound)
}

func TestListOrdersByReservation(t *testing.T) {
	p := newPlatform(t)
	r, _ := p.seated(t, 2)
	other, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 10000, 1)
	p.order(t, r.ID)
	p.order(t, other.ID)

	orders, err := p.orders.ListOrdersByReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
