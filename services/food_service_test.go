package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

func newFoodService(t *testing.T) (*FoodService, *events.Recorder) {
	rec := &events.Recorder{}
	return NewFoodService(setupTestDB(t), rec, 5), rec
}

func TestCreateFoodValidation(t *testing.T) {
	s, _ := newFoodService(t)
	ctx := context.Background()

	_, err := s.CreateFood(ctx, FoodInput{Name: " ", Price: decimal.NewFromInt(1)})
	assertKind(t, err, utils.KindValidation)
	_, err = s.CreateFood(ctx, FoodInput{Name: "Pho", Price: decimal.Zero})
	assertKind(t, err, utils.KindValidation)
	_, err = s.CreateFood(ctx, FoodInput{Name: "Pho", Price: decimal.NewFromInt(1), Quantity: -1})
	assertKind(t, err, utils.KindValidation)

	food, err := s.CreateFood(ctx, FoodInput{Name: " Pho ", Price: decimal.NewFromInt(45000), Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, "Pho", food.Name)
	assert.Equal(t, models.FoodUnavailable, food.Status)

	_, err = s.CreateFood(ctx, FoodInput{Name: "Pho", Price: decimal.NewFromInt(45000)})
	assertKind(t, err, utils.KindPersistence)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAdjustStockIsIdempotentPerReference(t *testing.T) {
	s, rec := newFoodService(t)
	ctx := context.Background()
	food, err := s.CreateFood(ctx, FoodInput{Name: "Bun Cha", Price: decimal.NewFromInt(50000), Quantity: 20})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := s.AdjustStock(ctx, food.ID, -4, "order-item:1")
		require.NoError(t, err)
		assert.Equal(t, 16, got.Quantity)
	}

	_, err = s.AdjustStock(ctx, food.ID, -1, "")
	require.NoError(t, err)
	_, err = s.AdjustStock(ctx, food.ID, -1, "")
	require.NoError(t, err)

	got, err := s.GetFood(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 14, got.Quantity)

	movements, err := s.StockMovements(ctx, food.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
	assert.Len(t, rec.Events(), 3)
}

func TestAdjustStockNeverGoesNegative(t *testing.T) {
	s, _ := newFoodService(t)
	ctx := context.Background()
	food, err := s.CreateFood(ctx, FoodInput{Name: "Goi Cuon", Price: decimal.NewFromInt(30000), Quantity: 10})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.AdjustStock(ctx, food.ID, -3, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	got, err := s.GetFood(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 1, got.Quantity)

	_, err = s.AdjustStock(ctx, food.ID, -2, "x")
	assertKind(t, err, utils.KindValidation)
	_, err = s.AdjustStock(ctx, 999, 1, "")
	assertKind(t, err, utils.KindNotFound)
}

func TestLowStockFlipsAvailability(t *testing.T) {
	s, _ := newFoodService(t)
	ctx := context.Background()
	food, err := s.CreateFood(ctx, FoodInput{Name: "Banh Mi", Price: decimal.NewFromInt(25000), Quantity: 6})
	require.NoError(t, err)
	assert.Equal(t, models.FoodAvailable, food.Status)

	got, err := s.AdjustStock(ctx, food.ID, -2, "a")
	require.NoError(t, err)
	assert.Equal(t, models.FoodUnavailable, got.Status)

	got, err = s.AdjustStock(ctx, food.ID, 10, "b")
	require.NoError(t, err)
	assert.Equal(t, models.FoodAvailable, got.Status)

	available, err := s.ListFoods(ctx, "", models.FoodAvailable)
	require.NoError(t, err)
	assert.Len(t, available, 1)
}

func TestDeleteFood(t *testing.T) {
	s, _ := newFoodService(t)
	ctx := context.Background()
	food, err := s.CreateFood(ctx, FoodInput{Name: "Che", Price: decimal.NewFromInt(15000), Quantity: 6})
	require.NoError(t, err)

	require.NoError(t, s.DeleteFood(ctx, food.ID))
	assertKind(t, s.DeleteFood(ctx, food.ID), utils.KindNotFound)
	_, err = s.GetFood(ctx, food.ID)
	assertKind(t, err, utils.KindNotFound)
}
