package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

func TestCreateDiscount(t *testing.T) {
	s := NewDiscountService(setupTestDB(t), &events.Recorder{})
	ctx := context.Background()

	_, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 0, Quantity: 1}, 1)
	assertKind(t, err, utils.KindValidation)
	_, err = s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 101, Quantity: 1}, 1)
	assertKind(t, err, utils.KindValidation)
	_, err = s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 0}, 1)
	assertKind(t, err, utils.KindValidation)

	discount, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 15, Quantity: 3}, 9)
	require.NoError(t, err)
	assert.Len(t, discount.DiscountCode, 5)
	assert.Equal(t, models.DiscountActive, discount.Status)
	assert.Equal(t, uint(9), discount.CreatedBy)

	byCode, err := s.GetByCode(ctx, discount.DiscountCode)
	require.NoError(t, err)
	assert.Equal(t, discount.ID, byCode.ID)
}

func TestCreateDiscountRetriesCodeCollision(t *testing.T) {
	s := NewDiscountService(setupTestDB(t), &events.Recorder{})
	ctx := context.Background()

	codes := []string{"AAAAA", "AAAAA", "AAAAA", "BBBBB"}
	s.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 1}, 1)
	require.NoError(t, err)
	second, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 1}, 1)
	require.NoError(t, err)

	assert.Equal(t, "AAAAA", first.DiscountCode)
	assert.Equal(t, "BBBBB", second.DiscountCode)
	assert.Empty(t, codes)
}

func TestConsumeStopsAtQuantity(t *testing.T) {
	db := setupTestDB(t)
	s := NewDiscountService(db, &events.Recorder{})
	ctx := context.Background()
	discount, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 2}, 1)
	require.NoError(t, err)

	consume := func() error {
		return db.Transaction(func(tx *gorm.DB) error {
			_, err := s.Consume(ctx, tx, discount.ID)
			return err
		})
	}
	require.NoError(t, consume())
	require.NoError(t, consume())
	assertKind(t, consume(), utils.KindConflict)

	got, err := s.GetDiscount(ctx, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)
	assert.False(t, got.IsValid())

	require.NoError(t, s.Release(ctx, db, discount.ID))
	require.NoError(t, consume())

	inactive := models.DiscountInactive
	_, err = s.UpdateDiscount(ctx, discount.ID, UpdateDiscountInput{Status: &inactive})
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, db, discount.ID))
	assertKind(t, consume(), utils.KindConflict)
}

func TestUpdateAndDeleteUsedDiscount(t *testing.T) {
	db := setupTestDB(t)
	s := NewDiscountService(db, &events.Recorder{})
	ctx := context.Background()
	discount, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 5}, 1)
	require.NoError(t, err)
	_, err = s.Consume(ctx, db, discount.ID)
	require.NoError(t, err)
	_, err = s.Consume(ctx, db, discount.ID)
	require.NoError(t, err)

	pct := 30
	_, err = s.UpdateDiscount(ctx, discount.ID, UpdateDiscountInput{DiscountPercentage: &pct})
	assertKind(t, err, utils.KindConflict)

	qty := 1
	_, err = s.UpdateDiscount(ctx, discount.ID, UpdateDiscountInput{Quantity: &qty})
	assertKind(t, err, utils.KindValidation)

	qty = 10
	updated, err := s.UpdateDiscount(ctx, discount.ID, UpdateDiscountInput{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Quantity)

	assertKind(t, s.DeleteDiscount(ctx, discount.ID), utils.KindConflict)

	unused, err := s.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 10, Quantity: 5}, 1)
	require.NoError(t, err)
	require.NoError(t, s.DeleteDiscount(ctx, unused.ID))
	_, err = s.GetDiscount(ctx, unused.ID)
	assertKind(t, err, utils.KindNotFound)
}
