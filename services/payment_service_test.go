package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestComputeBill(t *testing.T) {
	tests := []struct {
		name     string
		original decimal.Decimal
		tax      decimal.Decimal
		discount int
		deposit  decimal.Decimal
		want     Bill
	}{
		{
			name:     "tax only",
			original: d(100000), tax: d(10),
			want: Bill{Original: d(100000), Tax: d(10000), Discount: d(0), Deposit: d(0), Final: d(110000)},
		},
		{
			name:     "discount is taken from the original amount",
			original: d(100000), tax: d(10), discount: 20,
			want: Bill{Original: d(100000), Tax: d(10000), Discount: d(20000), Deposit: d(0), Final: d(90000)},
		},
		{
			name:     "deposit is subtracted",
			original: d(200000), tax: d(10), discount: 50, deposit: d(100000),
			want: Bill{Original: d(200000), Tax: d(20000), Discount: d(100000), Deposit: d(100000), Final: d(20000)},
		},
		{
			name:     "final never goes below zero",
			original: d(30000), tax: d(10), deposit: d(100000),
			want: Bill{Original: d(30000), Tax: d(3000), Discount: d(0), Deposit: d(100000), Final: d(0)},
		},
		{
			name:     "fractional tax rounds to cents",
			original: d(333), tax: decimal.RequireFromString("7.5"),
			want: Bill{Original: d(333), Tax: decimal.RequireFromString("24.98"), Discount: d(0), Deposit: d(0), Final: decimal.RequireFromString("357.98")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBill(tt.original, tt.tax, tt.discount, tt.deposit)
			assert.Truef(t, tt.want.Tax.Equal(got.Tax), "tax %s", got.Tax)
			assert.Truef(t, tt.want.Discount.Equal(got.Discount), "discount %s", got.Discount)
			assert.Truef(t, tt.want.Deposit.Equal(got.Deposit), "deposit %s", got.Deposit)
			assert.Truef(t, tt.want.Final.Equal(got.Final), "final %s", got.Final)
		})
	}
}

func TestCreatePaymentRequiresCompletedOrders(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)

	_, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	assertKind(t, err, utils.KindValidation)

	p.completedOrder(t, r.ID, 10000, 1)
	p.order(t, r.ID)
	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	assertKind(t, err, utils.KindValidation)
	assert.Contains(t, err.Error(), "Serving")

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: "Card"})
	assertKind(t, err, utils.KindValidation)
}

func TestCreatePaymentAggregatesOrders(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	p.payments.now = func() time.Time { return dinnerTime }
	r, _ := p.seated(t, 6)

	p.completedOrder(t, r.ID, 50000, 2)
	p.completedOrder(t, r.ID, 40000, 3)

	payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentMomo, CreatedBy: 7})
	require.NoError(t, err)
	assert.Equal(t, "1005300001", payment.PaymentCode)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.True(t, payment.OriginalAmount.Equal(d(220000)), payment.OriginalAmount.String())
	assert.True(t, payment.TaxAmount.Equal(d(22000)))
	assert.True(t, payment.DepositAmount.Equal(d(100000)))
	assert.True(t, payment.FinalAmount.Equal(d(142000)), payment.FinalAmount.String())
	assert.True(t, strings.HasPrefix(payment.TransactionInfo, "TXN-"))
	assert.Equal(t, uint(7), payment.CreatedBy)
	require.Len(t, payment.StatusHistory, 1)

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	assertKind(t, err, utils.KindConflict)
}

func TestPaymentCodeSequencePerDay(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	p.payments.now = func() time.Time { return dinnerTime }

	var codes []string
	for i := 0; i < 2; i++ {
		r, _ := p.seated(t, 2)
		p.completedOrder(t, r.ID, 10000, 1)
		payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
		require.NoError(t, err)
		codes = append(codes, payment.PaymentCode)
	}
	assert.Equal(t, []string{"1005300001", "1005300002"}, codes)

	p.payments.now = func() time.Time { return dinnerTime.Add(24 * time.Hour) }
	r, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 10000, 1)
	payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, "1105300001", payment.PaymentCode)
}

func TestPaymentCodeCollisionIsRetried(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	p.payments.now = func() time.Time { return dinnerTime }

	// The unparseable code sorts last, so the next number is guessed as 0001,
	// which is already taken.
	for _, code := range []string{"1005300001", "10053000zz"} {
		require.NoError(t, p.db.Create(&models.Payment{
			PaymentCode:   code,
			ReservationID: 999,
			PaymentMethod: models.PaymentCash,
			Status:        models.PaymentCancelled,
		}).Error)
	}

	r, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 10000, 1)
	payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, "1005300002", payment.PaymentCode)
}

func TestDiscountIsConsumedAndReleased(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	discount, err := p.discounts.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 20, Quantity: 1}, 1)
	require.NoError(t, err)

	first, _ := p.seated(t, 2)
	p.completedOrder(t, first.ID, 50000, 2)
	second, _ := p.seated(t, 2)
	p.completedOrder(t, second.ID, 50000, 2)

	paid, err := p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: first.ID,
		PaymentMethod: models.PaymentCash,
		DiscountCode:  strings.ToLower(discount.DiscountCode),
	})
	require.NoError(t, err)
	require.NotNil(t, paid.Discount)
	assert.Equal(t, discount.ID, paid.Discount.ID)
	assert.True(t, paid.DiscountAmount.Equal(d(20000)))
	assert.True(t, paid.FinalAmount.Equal(d(90000)), paid.FinalAmount.String())

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: second.ID,
		PaymentMethod: models.PaymentCash,
		DiscountID:    &discount.ID,
	})
	assertKind(t, err, utils.KindConflict)
	left, err := p.payments.ListPayments(ctx, PaymentFilter{ReservationID: second.ID})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = p.payments.UpdatePaymentStatus(ctx, paid.ID, models.PaymentFailed)
	require.NoError(t, err)
	released, err := p.discounts.GetDiscount(ctx, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, released.UsedCount)

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: second.ID,
		PaymentMethod: models.PaymentCash,
		DiscountID:    &discount.ID,
	})
	require.NoError(t, err)

	// The failed payment no longer blocks a new one.
	retry, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: first.ID, PaymentMethod: models.PaymentCash})
	require.NoError(t, err)
	assert.Nil(t, retry.DiscountID)

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: first.ID,
		PaymentMethod: models.PaymentCash,
		DiscountCode:  "NOPE1",
	})
	assert.Error(t, err)
}

func TestPaymentRejectsInactiveDiscount(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	discount, err := p.discounts.CreateDiscount(ctx, DiscountInput{DiscountPercentage: 15, Quantity: 3}, 1)
	require.NoError(t, err)
	inactive := models.DiscountInactive
	_, err = p.discounts.UpdateDiscount(ctx, discount.ID, UpdateDiscountInput{Status: &inactive})
	require.NoError(t, err)

	r, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 40000, 1)

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: r.ID,
		PaymentMethod: models.PaymentCash,
		DiscountCode:  discount.DiscountCode,
	})
	assertKind(t, err, utils.KindConflict)
	assert.Contains(t, err.Error(), "inactive or fully used")

	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: r.ID,
		PaymentMethod: models.PaymentCash,
		DiscountID:    &discount.ID,
	})
	assertKind(t, err, utils.KindConflict)

	unchanged, err := p.discounts.GetDiscount(ctx, discount.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, unchanged.UsedCount)

	missing := uint(999)
	_, err = p.payments.CreatePayment(ctx, CreatePaymentInput{
		ReservationID: r.ID,
		PaymentMethod: models.PaymentCash,
		DiscountID:    &missing,
	})
	assertKind(t, err, utils.KindNotFound)
}

func TestPaymentTransitions(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 10000, 1)
	payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	require.NoError(t, err)

	_, err = p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentRefunded)
	assertKind(t, err, utils.KindConflict)

	done, err := p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, done.Status)

	_, err = p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentFailed)
	assertKind(t, err, utils.KindConflict)

	refunded, err := p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentRefunded)
	require.NoError(t, err)
	require.Len(t, refunded.StatusHistory, 3)

	_, err = p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentCompleted)
	assertKind(t, err, utils.KindConflict)

	_, err = p.payments.UpdatePaymentStatus(ctx, payment.ID, "Lost")
	assertKind(t, err, utils.KindValidation)
}

func TestReceiptForCompletedPayment(t *testing.T) {
	p := newPlatform(t)
	ctx := context.Background()
	r, _ := p.seated(t, 2)
	p.completedOrder(t, r.ID, 45000, 2)
	payment, err := p.payments.CreatePayment(ctx, CreatePaymentInput{ReservationID: r.ID, PaymentMethod: models.PaymentCash})
	require.NoError(t, err)

	_, err = p.payments.Receipt(ctx, payment.ID)
	assertKind(t, err, utils.KindConflict)

	_, err = p.payments.UpdatePaymentStatus(ctx, payment.ID, models.PaymentCompleted)
	require.NoError(t, err)

	receipt, err := p.payments.Receipt(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(receipt.PDF, []byte("%PDF")))
	assert.Equal(t, "receipt-"+payment.PaymentCode+".pdf", receipt.Filename)
	assert.True(t, strings.HasPrefix(receipt.Number, "RCP/"))
}
