package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
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

var hundred = decimal.NewFromInt(100)

type CreatePaymentInput struct {
	ReservationID   uint                 `json:"reservation_id"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	DiscountID      *uint                `json:"discount_id"`
	DiscountCode    string               `json:"discount_code"`
	TaxPercentage   *decimal.Decimal     `json:"tax_percentage"`
	TransactionInfo string               `json:"transaction_info"`
	CreatedBy       uint                 `json:"-"`
}

type PaymentFilter struct {
	Status        models.PaymentStatus
	ReservationID uint
}

// PaymentRules are the billing defaults.
type PaymentRules struct {
	TaxPercentage decimal.Decimal
	CodeRetries   int
}

// Bill is the arithmetic of a payment.
type Bill struct {
	Original decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Deposit  decimal.Decimal
	Final    decimal.Decimal
}

// ComputeBill applies tax and discount to the original amount and takes the
// deposit off. The result never goes below zero.
func ComputeBill(original, taxPercentage decimal.Decimal, discountPercentage int, deposit decimal.Decimal) Bill {
	b := Bill{
		Original: original,
		Tax:      original.Mul(taxPercentage).Div(hundred).Round(2),
		Discount: original.Mul(decimal.NewFromInt(int64(discountPercentage))).Div(hundred).Round(2),
		Deposit:  deposit,
	}
	b.Final = b.Original.Add(b.Tax).Sub(b.Discount).Sub(b.Deposit)
	if b.Final.IsNegative() {
		b.Final = decimal.Zero
	}
	return b
}

// PaymentService aggregates a reservation's completed orders into one bill.
type PaymentService struct {
	db           *gorm.DB
	orders       OrderLookup
	reservations ReservationLookup
	discounts    *DiscountService
	locker       locks.Locker
	events       events.Publisher
	rules        PaymentRules
	now          func() time.Time
}

func NewPaymentService(db *gorm.DB, orders OrderLookup, reservations ReservationLookup, discounts *DiscountService,
	locker locks.Locker, publisher events.Publisher, rules PaymentRules) *PaymentService {
	if rules.CodeRetries <= 0 {
		rules.CodeRetries = 20
	}
	return &PaymentService{
		db:           db,
		orders:       orders,
		reservations: reservations,
		discounts:    discounts,
		locker:       locker,
		events:       publisher,
		rules:        rules,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput) (*models.Payment, error) {
	if in.ReservationID == 0 {
		return nil, utils.NewValidationError("reservation_id is required")
	}
	if !in.PaymentMethod.Valid() {
		return nil, utils.NewValidationError("payment_method must be Cash or Momo")
	}
	tax := s.rules.TaxPercentage
	if in.TaxPercentage != nil {
		tax = *in.TaxPercentage
	}
	if tax.IsNegative() || tax.GreaterThan(hundred) {
		return nil, utils.NewValidationError("tax_percentage must be between 0 and 100")
	}

	unlock, err := s.locker.Lock(ctx, locks.PaymentKey(in.ReservationID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	orders, err := s.orders.ListOrdersByReservation(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, utils.NewValidationError("reservation %d has no orders to pay", in.ReservationID)
	}
	original := decimal.Zero
	for _, order := range orders {
		if order.OrderStatus != models.OrderCompleted {
			return nil, utils.NewValidationError("order %d is still %s, all orders must be completed before payment", order.ID, order.OrderStatus)
		}
		original = original.Add(order.TotalPrice)
	}

	reservation, err := s.reservations.GetReservation(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}

	firstOrder := orders[0].ID
	payment := models.Payment{
		OrderID:         &firstOrder,
		ReservationID:   in.ReservationID,
		PaymentMethod:   in.PaymentMethod,
		TaxPercentage:   tax,
		Status:          models.PaymentPending,
		StatusHistory:   seedHistory(string(models.PaymentPending), s.now()),
		CreatedBy:       in.CreatedBy,
		TransactionInfo: in.TransactionInfo,
	}
	if payment.TransactionInfo == "" {
		payment.TransactionInfo = "TXN-" + uuid.NewString()
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var live int64
		if err := tx.Model(&models.Payment{}).
			Where("reservation_id = ? AND status IN ?", in.ReservationID,
				[]models.PaymentStatus{models.PaymentPending, models.PaymentCompleted}).
			Count(&live).Error; err != nil {
			return err
		}
		if live > 0 {
			return utils.NewConflictError("reservation %d already has a payment", in.ReservationID)
		}

		percentage := 0
		if requested, err := s.resolveDiscount(ctx, tx, in); err != nil {
			return err
		} else if requested != nil {
			discount, err := s.discounts.Consume(ctx, tx, requested.ID)
			if err != nil {
				return err
			}
			payment.DiscountID = &discount.ID
			percentage = discount.DiscountPercentage
		}

		bill := ComputeBill(original, tax, percentage, reservation.Deposit)
		payment.OriginalAmount = bill.Original
		payment.TaxAmount = bill.Tax
		payment.DiscountAmount = bill.Discount
		payment.DepositAmount = bill.Deposit
		payment.FinalAmount = bill.Final

		return s.insertWithCode(tx, &payment)
	})
	if err != nil {
		return nil, utils.PersistenceError("payment", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"payment_code":   payment.PaymentCode,
		"reservation_id": payment.ReservationID,
		"final_amount":   payment.FinalAmount.String(),
	}).Info("payment created")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityPayment, Name: events.Created, ID: payment.ID, To: string(payment.Status)})
	return s.GetPayment(ctx, payment.ID)
}

// resolveDiscount loads the discount named by id or code. Consume still
// guards the use itself, this only rejects one that is already spent.
func (s *PaymentService) resolveDiscount(ctx context.Context, tx *gorm.DB, in CreatePaymentInput) (*models.Discount, error) {
	var discount models.Discount
	query := tx.WithContext(ctx)
	code := strings.ToUpper(strings.TrimSpace(in.DiscountCode))
	switch {
	case in.DiscountID != nil:
		query = query.Where("id = ?", *in.DiscountID)
	case code != "":
		query = query.Where("discount_code = ?", code)
	default:
		return nil, nil
	}
	if err := query.First(&discount).Error; err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	if !discount.IsValid() {
		return nil, utils.NewConflictError("discount %s is inactive or fully used", discount.DiscountCode)
	}
	return &discount, nil
}

// insertWithCode assigns the next DDMMYYNNNN code of the day and retries with
// the following number when another payment took it first.
func (s *PaymentService) insertWithCode(tx *gorm.DB, payment *models.Payment) error {
	now := s.now()
	prefix := utils.PaymentCodePrefix(now)

	var last models.Payment
	seq := 1
	err := tx.Where("payment_code LIKE ?", prefix+"%").Order("payment_code DESC").Limit(1).Find(&last).Error
	if err != nil {
		return err
	}
	if last.ID != 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(last.PaymentCode, prefix)); err == nil {
			seq = n + 1
		}
	}

	for attempt := 0; attempt < s.rules.CodeRetries; attempt++ {
		payment.PaymentCode = utils.PaymentCode(now, seq)
		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(payment).Error
		})
		if err == nil {
			return nil
		}
		if !utils.IsDuplicateKey(err) {
			return err
		}
		payment.ID = 0
		seq++
	}
	return utils.NewPersistenceError("could not allocate a payment code", errors.New("too many collisions"))
}

// UpdatePaymentStatus applies one payment transition. Failing or cancelling
// a payment gives its discount use back.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, id uint, status models.PaymentStatus) (*models.Payment, error) {
	if !status.Valid() {
		return nil, utils.NewValidationError("invalid payment status %q", status)
	}

	var from models.PaymentStatus
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.First(&payment, id).Error; err != nil {
			return err
		}
		from = payment.Status
		if from == status {
			return nil
		}
		if !payment.Transition(status, s.now()) {
			metrics.Rejected(events.EntityPayment)
			return utils.NewConflictError("cannot change payment status from %s to %s", from, status)
		}
		res := tx.Model(&payment).Where("status = ?", from).Select("Status", "StatusHistory").Updates(&payment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("payment was modified concurrently, retry")
		}
		changed = true

		if payment.DiscountID != nil && (status == models.PaymentFailed || status == models.PaymentCancelled) {
			return s.discounts.Release(ctx, tx, *payment.DiscountID)
		}
		return nil
	})
	if err != nil {
		return nil, utils.PersistenceError("payment", err)
	}

	if changed {
		metrics.Transition(events.EntityPayment, string(status))
		utils.InfoLogger.WithFields(logrus.Fields{
			"payment_id": id,
			"from":       from,
			"to":         status,
		}).Info("payment status changed")
		events.Emit(ctx, s.events, events.Transition(events.EntityPayment, id, string(from), string(status)))
	}
	return s.GetPayment(ctx, id)
}

func (s *PaymentService) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Discount").First(&payment, id).Error; err != nil {
		return nil, utils.PersistenceError("payment", err)
	}
	return &payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	query := s.db.WithContext(ctx).Preload("Discount").Order("id")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ReservationID != 0 {
		query = query.Where("reservation_id = ?", filter.ReservationID)
	}
	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, utils.PersistenceError("payment", err)
	}
	return payments, nil
}
