package services

import (
	"context"

	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

const maxDiscountCodeAttempts = 50

type DiscountInput struct {
	DiscountPercentage int                   `json:"discount_percentage"`
	Quantity           int                   `json:"quantity"`
	Status             models.DiscountStatus `json:"status"`
}

type UpdateDiscountInput struct {
	DiscountPercentage *int                   `json:"discount_percentage"`
	Quantity           *int                   `json:"quantity"`
	Status             *models.DiscountStatus `json:"status"`
}

func validDiscountStatus(s models.DiscountStatus) bool {
	return s == models.DiscountActive || s == models.DiscountInactive
}

// DiscountService is the discount ledger. Uses are counted by Consume and
// given back by Release, both inside the caller's transaction.
type DiscountService struct {
	db     *gorm.DB
	events events.Publisher
	// newCode is swappable so code collisions can be exercised.
	newCode func() (string, error)
}

func NewDiscountService(db *gorm.DB, publisher events.Publisher) *DiscountService {
	return &DiscountService{db: db, events: publisher, newCode: utils.RandomDiscountCode}
}

func (s *DiscountService) CreateDiscount(ctx context.Context, in DiscountInput, createdBy uint) (*models.Discount, error) {
	if in.DiscountPercentage < 1 || in.DiscountPercentage > 100 {
		return nil, utils.NewValidationError("discount_percentage must be between 1 and 100")
	}
	if in.Quantity < 1 {
		return nil, utils.NewValidationError("quantity must be at least 1")
	}
	if in.Status == "" {
		in.Status = models.DiscountActive
	}
	if !validDiscountStatus(in.Status) {
		return nil, utils.NewValidationError("status must be Active or Inactive")
	}

	for attempt := 0; attempt < maxDiscountCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		discount := models.Discount{
			DiscountCode:       code,
			DiscountPercentage: in.DiscountPercentage,
			Quantity:           in.Quantity,
			Status:             in.Status,
			CreatedBy:          createdBy,
		}
		err = s.db.WithContext(ctx).Create(&discount).Error
		if err == nil {
			events.Emit(ctx, s.events, events.Event{Entity: events.EntityDiscount, Name: events.Created, ID: discount.ID})
			return &discount, nil
		}
		if !utils.IsDuplicateKey(err) {
			return nil, utils.PersistenceError("discount", err)
		}
	}
	return nil, utils.NewPersistenceError("could not generate a unique discount code", nil)
}

func (s *DiscountService) GetDiscount(ctx context.Context, id uint) (*models.Discount, error) {
	var discount models.Discount
	if err := s.db.WithContext(ctx).First(&discount, id).Error; err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	return &discount, nil
}

func (s *DiscountService) GetByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	if err := s.db.WithContext(ctx).Where("discount_code = ?", code).First(&discount).Error; err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	return &discount, nil
}

func (s *DiscountService) ListDiscounts(ctx context.Context, status models.DiscountStatus) ([]models.Discount, error) {
	query := s.db.WithContext(ctx).Order("id")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var discounts []models.Discount
	if err := query.Find(&discounts).Error; err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	return discounts, nil
}

func (s *DiscountService) UpdateDiscount(ctx context.Context, id uint, in UpdateDiscountInput) (*models.Discount, error) {
	var discount models.Discount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&discount, id).Error; err != nil {
			return err
		}
		if in.DiscountPercentage != nil {
			if *in.DiscountPercentage < 1 || *in.DiscountPercentage > 100 {
				return utils.NewValidationError("discount_percentage must be between 1 and 100")
			}
			if discount.UsedCount > 0 && *in.DiscountPercentage != discount.DiscountPercentage {
				return utils.NewConflictError("percentage of a discount that has been used cannot change")
			}
			discount.DiscountPercentage = *in.DiscountPercentage
		}
		if in.Quantity != nil {
			if *in.Quantity < 1 || *in.Quantity < discount.UsedCount {
				return utils.NewValidationError("quantity must be at least 1 and not below used_count (%d)", discount.UsedCount)
			}
			discount.Quantity = *in.Quantity
		}
		if in.Status != nil {
			if !validDiscountStatus(*in.Status) {
				return utils.NewValidationError("status must be Active or Inactive")
			}
			discount.Status = *in.Status
		}
		return tx.Model(&discount).Select("DiscountPercentage", "Quantity", "Status").Updates(&discount).Error
	})
	if err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	return &discount, nil
}

func (s *DiscountService) DeleteDiscount(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var discount models.Discount
		if err := tx.First(&discount, id).Error; err != nil {
			return err
		}
		if discount.UsedCount > 0 {
			return utils.NewConflictError("discount has already been used and cannot be deleted")
		}
		return tx.Delete(&discount).Error
	})
	return utils.PersistenceError("discount", err)
}

// Consume takes one use of the discount if it is still valid. The check and
// the increment are a single conditional UPDATE.
func (s *DiscountService) Consume(ctx context.Context, tx *gorm.DB, id uint) (*models.Discount, error) {
	res := tx.WithContext(ctx).Model(&models.Discount{}).
		Where("id = ? AND status = ? AND used_count < quantity", id, models.DiscountActive).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return nil, res.Error
	}

	var discount models.Discount
	if err := tx.WithContext(ctx).First(&discount, id).Error; err != nil {
		return nil, utils.PersistenceError("discount", err)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflictError("discount %s is inactive or fully used", discount.DiscountCode)
	}
	return &discount, nil
}

// Release gives one use back.
func (s *DiscountService) Release(ctx context.Context, tx *gorm.DB, id uint) error {
	return tx.WithContext(ctx).Model(&models.Discount{}).
		Where("id = ? AND used_count > 0", id).
		Update("used_count", gorm.Expr("used_count - 1")).Error
}
