package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

type FoodInput struct {
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int               `json:"quantity"`
	Status      models.FoodStatus `json:"status"`
	Description string            `json:"description"`
}

func (in FoodInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return utils.NewValidationError("food name is required")
	}
	if !in.Price.IsPositive() {
		return utils.NewValidationError("price must be greater than 0")
	}
	if in.Quantity < 0 {
		return utils.NewValidationError("quantity must not be negative")
	}
	if in.Status != "" && in.Status != models.FoodAvailable && in.Status != models.FoodUnavailable {
		return utils.NewValidationError("status must be Available or Unavailable")
	}
	return nil
}

// FoodService owns the menu and its stock counts.
type FoodService struct {
	db                *gorm.DB
	events            events.Publisher
	lowStockThreshold int
}

func NewFoodService(db *gorm.DB, publisher events.Publisher, lowStockThreshold int) *FoodService {
	return &FoodService{db: db, events: publisher, lowStockThreshold: lowStockThreshold}
}

func (s *FoodService) CreateFood(ctx context.Context, in FoodInput) (*models.Food, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	food := models.Food{
		Name:        strings.TrimSpace(in.Name),
		Category:    in.Category,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Status:      in.Status,
		Description: in.Description,
	}
	if food.Status == "" {
		food.Status = s.statusFor(food.Quantity, models.FoodAvailable)
	}
	if err := s.db.WithContext(ctx).Create(&food).Error; err != nil {
		return nil, utils.PersistenceError("food", err)
	}
	return &food, nil
}

func (s *FoodService) GetFood(ctx context.Context, id uint) (*models.Food, error) {
	var food models.Food
	if err := s.db.WithContext(ctx).First(&food, id).Error; err != nil {
		return nil, utils.PersistenceError("food", err)
	}
	return &food, nil
}

func (s *FoodService) ListFoods(ctx context.Context, category string, status models.FoodStatus) ([]models.Food, error) {
	query := s.db.WithContext(ctx).Order("id")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var foods []models.Food
	if err := query.Find(&foods).Error; err != nil {
		return nil, utils.PersistenceError("food", err)
	}
	return foods, nil
}

func (s *FoodService) UpdateFood(ctx context.Context, id uint, in FoodInput) (*models.Food, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	food, err := s.GetFood(ctx, id)
	if err != nil {
		return nil, err
	}
	food.Name = strings.TrimSpace(in.Name)
	food.Category = in.Category
	food.Price = in.Price
	food.Quantity = in.Quantity
	food.Description = in.Description
	if in.Status != "" {
		food.Status = in.Status
	}
	if err := s.db.WithContext(ctx).Save(food).Error; err != nil {
		return nil, utils.PersistenceError("food", err)
	}
	return food, nil
}

func (s *FoodService) DeleteFood(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Food{}, id)
	if res.Error != nil {
		return utils.PersistenceError("food", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("food not found")
	}
	return nil
}

// AdjustStock applies delta to the stock in one transaction. A non-empty
// reference makes the call idempotent: a second call with the same reference
// returns the current food without changing it.
func (s *FoodService) AdjustStock(ctx context.Context, id uint, delta int, reference string) (*models.Food, error) {
	var food models.Food
	applied := true

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reference != "" {
			var count int64
			if err := tx.Model(&models.StockMovement{}).Where("reference = ?", reference).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				applied = false
				return tx.First(&food, id).Error
			}
		}

		res := tx.Model(&models.Food{}).
			Where("id = ? AND quantity + ? >= 0", id, delta).
			Update("quantity", gorm.Expr("quantity + ?", delta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.First(&food, id).Error; err != nil {
				return err
			}
			return utils.NewValidationError("insufficient stock")
		}

		if err := tx.First(&food, id).Error; err != nil {
			return err
		}
		if next := s.statusFor(food.Quantity, food.Status); next != food.Status {
			food.Status = next
			if err := tx.Model(&food).Update("status", next).Error; err != nil {
				return err
			}
		}

		if reference != "" {
			return tx.Create(&models.StockMovement{FoodID: id, Delta: delta, Reference: reference}).Error
		}
		return nil
	})
	if err != nil {
		if utils.IsDuplicateKey(err) {
			// Another request recorded the same reference first.
			return s.GetFood(ctx, id)
		}
		return nil, utils.PersistenceError("food", err)
	}

	if applied {
		utils.InfoLogger.WithFields(logrus.Fields{
			"food_id":   id,
			"delta":     delta,
			"stock":     food.Quantity,
			"reference": reference,
		}).Info("stock adjusted")
		events.Emit(ctx, s.events, events.Event{Entity: events.EntityFood, Name: "stock_adjusted", ID: id, To: string(food.Status), Data: food})
	}
	return &food, nil
}

// statusFor flips a food to Unavailable under the low-stock threshold and back
// to Available once it is restocked past it.
func (s *FoodService) statusFor(quantity int, current models.FoodStatus) models.FoodStatus {
	if quantity < s.lowStockThreshold {
		return models.FoodUnavailable
	}
	if current == models.FoodUnavailable {
		return models.FoodAvailable
	}
	return current
}

// StockMovements lists the applied adjustments for a food, newest first.
func (s *FoodService) StockMovements(ctx context.Context, foodID uint) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.WithContext(ctx).Where("food_id = ?", foodID).Order("id desc").Find(&movements).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.PersistenceError("stock movement", err)
	}
	return movements, nil
}
