package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerService struct {
	db *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{db: db}
}

// FindOrCreate looks a customer up by (phone, email) and creates it when
// missing. tx lets the caller run it inside its own transaction.
func (s *CustomerService) FindOrCreate(ctx context.Context, tx *gorm.DB, name, phone, email string) (*models.Customer, error) {
	if tx == nil {
		tx = s.db
	}
	phone = strings.TrimSpace(phone)
	email = strings.ToLower(strings.TrimSpace(email))
	if phone == "" || email == "" {
		return nil, utils.NewValidationError("customer phone and email are required")
	}

	var customer models.Customer
	err := tx.WithContext(ctx).Where("phone = ? AND email = ?", phone, email).First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.PersistenceError("customer", err)
	}

	// A concurrent booking may insert the same contact between the lookup
	// and the insert; the unique index decides and the winner is re-read.
	customer = models.Customer{Name: strings.TrimSpace(name), Phone: phone, Email: email}
	res := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&customer)
	if res.Error != nil {
		return nil, utils.PersistenceError("customer", res.Error)
	}
	if res.RowsAffected == 0 {
		customer = models.Customer{}
		if err := tx.WithContext(ctx).Where("phone = ? AND email = ?", phone, email).First(&customer).Error; err != nil {
			return nil, utils.PersistenceError("customer", err)
		}
	}
	return &customer, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, utils.PersistenceError("customer", err)
	}
	return &customer, nil
}

// ListCustomers filters by a case-insensitive name/phone/email fragment.
func (s *CustomerService) ListCustomers(ctx context.Context, search string) ([]models.Customer, error) {
	query := s.db.WithContext(ctx).Order("id")
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	var customers []models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, utils.PersistenceError("customer", err)
	}
	return customers, nil
}
