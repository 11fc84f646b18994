package database

import (
	"fmt"

	"github.com/yeremiapane/restaurant-platform/config"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

// modelsFor returns the tables owned by a service.
func modelsFor(service string) []interface{} {
	switch service {
	case config.ServiceUser:
		return []interface{}{&models.User{}}
	case config.ServiceTable:
		return []interface{}{&models.Table{}}
	case config.ServiceFood:
		return []interface{}{&models.Food{}, &models.StockMovement{}}
	case config.ServiceReservation:
		return []interface{}{&models.Customer{}, &models.Reservation{}, &models.TableHistory{}}
	case config.ServiceOrder:
		return []interface{}{&models.Order{}, &models.OrderItem{}}
	case config.ServicePayment:
		return []interface{}{&models.Discount{}, &models.Payment{}}
	}
	return nil
}

// Migrate creates the schema for the service this process runs.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	services := []string{cfg.Service}
	if cfg.Service == config.ServiceAll {
		services = []string{
			config.ServiceUser, config.ServiceTable, config.ServiceFood,
			config.ServiceReservation, config.ServiceOrder, config.ServicePayment,
		}
	}

	for _, service := range services {
		if err := db.AutoMigrate(modelsFor(service)...); err != nil {
			return fmt.Errorf("migrate %s: %w", service, err)
		}
		utils.InfoLogger.WithField("service", service).Info("AutoMigrate completed")
	}
	return nil
}
