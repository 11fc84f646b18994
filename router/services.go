package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/restaurant-platform/clients"
	"github.com/yeremiapane/restaurant-platform/config"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/services"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

// Services is everything the HTTP layer and the background workers need.
type Services struct {
	Users        *services.UserService
	Tables       *services.TableService
	Customers    *services.CustomerService
	Foods        *services.FoodService
	Reservations *services.ReservationService
	Orders       *services.OrderService
	Items        *services.OrderItemService
	Discounts    *services.DiscountService
	Payments     *services.PaymentService
	Reconciler   *services.StockReconciler

	// Verifier checks bearer tokens: the local user service or the remote one.
	Verifier services.TokenVerifier
}

// NewServices builds the services. A collaborator that this process does not
// run is reached over HTTP at its configured URL.
func NewServices(cfg *config.Config, db *gorm.DB, locker locks.Locker, publisher events.Publisher) (*Services, error) {
	b := cfg.Business
	s := &Services{
		Users:     services.NewUserService(db, utils.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.TTL)),
		Tables:    services.NewTableService(db, publisher),
		Customers: services.NewCustomerService(db),
		Foods:     services.NewFoodService(db, publisher, b.LowStockThreshold),
		Discounts: services.NewDiscountService(db, publisher),
	}

	var (
		tables       services.TableDirectory = s.Tables
		foods        services.FoodCatalog    = s.Foods
		reservations services.ReservationLookup
		orders       services.OrderLookup
	)
	s.Verifier = s.Users

	remote := func(service, url string) error {
		if url == "" {
			return fmt.Errorf("%s service is not run here and %s_SERVICE_URL is empty", service, strings.ToUpper(service))
		}
		utils.InfoLogger.WithField("url", url).Infof("using remote %s service", service)
		return nil
	}
	if !cfg.Runs(config.ServiceUser) {
		if err := remote(config.ServiceUser, cfg.Services.User); err != nil {
			return nil, err
		}
		s.Verifier = clients.NewUserClient(cfg.Services.User, cfg.UpstreamTimeout)
	}
	if cfg.Runs(config.ServiceReservation) && !cfg.Runs(config.ServiceTable) {
		if err := remote(config.ServiceTable, cfg.Services.Table); err != nil {
			return nil, err
		}
		tables = clients.NewTableClient(cfg.Services.Table, cfg.UpstreamTimeout)
	}
	if cfg.Runs(config.ServiceOrder) && !cfg.Runs(config.ServiceFood) {
		if err := remote(config.ServiceFood, cfg.Services.Food); err != nil {
			return nil, err
		}
		if cfg.ServiceToken == "" {
			return nil, errors.New("food service is not run here and SERVICE_TOKEN is empty")
		}
		foods = clients.NewFoodClient(cfg.Services.Food, cfg.UpstreamTimeout)
	}

	s.Reservations = services.NewReservationService(db, tables, s.Customers, locker, publisher, services.ReservationRules{
		DepositAmount:    b.DepositAmount,
		DepositThreshold: b.DepositThreshold,
		SlotDuration:     b.SlotDuration,
		BookingWindow:    b.BookingWindow,
	})
	reservations = s.Reservations
	if (cfg.Runs(config.ServiceOrder) || cfg.Runs(config.ServicePayment)) && !cfg.Runs(config.ServiceReservation) {
		if err := remote(config.ServiceReservation, cfg.Services.Reservation); err != nil {
			return nil, err
		}
		reservations = clients.NewReservationClient(cfg.Services.Reservation, cfg.UpstreamTimeout)
	}

	s.Orders = services.NewOrderService(db, reservations, foods, locker, publisher)
	orders = s.Orders
	if cfg.Runs(config.ServicePayment) && !cfg.Runs(config.ServiceOrder) {
		if err := remote(config.ServiceOrder, cfg.Services.Order); err != nil {
			return nil, err
		}
		orders = clients.NewOrderClient(cfg.Services.Order, cfg.UpstreamTimeout)
	}

	s.Items = services.NewOrderItemService(db, foods, locker, publisher)
	s.Reconciler = services.NewStockReconciler(s.Items, b.ReconcileInterval, b.ReconcileMaxTries)
	s.Reconciler.UseToken(cfg.ServiceToken)
	s.Items.UseReconciler(s.Reconciler)

	s.Payments = services.NewPaymentService(db, orders, reservations, s.Discounts, locker, publisher, services.PaymentRules{
		TaxPercentage: b.TaxPercentage,
		CodeRetries:   b.PaymentCodeRetries,
	})
	return s, nil
}
