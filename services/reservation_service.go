package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/metrics"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

// ReservationRules are the tunable booking rules.
type ReservationRules struct {
	DepositAmount    decimal.Decimal
	DepositThreshold int
	SlotDuration     time.Duration
	BookingWindow    time.Duration
}

func (r ReservationRules) Deposit(quantity int) decimal.Decimal {
	if quantity >= r.DepositThreshold {
		return r.DepositAmount
	}
	return decimal.Zero
}

type CreateReservationInput struct {
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"phone"`
	CustomerEmail string    `json:"email"`
	Quantity      int       `json:"quantity"`
	CheckInTime   time.Time `json:"check_in_time"`
	Note          string    `json:"note"`
	IsWalkIn      bool      `json:"is_walk_in"`
	TableID       *uint     `json:"table_id"`
	StaffID       uint      `json:"-"`
}

type UpdateReservationInput struct {
	Note     *string `json:"note"`
	Quantity *int    `json:"quantity"`

	Status        *string         `json:"status"`
	StatusHistory json.RawMessage `json:"status_history"`
}

type ReservationFilter struct {
	Date       *time.Time
	Status     models.ReservationStatus
	CustomerID uint
}

type ReservationService struct {
	db        *gorm.DB
	tables    TableDirectory
	customers *CustomerService
	locker    locks.Locker
	events    events.Publisher
	rules     ReservationRules
	now       func() time.Time
}

func NewReservationService(db *gorm.DB, tables TableDirectory, customers *CustomerService,
	locker locks.Locker, publisher events.Publisher, rules ReservationRules) *ReservationService {
	return &ReservationService{
		db:        db,
		tables:    tables,
		customers: customers,
		locker:    locker,
		events:    publisher,
		rules:     rules,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (*models.Reservation, error) {
	if in.Quantity <= 0 {
		return nil, utils.NewValidationError("quantity must be greater than 0")
	}
	if in.CheckInTime.IsZero() {
		return nil, utils.NewValidationError("check_in_time is required")
	}
	if !in.IsWalkIn && (strings.TrimSpace(in.CustomerPhone) == "" || strings.TrimSpace(in.CustomerEmail) == "") {
		return nil, utils.NewValidationError("customer phone and email are required")
	}
	checkIn := in.CheckInTime.UTC()

	var customer *models.Customer
	if !in.IsWalkIn {
		var err error
		if customer, err = s.customers.FindOrCreate(ctx, nil, in.CustomerName, in.CustomerPhone, in.CustomerEmail); err != nil {
			return nil, err
		}
	}

	var keys []string
	if customer != nil {
		keys = append(keys, locks.CustomerKey(customer.ID))
	}
	if in.TableID != nil {
		keys = append(keys, locks.TableKey(*in.TableID))
	}
	unlock, err := lockAll(ctx, s.locker, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if customer != nil {
		if err := s.checkBookingWindow(ctx, customer.ID, checkIn); err != nil {
			return nil, err
		}
	}

	available, err := s.GetAvailableTables(ctx, checkIn, in.Quantity, true)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, utils.NewNotFoundError("no tables available for %d guests at that time", in.Quantity)
	}
	if in.TableID != nil && !containsTable(available, *in.TableID) {
		return nil, utils.NewConflictError("table %d is not available for this reservation", *in.TableID)
	}

	now := s.now()
	reservation := models.Reservation{
		Quantity:      in.Quantity,
		CheckInTime:   checkIn,
		Note:          in.Note,
		IsWalkIn:      in.IsWalkIn,
		Deposit:       s.rules.Deposit(in.Quantity),
		Status:        models.ReservationPending,
		StatusHistory: seedHistory(string(models.ReservationPending), now),
	}
	if customer != nil {
		reservation.CustomerID = &customer.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}
		if in.TableID == nil {
			return nil
		}
		_, err := s.assignLocked(tx, &reservation, *in.TableID, in.StaffID)
		return err
	})
	if err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"quantity":       reservation.Quantity,
		"check_in":       reservation.CheckInTime,
	}).Info("reservation created")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityReservation, Name: events.Created, ID: reservation.ID, To: string(reservation.Status)})
	return s.GetReservation(ctx, reservation.ID)
}

// checkBookingWindow rejects a second live booking of the same customer whose
// check-in lies within the booking window of checkIn.
func (s *ReservationService) checkBookingWindow(ctx context.Context, customerID uint, checkIn time.Time) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("customer_id = ? AND status <> ?", customerID, models.ReservationCanceled).
		Where("check_in_time >= ? AND check_in_time <= ?", checkIn.Add(-s.rules.BookingWindow), checkIn.Add(s.rules.BookingWindow)).
		Count(&count).Error
	if err != nil {
		return utils.PersistenceError("reservation", err)
	}
	if count > 0 {
		return utils.NewConflictError("duplicate booking window: customer already has a reservation within %s", s.rules.BookingWindow)
	}
	return nil
}

// GetAvailableTables annotates every table with its status for the slot that
// starts at checkIn. With onlyAvailable it keeps the free tables that seat
// quantity guests.
func (s *ReservationService) GetAvailableTables(ctx context.Context, checkIn time.Time, quantity int, onlyAvailable bool) ([]models.Table, error) {
	start, end := checkIn.UTC(), checkIn.UTC().Add(s.rules.SlotDuration)

	var rows []models.TableHistory
	err := s.db.WithContext(ctx).
		Where("check_in_time <= ? AND expected_check_out_time >= ?", end, start).
		Order("assigned_time").
		Find(&rows).Error
	if err != nil {
		return nil, utils.PersistenceError("table history", err)
	}
	status := slotStatuses(rows)

	tables, err := s.tables.ListTables(ctx, nil)
	if err != nil {
		return nil, err
	}

	result := make([]models.Table, 0, len(tables))
	for _, table := range tables {
		table.Status = models.TableSlotAvailable
		if st, ok := status[table.ID]; ok {
			table.Status = st
		}
		if onlyAvailable && (table.Status != models.TableSlotAvailable || table.Capacity < quantity) {
			continue
		}
		result = append(result, table)
	}
	return result, nil
}

// slotStatuses maps each table to the status of its latest blocking claim.
// rows must be ordered by assigned_time. Tables whose claims were all released
// are Available.
func slotStatuses(rows []models.TableHistory) map[uint]models.TableSlotStatus {
	status := make(map[uint]models.TableSlotStatus)
	for _, row := range rows {
		if row.TableStatus.Blocking() {
			status[row.TableID] = row.TableStatus
		} else if _, seen := status[row.TableID]; !seen {
			status[row.TableID] = models.TableSlotAvailable
		}
	}
	return status
}

func (s *ReservationService) AssignTable(ctx context.Context, reservationID, tableID, staffID uint) (*models.TableHistory, error) {
	reservation, err := s.loadReservation(ctx, s.db, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.Status == models.ReservationCanceled {
		return nil, utils.NewConflictError("reservation is canceled")
	}

	tables, err := s.tables.ListTables(ctx, []uint{tableID})
	if err != nil {
		return nil, err
	}
	if !containsTable(tables, tableID) {
		return nil, utils.NewNotFoundError("table not found")
	}

	unlock, err := s.locker.Lock(ctx, locks.TableKey(tableID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var row *models.TableHistory
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = s.assignLocked(tx, reservation, tableID, staffID)
		return err
	})
	if err != nil {
		return nil, utils.PersistenceError("table history", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"table_id":       tableID,
	}).Info("table assigned")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityTableHistory, Name: events.Assigned, ID: row.ID, To: string(row.TableStatus), Data: row})
	return row, nil
}

// assignLocked claims tableID for the reservation's slot. The caller holds the
// table lock and runs it inside tx.
func (s *ReservationService) assignLocked(tx *gorm.DB, reservation *models.Reservation, tableID, staffID uint) (*models.TableHistory, error) {
	start, end := reservation.Window(s.rules.SlotDuration)

	var conflicts int64
	err := tx.Model(&models.TableHistory{}).
		Where("table_id = ? AND table_status IN ?", tableID, []models.TableSlotStatus{
			models.TableSlotPending, models.TableSlotOccupied, models.TableSlotUnavailable,
		}).
		Where("check_in_time <= ? AND expected_check_out_time >= ?", end, start).
		Count(&conflicts).Error
	if err != nil {
		return nil, err
	}
	if conflicts > 0 {
		return nil, utils.NewConflictError("table %d is already assigned for that time", tableID)
	}

	row := models.TableHistory{
		ReservationID:        reservation.ID,
		TableID:              tableID,
		CheckInTime:          start,
		ExpectedCheckOutTime: end,
		AssignedTime:         s.now(),
		TableStatus:          models.TableSlotPending,
	}
	if staffID != 0 {
		row.AssignedBy = &staffID
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&models.Reservation{}).Where("id = ?", reservation.ID).Update("table_id", tableID).Error; err != nil {
		return nil, err
	}
	reservation.TableID = &tableID
	return &row, nil
}

// UnassignTable releases claims that are still Pending or already Available.
// With a nil tableID every such claim of the reservation is removed.
func (s *ReservationService) UnassignTable(ctx context.Context, reservationID uint, tableID *uint) error {
	reservation, err := s.loadReservation(ctx, s.db, reservationID)
	if err != nil {
		return err
	}

	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Where("reservation_id = ? AND table_status IN ?", reservationID,
			[]models.TableSlotStatus{models.TableSlotPending, models.TableSlotAvailable})
		if tableID != nil {
			query = query.Where("table_id = ?", *tableID)
		}
		res := query.Delete(&models.TableHistory{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		if removed == 0 {
			return utils.NewNotFoundError("no assigned table to remove")
		}

		if reservation.TableID != nil && (tableID == nil || *reservation.TableID == *tableID) {
			return tx.Model(&models.Reservation{}).Where("id = ?", reservationID).Update("table_id", nil).Error
		}
		return nil
	})
	if err != nil {
		return utils.PersistenceError("table history", err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"removed":        removed,
	}).Info("table unassigned")
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityTableHistory, Name: events.Unassigned, ID: reservationID})
	return nil
}

// CheckIn marks the guests as arrived and their tables as occupied.
func (s *ReservationService) CheckIn(ctx context.Context, id uint) (*models.Reservation, error) {
	return s.transition(ctx, id, models.ReservationArrived, func(tx *gorm.DB, r *models.Reservation) error {
		var assigned int64
		if err := tx.Model(&models.TableHistory{}).
			Where("reservation_id = ? AND table_status IN ?", r.ID,
				[]models.TableSlotStatus{models.TableSlotPending, models.TableSlotOccupied}).
			Count(&assigned).Error; err != nil {
			return err
		}
		if assigned == 0 {
			return utils.NewValidationError("assign a table before checking in")
		}
		return tx.Model(&models.TableHistory{}).
			Where("reservation_id = ? AND table_status = ?", r.ID, models.TableSlotPending).
			Update("table_status", models.TableSlotOccupied).Error
	})
}

// Cancel frees every table the reservation held.
func (s *ReservationService) Cancel(ctx context.Context, id uint) (*models.Reservation, error) {
	return s.transition(ctx, id, models.ReservationCanceled, func(tx *gorm.DB, r *models.Reservation) error {
		return tx.Model(&models.TableHistory{}).
			Where("reservation_id = ? AND table_status <> ?", r.ID, models.TableSlotAvailable).
			Update("table_status", models.TableSlotAvailable).Error
	})
}

// transition moves a reservation to next and runs cascade in the same
// transaction. The status update is conditional on the status read, so a
// concurrent transition makes this one fail instead of overwriting it.
func (s *ReservationService) transition(ctx context.Context, id uint, next models.ReservationStatus,
	cascade func(tx *gorm.DB, r *models.Reservation) error) (*models.Reservation, error) {
	var from models.ReservationStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		from = r.Status
		if !r.Transition(next, s.now()) {
			metrics.Rejected(events.EntityReservation)
			return utils.NewConflictError("cannot change reservation status from %s to %s", from, next)
		}

		res := tx.Model(r).Where("status = ?", from).Select("Status", "StatusHistory").Updates(r)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("reservation was modified concurrently, retry")
		}
		return cascade(tx, r)
	})
	if err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}

	metrics.Transition(events.EntityReservation, string(next))
	utils.InfoLogger.WithFields(logrus.Fields{
		"reservation_id": id,
		"from":           from,
		"to":             next,
	}).Info("reservation status changed")
	events.Emit(ctx, s.events, events.Transition(events.EntityReservation, id, string(from), string(next)))
	return s.GetReservation(ctx, id)
}

func (s *ReservationService) loadReservation(ctx context.Context, db *gorm.DB, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}
	return &reservation, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.WithContext(ctx).
		Preload("Customer").
		Preload("TableHistories", func(db *gorm.DB) *gorm.DB { return db.Order("assigned_time") }).
		First(&reservation, id).Error
	if err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}
	return &reservation, nil
}

func (s *ReservationService) ListReservations(ctx context.Context, filter ReservationFilter) ([]models.Reservation, error) {
	query := s.db.WithContext(ctx).Preload("Customer").Preload("TableHistories").Order("check_in_time")
	if filter.Date != nil {
		day := time.Date(filter.Date.Year(), filter.Date.Month(), filter.Date.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("check_in_time >= ? AND check_in_time < ?", day, day.AddDate(0, 0, 1))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}

	var reservations []models.Reservation
	if err := query.Find(&reservations).Error; err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}
	return reservations, nil
}

// UpdateReservation edits the note and party size of a Pending reservation.
// Status changes go through CheckIn and Cancel.
func (s *ReservationService) UpdateReservation(ctx context.Context, id uint, in UpdateReservationInput) (*models.Reservation, error) {
	if in.Status != nil || len(in.StatusHistory) > 0 {
		return nil, utils.NewValidationError("status cannot be updated here, use the check-in or cancel endpoints")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.loadReservation(ctx, tx, id)
		if err != nil {
			return err
		}
		if r.Status != models.ReservationPending {
			return utils.NewConflictError("only pending reservations can be edited")
		}
		if in.Note != nil {
			r.Note = *in.Note
		}
		if in.Quantity != nil {
			if *in.Quantity <= 0 {
				return utils.NewValidationError("quantity must be greater than 0")
			}
			r.Quantity = *in.Quantity
			r.Deposit = s.rules.Deposit(r.Quantity)
		}
		return tx.Model(r).Select("Note", "Quantity", "Deposit").Updates(r).Error
	})
	if err != nil {
		return nil, utils.PersistenceError("reservation", err)
	}
	return s.GetReservation(ctx, id)
}

func containsTable(tables []models.Table, id uint) bool {
	for _, t := range tables {
		if t.ID == id {
			return true
		}
	}
	return false
}
