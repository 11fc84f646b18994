package services

import (
	"context"
	"strings"

	"github.com/yeremiapane/restaurant-platform/events"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
	"gorm.io/gorm"
)

type TableInput struct {
	Name     string           `json:"name"`
	Capacity int              `json:"capacity"`
	Type     models.TableType `json:"type"`
}

func (in TableInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return utils.NewValidationError("table name is required")
	}
	if in.Capacity <= 0 {
		return utils.NewValidationError("capacity must be greater than 0")
	}
	if in.Type != "" && !in.Type.Valid() {
		return utils.NewValidationError("table type must be Normal or VIP")
	}
	return nil
}

// TableService is the table registry.
type TableService struct {
	db     *gorm.DB
	events events.Publisher
}

func NewTableService(db *gorm.DB, publisher events.Publisher) *TableService {
	return &TableService{db: db, events: publisher}
}

func (s *TableService) CreateTable(ctx context.Context, in TableInput) (*models.Table, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	table := models.Table{Name: strings.TrimSpace(in.Name), Capacity: in.Capacity, Type: in.Type}
	if table.Type == "" {
		table.Type = models.TableNormal
	}
	if err := s.db.WithContext(ctx).Create(&table).Error; err != nil {
		return nil, utils.PersistenceError("table", err)
	}
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityTable, Name: events.Created, ID: table.ID, Data: table})
	return &table, nil
}

func (s *TableService) GetTable(ctx context.Context, id uint) (*models.Table, error) {
	var table models.Table
	if err := s.db.WithContext(ctx).First(&table, id).Error; err != nil {
		return nil, utils.PersistenceError("table", err)
	}
	return &table, nil
}

// ListTables returns the tables with the given ids, or all of them.
func (s *TableService) ListTables(ctx context.Context, ids []uint) ([]models.Table, error) {
	query := s.db.WithContext(ctx).Order("id")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var tables []models.Table
	if err := query.Find(&tables).Error; err != nil {
		return nil, utils.PersistenceError("table", err)
	}
	return tables, nil
}

func (s *TableService) UpdateTable(ctx context.Context, id uint, in TableInput) (*models.Table, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	table, err := s.GetTable(ctx, id)
	if err != nil {
		return nil, err
	}
	table.Name = strings.TrimSpace(in.Name)
	table.Capacity = in.Capacity
	if in.Type != "" {
		table.Type = in.Type
	}
	if err := s.db.WithContext(ctx).Save(table).Error; err != nil {
		return nil, utils.PersistenceError("table", err)
	}
	return table, nil
}

func (s *TableService) DeleteTable(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Table{}, id)
	if res.Error != nil {
		return utils.PersistenceError("table", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("table not found")
	}
	events.Emit(ctx, s.events, events.Event{Entity: events.EntityTable, Name: events.Deleted, ID: id})
	return nil
}
