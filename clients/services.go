package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

type UserClient struct{ *Client }

func NewUserClient(baseURL string, timeout time.Duration) *UserClient {
	return &UserClient{New("user", baseURL, timeout)}
}

// Verify resolves a bearer token to its user through GET /auth/profile.
func (c *UserClient) Verify(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	err := c.do(utils.WithToken(ctx, token), http.MethodGet, "/auth/profile", nil, &user)
	if err != nil {
		if appErr, ok := utils.GetAppError(err); ok && appErr.Kind == utils.KindUpstream {
			return nil, &utils.AppError{Kind: utils.KindUnauthorized, Message: "could not verify token", Status: http.StatusUnauthorized, Err: err}
		}
		return nil, err
	}
	return &user, nil
}

type TableClient struct{ *Client }

func NewTableClient(baseURL string, timeout time.Duration) *TableClient {
	return &TableClient{New("table", baseURL, timeout)}
}

// ListTables returns the given tables, or every table when ids is empty.
func (c *TableClient) ListTables(ctx context.Context, ids []uint) ([]models.Table, error) {
	path := "/tables"
	if len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatUint(uint64(id), 10)
		}
		path += "?ids=" + url.QueryEscape(strings.Join(parts, ","))
	}
	var tables []models.Table
	if err := c.do(ctx, http.MethodGet, path, nil, &tables); err != nil {
		return nil, utils.WrapUpstream("table", err)
	}
	return tables, nil
}

type FoodClient struct{ *Client }

func NewFoodClient(baseURL string, timeout time.Duration) *FoodClient {
	return &FoodClient{New("food", baseURL, timeout)}
}

func (c *FoodClient) GetFood(ctx context.Context, id uint) (*models.Food, error) {
	var food models.Food
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/foods/%d", id), nil, &food); err != nil {
		return nil, utils.WrapUpstream("food", err)
	}
	return &food, nil
}

type StockAdjustment struct {
	Delta     int    `json:"delta"`
	Reference string `json:"reference"`
}

func (c *FoodClient) AdjustStock(ctx context.Context, id uint, delta int, reference string) (*models.Food, error) {
	var food models.Food
	body := StockAdjustment{Delta: delta, Reference: reference}
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/foods/%d/stock", id), body, &food); err != nil {
		return nil, utils.WrapUpstream("food", err)
	}
	return &food, nil
}

type ReservationClient struct{ *Client }

func NewReservationClient(baseURL string, timeout time.Duration) *ReservationClient {
	return &ReservationClient{New("reservation", baseURL, timeout)}
}

func (c *ReservationClient) GetReservation(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/reservations/%d", id), nil, &reservation); err != nil {
		return nil, utils.WrapUpstream("reservation", err)
	}
	return &reservation, nil
}

type OrderClient struct{ *Client }

func NewOrderClient(baseURL string, timeout time.Duration) *OrderClient {
	return &OrderClient{New("order", baseURL, timeout)}
}

func (c *OrderClient) ListOrdersByReservation(ctx context.Context, reservationID uint) ([]models.Order, error) {
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/by-reservation/%d", reservationID), nil, &orders); err != nil {
		return nil, utils.WrapUpstream("order", err)
	}
	return orders, nil
}
