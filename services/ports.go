package services

import (
	"context"
	"sort"
	"time"

	"github.com/yeremiapane/restaurant-platform/locks"
	"github.com/yeremiapane/restaurant-platform/models"
)

// The interfaces below are what a service needs from its neighbours. In split
// deployments they are backed by package clients, otherwise by the local
// service structs in this package.

type TableDirectory interface {
	ListTables(ctx context.Context, ids []uint) ([]models.Table, error)
}

type FoodCatalog interface {
	GetFood(ctx context.Context, id uint) (*models.Food, error)
	AdjustStock(ctx context.Context, id uint, delta int, reference string) (*models.Food, error)
}

type ReservationLookup interface {
	GetReservation(ctx context.Context, id uint) (*models.Reservation, error)
}

type OrderLookup interface {
	ListOrdersByReservation(ctx context.Context, reservationID uint) ([]models.Order, error)
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.User, error)
}

// lockAll takes the keys in sorted order so two callers never deadlock.
func lockAll(ctx context.Context, locker locks.Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var held []func()
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		unlock, err := locker.Lock(ctx, key)
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, unlock)
	}
	return release, nil
}

func seedHistory(status string, at time.Time) []models.StatusEntry {
	return []models.StatusEntry{{Status: status, ChangedAt: at}}
}
