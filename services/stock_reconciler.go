package services

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-platform/metrics"
	"github.com/yeremiapane/restaurant-platform/models"
	"github.com/yeremiapane/restaurant-platform/utils"
)

// StockSettler is the part of OrderItemService the reconciler drives.
type StockSettler interface {
	ReconcileStock(ctx context.Context, id uint) (*models.OrderItem, error)
	ListPendingReconciliation(ctx context.Context) ([]models.OrderItem, error)
}

// StockReconciler retries stock decrements that failed while an order item
// was being created. Items stay flagged in the database, so a restart picks
// them up again.
type StockReconciler struct {
	settler       StockSettler
	retryQueue    []uint
	attempts      map[uint]int
	retryInterval time.Duration
	maxAttempts   int
	mutex         sync.Mutex
	newBackOff    func() backoff.BackOff
	token         string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewStockReconciler(settler StockSettler, interval time.Duration, maxAttempts int) *StockReconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &StockReconciler{
		settler:       settler,
		retryQueue:    make([]uint, 0),
		attempts:      make(map[uint]int),
		retryInterval: interval,
		maxAttempts:   maxAttempts,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
		},
	}
}

// UseToken sets the bearer token sent to a remote food service when the
// reconciler runs outside any request.
func (r *StockReconciler) UseToken(token string) {
	r.token = token
}

// Start reloads flagged items and processes the queue every interval until
// Stop is called.
func (r *StockReconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	if err := r.LoadPending(ctx); err != nil {
		utils.ErrorLogger.Warnf("could not load items awaiting stock reconciliation: %v", err)
	}

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
	utils.InfoLogger.WithField("interval", r.retryInterval).Info("stock reconciler started")
}

func (r *StockReconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *StockReconciler) LoadPending(ctx context.Context) error {
	items, err := r.settler.ListPendingReconciliation(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		r.Enqueue(item.ID)
	}
	return nil
}

// Enqueue adds an item once; repeated calls are ignored.
func (r *StockReconciler) Enqueue(itemID uint) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, id := range r.retryQueue {
		if id == itemID {
			return
		}
	}
	r.retryQueue = append(r.retryQueue, itemID)
	metrics.StockReconciliationBacklog.Set(float64(len(r.retryQueue)))
}

func (r *StockReconciler) Pending() []uint {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]uint(nil), r.retryQueue...)
}

// RunOnce drains the current queue. Items that still fail are queued again
// until they run out of attempts; they then stay flagged for a manual retry.
func (r *StockReconciler) RunOnce(ctx context.Context) {
	r.mutex.Lock()
	queue := r.retryQueue
	r.retryQueue = make([]uint, 0)
	r.mutex.Unlock()

	for _, id := range queue {
		if ctx.Err() != nil {
			r.Enqueue(id)
			continue
		}
		r.reconcile(ctx, id)
	}

	r.mutex.Lock()
	metrics.StockReconciliationBacklog.Set(float64(len(r.retryQueue)))
	r.mutex.Unlock()
}

func (r *StockReconciler) reconcile(ctx context.Context, id uint) {
	if r.token != "" && utils.TokenFrom(ctx) == "" {
		ctx = utils.WithToken(ctx, r.token)
	}
	policy := backoff.WithContext(r.newBackOff(), ctx)
	err := backoff.Retry(func() error {
		_, err := r.settler.ReconcileStock(ctx, id)
		if utils.IsKind(err, utils.KindNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	log := utils.InfoLogger.WithField("order_item_id", id)
	if err == nil {
		r.mutex.Lock()
		delete(r.attempts, id)
		r.mutex.Unlock()
		return
	}
	if utils.IsKind(err, utils.KindNotFound) {
		log.Info("order item gone, dropping from stock reconciliation")
		return
	}

	r.mutex.Lock()
	r.attempts[id]++
	attempts := r.attempts[id]
	r.mutex.Unlock()

	if attempts >= r.maxAttempts {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"order_item_id": id,
			"attempts":      attempts,
		}).Errorf("giving up on stock reconciliation, manual retry required: %v", err)
		metrics.StockReconciliationsTotal.WithLabelValues("abandoned").Inc()
		r.mutex.Lock()
		delete(r.attempts, id)
		r.mutex.Unlock()
		return
	}
	utils.ErrorLogger.WithField("order_item_id", id).Warnf("stock reconciliation failed (attempt %d): %v", attempts, err)
	r.Enqueue(id)
}
