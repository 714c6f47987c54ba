// Package notify renders transfer receipts out-of-band. Events are queued in
// Redis after commit and consumed by a small worker pool; dispatcher failures
// are isolated from the transfer path entirely.
package notify

import (
	"context"       // Worker lifecycle
	"encoding/json" // Event payloads
	"errors"        // Sentinel matching
	"time"          // Backoff between attempts

	"wallet_service/internal/domain" // Transaction records

	"github.com/redis/go-redis/v9" // Queue backend
	"github.com/sirupsen/logrus"   // Structured logging
	"gorm.io/gorm"                 // Ledger store reads and receipt-path write-back
)

// DefaultQueueKey is the Redis list holding pending receipt events.
const DefaultQueueKey = "receipts:queue"

// popTimeout bounds each blocking pop so workers notice cancellation.
const popTimeout = 2 * time.Second

// Event is one unit of receipt work. Delivery is at-least-once; processing
// is idempotent by transaction id, so a redelivered event is a no-op.
type Event struct {
	TransactionID uint `json:"transaction_id"` // Which transfer to render
	Attempts      int  `json:"attempts"`       // How many times processing has failed so far
}

// Dispatcher consumes completion events and renders receipts.
type Dispatcher struct {
	db          *gorm.DB      // Ledger store
	rdb         *redis.Client // Queue backend
	queueKey    string        // Redis list key
	receiptDir  string        // Where rendered receipts land
	workers     int           // Worker pool size
	maxAttempts int           // Attempts before an event is dropped
}

// NewDispatcher builds a Dispatcher over the given store and queue.
func NewDispatcher(db *gorm.DB, rdb *redis.Client, receiptDir string, workers, maxAttempts int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		db:          db,
		rdb:         rdb,
		queueKey:    DefaultQueueKey,
		receiptDir:  receiptDir,
		workers:     workers,
		maxAttempts: maxAttempts,
	}
}

// TransferCompleted enqueues a receipt event for the given transaction.
// Called by the engine after commit; an error here is the caller's to log,
// never to propagate.
func (d *Dispatcher) TransferCompleted(ctx context.Context, transactionID uint) error {
	return d.push(ctx, Event{TransactionID: transactionID})
}

// push serializes an event onto the queue.
func (d *Dispatcher) push(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, d.queueKey, payload).Err()
}

// Start launches the worker pool. Workers run until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		go d.worker(ctx, i)
	}
	logrus.WithFields(logrus.Fields{
		"workers": d.workers,
		"queue":   d.queueKey,
	}).Info("Receipt dispatcher started")
}

// worker pops events off the queue one at a time and processes them.
func (d *Dispatcher) worker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := d.rdb.BRPop(ctx, popTimeout, d.queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue // Queue empty, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithFields(logrus.Fields{"worker": id, "error": err.Error()}).
				Warn("Receipt queue pop failed")
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value].
		var ev Event
		if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
			logrus.WithFields(logrus.Fields{"worker": id, "error": err.Error()}).
				Error("Dropping malformed receipt event")
			continue
		}

		if err := d.process(ctx, ev); err != nil {
			d.requeue(ctx, ev, err)
		}
	}
}

// process renders the receipt for one event. A missing record or an already
// rendered receipt is a completed no-op, which makes redelivery safe.
func (d *Dispatcher) process(ctx context.Context, ev Event) error {
	var record domain.Transaction
	err := d.db.WithContext(ctx).First(&record, ev.TransactionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithFields(logrus.Fields{"transaction_id": ev.TransactionID}).
			Warn("Receipt event for unknown transaction, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	if record.ReceiptPath != "" {
		return nil // Already rendered
	}

	path, err := d.renderReceipt(ctx, &record)
	if err != nil {
		return err
	}
	if err := d.db.WithContext(ctx).Model(&record).Update("receipt_path", path).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": record.ID,
		"receipt_path":   path,
	}).Info("Receipt rendered")
	return nil
}

// requeue puts a failed event back with a bumped attempt count, or drops it
// once the attempt budget is spent.
func (d *Dispatcher) requeue(ctx context.Context, ev Event, cause error) {
	ev.Attempts++
	if ev.Attempts >= d.maxAttempts {
		logrus.WithFields(logrus.Fields{
			"transaction_id": ev.TransactionID,
			"attempts":       ev.Attempts,
			"error":          cause.Error(),
		}).Error("Receipt generation failed permanently, dropping event")
		return
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": ev.TransactionID,
		"attempts":       ev.Attempts,
		"error":          cause.Error(),
	}).Warn("Receipt generation failed, requeueing")
	if err := d.push(ctx, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"transaction_id": ev.TransactionID,
			"error":          err.Error(),
		}).Error("Receipt requeue failed, event lost")
	}
}
