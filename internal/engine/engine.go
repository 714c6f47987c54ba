package engine

import (
	"context" // Cancellation of in-flight units of work
	"errors"  // Sentinel matching
	"fmt"     // Error wrapping

	"wallet_service/internal/domain" // Domain models and error taxonomy
	"wallet_service/internal/utils"  // Redis cache helpers

	"github.com/go-sql-driver/mysql" // Driver error codes for lock-wait classification
	"github.com/redis/go-redis/v9"   // Redis client
	"github.com/shopspring/decimal"  // Fixed-point money
	"github.com/sirupsen/logrus"     // Structured logging
	"gorm.io/gorm"                   // GORM ORM library
	"gorm.io/gorm/clause"            // Row-locking clause
)

// MySQL error numbers the engine classifies specially.
const (
	mysqlDuplicateEntry  = 1062 // Duplicate entry for a unique key
	mysqlLockWaitTimeout = 1205 // Lock wait timeout exceeded
	mysqlDeadlock        = 1213 // Deadlock found (unreachable under ordered locking, mapped anyway)
)

// Notifier receives a completion event after a transfer commits. Failures
// here are logged and dropped: a receipt problem never undoes a transfer.
type Notifier interface {
	TransferCompleted(ctx context.Context, transactionID uint) error
}

// Engine orchestrates lock acquisition, balance validation, balance mutation
// and audit-record creation as one unit of work against the ledger store.
type Engine struct {
	db       *gorm.DB      // Ledger store
	rdb      *redis.Client // Read cache, invalidated after every commit (may be nil)
	notifier Notifier      // Async receipt dispatch (may be nil)
	lockWait int           // Lock wait bound in whole seconds, 0 = store default
}

// New builds an Engine. rdb and notifier are optional collaborators.
func New(db *gorm.DB, rdb *redis.Client, notifier Notifier, lockWaitSeconds int) *Engine {
	return &Engine{db: db, rdb: rdb, notifier: notifier, lockWait: lockWaitSeconds}
}

// TransferResult is what a successful transfer reports back to the caller.
type TransferResult struct {
	Transaction   domain.Transaction // The audit record that was written
	SenderBalance decimal.Decimal    // Sender balance after the debit
}

// lockOrder returns the two user IDs sorted ascending. Every unit of work
// that touches a pair of wallets locks them in this fixed global order,
// independent of which side is sender, so a cycle of waiters cannot form.
func lockOrder(a, b uint) []uint {
	if a < b {
		return []uint{a, b}
	}
	return []uint{b, a}
}

// Transfer moves amount from the sender's wallet to the receiver's wallet
// atomically. Validation errors are detected before any lock is taken;
// AccountNotFound and InsufficientFunds are detected under lock and roll the
// whole unit of work back.
func (e *Engine) Transfer(ctx context.Context, senderID, receiverID uint, rawAmount string) (*TransferResult, error) {
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, domain.ErrInvalidTarget
	}

	var result TransferResult
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.applyLockWait(tx); err != nil {
			return err
		}

		// Lock both wallet rows in one statement, scanned in identity order.
		// Balances are re-read under the lock; nothing read before this
		// point is trusted.
		var wallets []domain.Wallet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id IN ?", lockOrder(senderID, receiverID)).
			Order("user_id").
			Find(&wallets).Error; err != nil {
			return err
		}

		byUser := make(map[uint]*domain.Wallet, len(wallets))
		for i := range wallets {
			byUser[wallets[i].UserID] = &wallets[i]
		}
		sender, ok := byUser[senderID]
		if !ok {
			return domain.ErrAccountNotFound
		}
		receiver, ok := byUser[receiverID]
		if !ok {
			return domain.ErrAccountNotFound
		}

		// Validate under lock.
		if sender.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}

		senderBalance := sender.Balance.Sub(amount)
		receiverBalance := receiver.Balance.Add(amount)
		if err := tx.Model(sender).Update("balance", senderBalance).Error; err != nil {
			return err
		}
		if err := tx.Model(receiver).Update("balance", receiverBalance).Error; err != nil {
			return err
		}

		record := domain.Transaction{
			FromWalletID: &sender.ID,
			ToWalletID:   &receiver.ID,
			Amount:       amount,
			Type:         domain.TxTransfer,
			Status:       domain.TxCompleted,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		result = TransferResult{Transaction: record, SenderBalance: senderBalance}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": result.Transaction.ID,
		"from_user_id":   senderID,
		"to_user_id":     receiverID,
		"amount":         amount.StringFixed(2),
		"type":           domain.TxTransfer,
	}).Info("Transfer committed")

	e.invalidate(ctx, senderID, receiverID)
	e.notify(ctx, result.Transaction.ID)
	return &result, nil
}

// Deposit credits amount into the user's wallet. Single-row variant of the
// transfer unit of work; the audit record carries a NULL sender.
func (e *Engine) Deposit(ctx context.Context, userID uint, rawAmount string) (decimal.Decimal, error) {
	amount, err := domain.ParseAmount(rawAmount)
	if err != nil {
		return decimal.Zero, err
	}

	var newBalance decimal.Decimal
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.applyLockWait(tx); err != nil {
			return err
		}
		var wallet domain.Wallet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}
		newBalance = wallet.Balance.Add(amount)
		if err := tx.Model(&wallet).Update("balance", newBalance).Error; err != nil {
			return err
		}
		record := domain.Transaction{
			ToWalletID: &wallet.ID,
			Amount:     amount,
			Type:       domain.TxDeposit,
			Status:     domain.TxCompleted,
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return decimal.Zero, classify(err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.StringFixed(2),
		"type":    domain.TxDeposit,
	}).Info("Deposit committed")

	e.invalidate(ctx, userID)
	return newBalance, nil
}

// CreateWallet opens a wallet with a zero balance. One wallet per user; the
// unique index on user_id is what actually enforces it, the existence check
// only gives racing callers a cheaper answer.
func (e *Engine) CreateWallet(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var existing domain.Wallet
	if err := e.db.WithContext(ctx).Where("user_id = ?", userID).First(&existing).Error; err == nil {
		return nil, domain.ErrWalletExists
	}
	wallet := domain.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := e.db.WithContext(ctx).Create(&wallet).Error; err != nil {
		if isDuplicateEntry(err) {
			return nil, domain.ErrWalletExists
		}
		return nil, classify(err)
	}
	e.invalidate(ctx, userID)
	return &wallet, nil
}

// isDuplicateEntry reports whether err is a MySQL unique-key violation.
func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// applyLockWait bounds lock acquisition for this unit of work so a caller
// waiting on a contended row fails with Busy instead of waiting indefinitely.
func (e *Engine) applyLockWait(tx *gorm.DB) error {
	if e.lockWait <= 0 {
		return nil
	}
	return tx.Exec("SET innodb_lock_wait_timeout = ?", e.lockWait).Error
}

// classify maps store-level failures onto the engine error taxonomy. Domain
// sentinels pass through untouched; lock-wait timeouts become Busy; anything
// else from the driver is a transient store failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidTarget):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock {
			return fmt.Errorf("%w: %v", domain.ErrBusy, err)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// invalidate drops the cached wallet view and transaction history pages for
// the given users after a commit, so lock-free reads always see the latest
// committed value.
func (e *Engine) invalidate(ctx context.Context, userIDs ...uint) {
	if e.rdb == nil {
		return
	}
	for _, id := range userIDs {
		if err := utils.InvalidateUserCaches(ctx, e.rdb, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": id,
				"error":   err.Error(),
			}).Warn("Cache invalidation failed")
		}
	}
}

// notify enqueues the completion event. Fire-and-forget: an enqueue failure
// is logged with the transaction id and never surfaced to the caller.
func (e *Engine) notify(ctx context.Context, transactionID uint) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.TransferCompleted(ctx, transactionID); err != nil {
		logrus.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"error":          err.Error(),
		}).Warn("Receipt event enqueue failed")
	}
}
