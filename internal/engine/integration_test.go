package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"wallet_service/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The concurrency properties need a real MySQL behind the engine. Set
// TEST_DATABASE_DSN (e.g. "user:pass@tcp(127.0.0.1:3306)/wallet_test?parseTime=true")
// to run this suite; it is skipped otherwise.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping store-backed tests")
	}
	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}))

	// Records first: the wallet foreign keys are RESTRICT.
	session := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	require.NoError(t, session.Delete(&domain.Transaction{}).Error)
	require.NoError(t, session.Delete(&domain.Wallet{}).Error)
	require.NoError(t, session.Delete(&domain.User{}).Error)
	return db
}

// newTestUser creates a user with a funded wallet and returns the user id.
func newTestUser(t *testing.T, db *gorm.DB, username, balance string) uint {
	t.Helper()
	user := domain.User{Username: username, Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	wallet := domain.Wallet{UserID: user.ID, Balance: decimal.RequireFromString(balance)}
	require.NoError(t, db.Create(&wallet).Error)
	return user.ID
}

func balanceOf(t *testing.T, db *gorm.DB, userID uint) decimal.Decimal {
	t.Helper()
	var wallet domain.Wallet
	require.NoError(t, db.Where("user_id = ?", userID).First(&wallet).Error)
	return wallet.Balance
}

func TestTransferMovesFundsAndWritesRecord(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 5)

	sender := newTestUser(t, db, "sender", "100.00")
	receiver := newTestUser(t, db, "receiver", "0.00")

	result, err := eng.Transfer(context.Background(), sender, receiver, "40.00")
	require.NoError(t, err)
	assert.Equal(t, "60.00", result.SenderBalance.StringFixed(2))
	assert.NotZero(t, result.Transaction.ID)

	assert.Equal(t, "60.00", balanceOf(t, db, sender).StringFixed(2))
	assert.Equal(t, "40.00", balanceOf(t, db, receiver).StringFixed(2))

	var record domain.Transaction
	require.NoError(t, db.First(&record, result.Transaction.ID).Error)
	assert.Equal(t, domain.TxTransfer, record.Type)
	assert.Equal(t, domain.TxCompleted, record.Status)
	assert.Equal(t, "40.00", record.Amount.StringFixed(2))
}

func TestTransferValidation(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 5)

	sender := newTestUser(t, db, "val_sender", "100.00")
	receiver := newTestUser(t, db, "val_receiver", "0.00")

	_, err := eng.Transfer(context.Background(), sender, receiver, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = eng.Transfer(context.Background(), sender, sender, "10.00")
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = eng.Transfer(context.Background(), sender, 999999, "10.00")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = eng.Transfer(context.Background(), sender, receiver, "100.01")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Failed attempts leave no trace.
	assert.Equal(t, "100.00", balanceOf(t, db, sender).StringFixed(2))
	assert.Equal(t, "0.00", balanceOf(t, db, receiver).StringFixed(2))
	var count int64
	require.NoError(t, db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

// Two simultaneous transfers that would each drain the sender: exactly one
// succeeds, the other observes InsufficientFunds against the post-mutation
// balance, and the final balance is exactly zero.
func TestConcurrentDoubleSpendPrevented(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 10)

	sender := newTestUser(t, db, "ds_sender", "10.00")
	receiver := newTestUser(t, db, "ds_receiver", "0.00")

	const attempts = 2
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := eng.Transfer(context.Background(), sender, receiver, "10.00")
			results[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, "0.00", balanceOf(t, db, sender).StringFixed(2))
	assert.Equal(t, "10.00", balanceOf(t, db, receiver).StringFixed(2))
}

// Opposing transfers on the same pair of accounts, fired concurrently and
// repeatedly. Ordered locking means both directions always complete without
// deadlocking, and the balances end where they started.
func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 10)

	a := newTestUser(t, db, "dl_a", "100.00")
	b := newTestUser(t, db, "dl_b", "100.00")

	const rounds = 20
	for i := 0; i < rounds; i++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = eng.Transfer(context.Background(), a, b, "50.00")
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = eng.Transfer(context.Background(), b, a, "50.00")
		}()
		wg.Wait()
		require.NoError(t, errs[0], "round %d", i)
		require.NoError(t, errs[1], "round %d", i)
	}

	assert.Equal(t, "100.00", balanceOf(t, db, a).StringFixed(2))
	assert.Equal(t, "100.00", balanceOf(t, db, b).StringFixed(2))
}

// Transfers never create or destroy money: the sum of all balances is
// invariant across any storm of successful and failed transfers.
func TestConservationUnderConcurrentLoad(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 10)

	ids := []uint{
		newTestUser(t, db, "cons_a", "300.00"),
		newTestUser(t, db, "cons_b", "200.00"),
		newTestUser(t, db, "cons_c", "100.00"),
	}
	initialTotal := decimal.RequireFromString("600.00")

	const workers = 6
	const perWorker = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				from := ids[(w+i)%len(ids)]
				to := ids[(w+i+1)%len(ids)]
				amount := fmt.Sprintf("%d.00", (i%5)+1)
				_, err := eng.Transfer(context.Background(), from, to, amount)
				// Insufficient funds is a legitimate outcome under load.
				if err != nil && !errors.Is(err, domain.ErrInsufficientFunds) {
					t.Errorf("worker %d transfer %d: %v", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()

	total := decimal.Zero
	for _, id := range ids {
		bal := balanceOf(t, db, id)
		assert.False(t, bal.IsNegative(), "user %d went negative", id)
		total = total.Add(bal)
	}
	assert.True(t, initialTotal.Equal(total), "total changed: %s", total)
}

func TestDepositCreditsAndRecords(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 5)

	user := newTestUser(t, db, "dep_user", "5.50")

	balance, err := eng.Deposit(context.Background(), user, "4.50")
	require.NoError(t, err)
	assert.Equal(t, "10.00", balance.StringFixed(2))

	_, err = eng.Deposit(context.Background(), user, "-1.00")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = eng.Deposit(context.Background(), 999999, "1.00")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	var record domain.Transaction
	require.NoError(t, db.Where("type = ?", domain.TxDeposit).First(&record).Error)
	assert.Nil(t, record.FromWalletID, "deposit record carries no sender")
}

// failingNotifier always refuses the completion event.
type failingNotifier struct{}

func (failingNotifier) TransferCompleted(context.Context, uint) error {
	return errors.New("queue unreachable")
}

// A receipt enqueue failure is logged and dropped; the transfer itself must
// commit and report success regardless.
func TestTransferSucceedsWhenNotifierFails(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, failingNotifier{}, 5)

	sender := newTestUser(t, db, "nf_sender", "50.00")
	receiver := newTestUser(t, db, "nf_receiver", "0.00")

	result, err := eng.Transfer(context.Background(), sender, receiver, "20.00")
	require.NoError(t, err)
	assert.Equal(t, "30.00", result.SenderBalance.StringFixed(2))
	assert.Equal(t, "30.00", balanceOf(t, db, sender).StringFixed(2))
	assert.Equal(t, "20.00", balanceOf(t, db, receiver).StringFixed(2))

	var record domain.Transaction
	require.NoError(t, db.First(&record, result.Transaction.ID).Error)
	assert.Equal(t, domain.TxCompleted, record.Status)
}

func TestGetBalanceCacheFlag(t *testing.T) {
	db := openTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	eng := New(db, rdb, nil, 5)

	user := newTestUser(t, db, "cache_user", "75.00")

	first, err := eng.GetBalance(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, first.Cached, "first read comes from the store")

	second, err := eng.GetBalance(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, second.Cached, "second read is served from cache")
	assert.True(t, first.Balance.Equal(second.Balance))

	// Mutation invalidates, so the next read hits the store again and sees
	// the committed value.
	_, err = eng.Deposit(context.Background(), user, "25.00")
	require.NoError(t, err)

	third, err := eng.GetBalance(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, "100.00", third.Balance.StringFixed(2))
}

func TestCreateWalletDuplicate(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 5)

	user := domain.User{Username: "cw_user", Password: "x"}
	require.NoError(t, db.Create(&user).Error)

	wallet, err := eng.CreateWallet(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", wallet.Balance.StringFixed(2))

	_, err = eng.CreateWallet(context.Background(), user.ID)
	assert.ErrorIs(t, err, domain.ErrWalletExists)
}

func TestGetBalanceAndHistory(t *testing.T) {
	db := openTestDB(t)
	eng := New(db, nil, nil, 5)

	alice := newTestUser(t, db, "hist_alice", "100.00")
	bob := newTestUser(t, db, "hist_bob", "100.00")

	_, err := eng.Transfer(context.Background(), alice, bob, "25.00")
	require.NoError(t, err)
	_, err = eng.Transfer(context.Background(), bob, alice, "10.00")
	require.NoError(t, err)
	_, err = eng.Deposit(context.Background(), alice, "5.00")
	require.NoError(t, err)

	// Repeated reads with no intervening mutation return identical values.
	view1, err := eng.GetBalance(context.Background(), alice)
	require.NoError(t, err)
	view2, err := eng.GetBalance(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "90.00", view1.Balance.StringFixed(2))
	assert.True(t, view1.Balance.Equal(view2.Balance))
	assert.Equal(t, "hist_alice", view1.Username)

	history, err := eng.ListTransactions(context.Background(), alice, 1, 20)
	require.NoError(t, err)
	require.Len(t, history.Transactions, 3)
	assert.Equal(t, int64(3), history.Total)

	// Newest first: deposit, received, sent.
	assert.Equal(t, "deposit", history.Transactions[0].Direction)
	assert.Equal(t, "received", history.Transactions[1].Direction)
	assert.Equal(t, "hist_bob", history.Transactions[1].Counterparty)
	assert.Equal(t, "sent", history.Transactions[2].Direction)
	assert.Equal(t, "hist_bob", history.Transactions[2].Counterparty)

	users, err := eng.ListUsers(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "hist_bob", users[0].Username)
}
