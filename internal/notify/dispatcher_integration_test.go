package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"wallet_service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Receipt processing reads records and parties from the real store. Set
// TEST_DATABASE_DSN to run this suite; it is skipped otherwise.
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

// seedRecord creates two users with wallets and one committed transfer
// record between them.
func seedRecord(t *testing.T, db *gorm.DB) domain.Transaction {
	t.Helper()
	wallets := make([]domain.Wallet, 2)
	for i, name := range []string{"rcpt_alice", "rcpt_bob"} {
		user := domain.User{Username: name, Password: "x"}
		require.NoError(t, db.Create(&user).Error)
		wallets[i] = domain.Wallet{UserID: user.ID, Balance: decimal.RequireFromString("100.00")}
		require.NoError(t, db.Create(&wallets[i]).Error)
	}
	record := domain.Transaction{
		FromWalletID: &wallets[0].ID,
		ToWalletID:   &wallets[1].ID,
		Amount:       decimal.RequireFromString("25.00"),
		Type:         domain.TxTransfer,
		Status:       domain.TxCompleted,
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

// Delivery is at-least-once, so the same event may arrive twice. The first
// delivery renders and writes the path back; the second must be a no-op.
func TestProcessRendersOnceOnRedelivery(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	d := NewDispatcher(db, nil, dir, 1, 3)
	record := seedRecord(t, db)
	ev := Event{TransactionID: record.ID}

	require.NoError(t, d.process(context.Background(), ev))

	var got domain.Transaction
	require.NoError(t, db.First(&got, record.ID).Error)
	wantName := fmt.Sprintf("receipt_%d.pdf", record.ID)
	assert.Equal(t, wantName, got.ReceiptPath)
	fullPath := filepath.Join(dir, wantName)
	_, err := os.Stat(fullPath)
	require.NoError(t, err)

	// Plant a sentinel so a second render would be detectable.
	require.NoError(t, os.WriteFile(fullPath, []byte("sentinel"), 0o644))

	require.NoError(t, d.process(context.Background(), ev))

	data, err := os.ReadFile(fullPath)
	require.NoError(t, err)
	assert.Equal(t, "sentinel", string(data), "redelivered event must not re-render")
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, wantName, got.ReceiptPath, "redelivered event must not change the path")
}

func TestProcessSkipsAlreadyRenderedRecord(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	d := NewDispatcher(db, nil, dir, 1, 3)
	record := seedRecord(t, db)
	require.NoError(t, db.Model(&record).Update("receipt_path", "existing.pdf").Error)

	require.NoError(t, d.process(context.Background(), Event{TransactionID: record.ID}))

	var got domain.Transaction
	require.NoError(t, db.First(&got, record.ID).Error)
	assert.Equal(t, "existing.pdf", got.ReceiptPath)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no receipt may be rendered for an already rendered record")
}

func TestProcessDropsUnknownTransaction(t *testing.T) {
	db := openTestDB(t)
	d := NewDispatcher(db, nil, t.TempDir(), 1, 3)

	// A record deleted (or never committed) before the event is consumed is
	// a completed no-op, not an error to retry.
	assert.NoError(t, d.process(context.Background(), Event{TransactionID: 999999}))
}
