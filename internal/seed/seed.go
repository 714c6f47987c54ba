// Package seed populates the database with named test users, funded wallets
// and a handful of sample transfers.
package seed

import (
	"wallet_service/internal/domain" // Domain models

	"github.com/shopspring/decimal" // Fixed-point money
	"github.com/sirupsen/logrus"    // Structured logging
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"gorm.io/gorm"                  // GORM ORM library
)

const seedPassword = "password123"

var seedUsers = []struct {
	Username string
	Balance  string
}{
	{"alice", "1000.00"},
	{"bob", "500.00"},
	{"charlie", "750.00"},
	{"diana", "250.00"},
	{"eve", "100.00"},
}

// Sample audit records between the seeded users. Balances above are the
// stated opening balances; these records exist so history and admin listings
// have data to show.
var seedTransfers = []struct {
	From, To, Amount string
}{
	{"alice", "bob", "50.00"},
	{"bob", "charlie", "25.00"},
	{"charlie", "diana", "100.00"},
	{"alice", "eve", "30.00"},
	{"diana", "alice", "15.00"},
}

// Run seeds test data. Idempotent: if the seed users already exist it does
// nothing unless clear is set, in which case all wallet data is wiped first
// (records before wallets, to satisfy the RESTRICT foreign keys).
func Run(db *gorm.DB, clear bool) error {
	if clear {
		logrus.Info("Clearing existing data")
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Transaction{}).Error; err != nil {
			return err
		}
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&domain.Wallet{}).Error; err != nil {
			return err
		}
		if err := db.Where("role <> ?", "admin").Delete(&domain.User{}).Error; err != nil {
			return err
		}
	}

	var count int64
	usernames := make([]string, len(seedUsers))
	for i, u := range seedUsers {
		usernames[i] = u.Username
	}
	if err := db.Model(&domain.User{}).Where("username IN ?", usernames).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(len(seedUsers)) {
		logrus.Info("Seed already applied, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	hashed := string(hash)

	err = db.Transaction(func(tx *gorm.DB) error {
		walletsByUser := make(map[string]*domain.Wallet, len(seedUsers))
		for _, su := range seedUsers {
			user := domain.User{Username: su.Username, Password: hashed}
			if err := tx.Where("username = ?", su.Username).FirstOrCreate(&user).Error; err != nil {
				return err
			}
			wallet := domain.Wallet{UserID: user.ID, Balance: decimal.RequireFromString(su.Balance)}
			if err := tx.Where("user_id = ?", user.ID).FirstOrCreate(&wallet).Error; err != nil {
				return err
			}
			walletsByUser[su.Username] = &wallet
			logrus.WithFields(logrus.Fields{
				"username": su.Username,
				"balance":  su.Balance,
			}).Info("Seeded user")
		}

		for _, st := range seedTransfers {
			from := walletsByUser[st.From]
			to := walletsByUser[st.To]
			record := domain.Transaction{
				FromWalletID: &from.ID,
				ToWalletID:   &to.ID,
				Amount:       decimal.RequireFromString(st.Amount),
				Type:         domain.TxTransfer,
				Status:       domain.TxCompleted,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"users":    len(seedUsers),
		"password": seedPassword,
	}).Info("Seed data created")
	return nil
}
