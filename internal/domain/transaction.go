package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// Transaction types
const (
	TxTransfer = "transfer" // Wallet-to-wallet transfer
	TxDeposit  = "deposit"  // System credit into a wallet
)

// TxCompleted is the only status the system writes: records exist only for
// transfers that committed.
const TxCompleted = "completed"

// Transaction Model: the immutable audit record written atomically with the
// balance mutations it documents. The wallet foreign keys are RESTRICT so a
// wallet with history can never be deleted out from under its audit trail.
// FromWalletID is NULL for deposits (system credit).
type Transaction struct {
	ID           uint            `gorm:"primaryKey"` // Primary key
	FromWalletID *uint           `gorm:"index"`      // Sender wallet, NULL for deposits
	ToWalletID   *uint           `gorm:"index"`      // Receiver wallet
	FromWallet   *Wallet         `gorm:"foreignKey:FromWalletID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"` // Sender association
	ToWallet     *Wallet         `gorm:"foreignKey:ToWalletID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`   // Receiver association
	Amount       decimal.Decimal `gorm:"type:decimal(19,2);not null"` // Amount moved, strictly positive
	Type         string          `gorm:"size:16;not null"`            // transfer | deposit
	Status       string          `gorm:"size:16;not null"`            // Always completed
	ReceiptPath  string          `gorm:"size:255"`                    // Set once by the receipt worker
	CreatedAt    time.Time       `gorm:"index"`                       // Server-assigned timestamp
}
