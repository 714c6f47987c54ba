package domain

import (
	"time" // Timestamps

	"github.com/shopspring/decimal" // Fixed-point money
)

// Wallet Model. Balance is stored as DECIMAL(19,2); the non-negative
// invariant is enforced by the transfer engine under row lock, never assumed.
type Wallet struct {
	ID        uint            `gorm:"primaryKey"`                          // Primary key
	UserID    uint            `gorm:"uniqueIndex"`                         // Foreign key to User, one wallet per user
	Balance   decimal.Decimal `gorm:"type:decimal(19,2);not null;default:0.00"` // Wallet balance, scale 2
	CreatedAt time.Time       // When the wallet was created
	UpdatedAt time.Time       // When the wallet was last updated
}
