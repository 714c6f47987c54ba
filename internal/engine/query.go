package engine

import (
	"context" // Request-scoped reads
	"errors"  // Sentinel matching
	"time"    // Cache TTL and timestamps

	"wallet_service/internal/domain" // Domain models
	"wallet_service/internal/utils"  // Redis cache helpers

	"github.com/shopspring/decimal" // Fixed-point money
	"gorm.io/gorm"                  // GORM ORM library
)

// Read-cache TTL; invalidation on every mutation keeps cached values equal
// to the latest committed state, so reads stay lock-free.
const cacheTTL = 60 * time.Second

// WalletView is the balance-query result.
type WalletView struct {
	UserID   uint            `json:"user_id"`   // Owner identity
	Username string          `json:"username"`  // Owner name
	WalletID uint            `json:"wallet_id"` // Wallet row id
	Balance  decimal.Decimal `json:"balance"`   // Latest committed balance
	Cached   bool            `json:"-"`         // Whether this read was served from cache
}

// HistoryItem is one entry in a user's transaction history.
type HistoryItem struct {
	ID           uint            `json:"id"`           // Transaction record id
	Direction    string          `json:"direction"`    // sent | received | deposit
	Counterparty string          `json:"counterparty"` // Other party's username, empty for deposits
	Amount       decimal.Decimal `json:"amount"`       // Amount moved
	Timestamp    time.Time       `json:"timestamp"`    // When it committed
	ReceiptPath  string          `json:"receipt_path"` // Receipt location, if rendered
}

// HistoryPage is a paginated transaction history response.
type HistoryPage struct {
	Transactions []HistoryItem `json:"transactions"` // Newest first
	Page         int           `json:"page"`         // Current page
	PageSize     int           `json:"page_size"`    // Page size
	Total        int64         `json:"total"`        // Total records for this user
	TotalPages   int           `json:"total_pages"`  // Total pages
}

// UserSummary is a transfer counterparty entry.
type UserSummary struct {
	ID       uint   `json:"id"`       // Account id
	Username string `json:"username"` // Owner name
}

// GetBalance returns the latest committed balance for the user's wallet.
// Read-only: does not lock, served from cache when a valid entry exists.
func (e *Engine) GetBalance(ctx context.Context, userID uint) (*WalletView, error) {
	key := utils.WalletCacheKey(userID)
	var view WalletView
	if e.rdb != nil {
		if found, err := utils.GetCache(ctx, e.rdb, key, &view); err == nil && found {
			view.Cached = true
			return &view, nil
		}
	}

	var wallet domain.Wallet
	if err := e.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classify(err)
	}
	var user domain.User
	if err := e.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, classify(err)
	}

	view = WalletView{UserID: userID, Username: user.Username, WalletID: wallet.ID, Balance: wallet.Balance}
	if e.rdb != nil {
		_ = utils.SetCache(ctx, e.rdb, key, view, cacheTTL)
	}
	return &view, nil
}

// ListTransactions returns the user's transaction history, newest first,
// with the direction and counterparty resolved per entry.
func (e *Engine) ListTransactions(ctx context.Context, userID uint, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	key := utils.TxHistoryCacheKey(userID, page, pageSize)
	var cached HistoryPage
	if e.rdb != nil {
		if found, err := utils.GetCache(ctx, e.rdb, key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	var wallet domain.Wallet
	if err := e.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, classify(err)
	}

	var total int64
	if err := e.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID).
		Count(&total).Error; err != nil {
		return nil, classify(err)
	}

	var records []domain.Transaction
	if err := e.db.WithContext(ctx).
		Where("from_wallet_id = ? OR to_wallet_id = ?", wallet.ID, wallet.ID).
		Order("created_at desc, id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, classify(err)
	}

	names, err := e.walletOwners(ctx, records)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		item := HistoryItem{
			ID:          rec.ID,
			Amount:      rec.Amount,
			Timestamp:   rec.CreatedAt,
			ReceiptPath: rec.ReceiptPath,
		}
		switch {
		case rec.FromWalletID == nil:
			item.Direction = "deposit"
		case *rec.FromWalletID == wallet.ID:
			item.Direction = "sent"
			if rec.ToWalletID != nil {
				item.Counterparty = names[*rec.ToWalletID]
			}
		default:
			item.Direction = "received"
			item.Counterparty = names[*rec.FromWalletID]
		}
		items = append(items, item)
	}

	result := HistoryPage{
		Transactions: items,
		Page:         page,
		PageSize:     pageSize,
		Total:        total,
		TotalPages:   (int(total) + pageSize - 1) / pageSize,
	}
	if e.rdb != nil {
		_ = utils.SetCache(ctx, e.rdb, key, result, cacheTTL)
	}
	return &result, nil
}

// ListUsers returns every account except the caller's, for picking a
// transfer counterparty.
func (e *Engine) ListUsers(ctx context.Context, excludeUserID uint) ([]UserSummary, error) {
	var users []domain.User
	if err := e.db.WithContext(ctx).
		Where("id <> ?", excludeUserID).
		Order("username").
		Find(&users).Error; err != nil {
		return nil, classify(err)
	}
	out := make([]UserSummary, len(users))
	for i, u := range users {
		out[i] = UserSummary{ID: u.ID, Username: u.Username}
	}
	return out, nil
}

// walletOwners resolves wallet ids referenced by the records to usernames.
func (e *Engine) walletOwners(ctx context.Context, records []domain.Transaction) (map[uint]string, error) {
	idSet := make(map[uint]bool)
	for _, rec := range records {
		if rec.FromWalletID != nil {
			idSet[*rec.FromWalletID] = true
		}
		if rec.ToWalletID != nil {
			idSet[*rec.ToWalletID] = true
		}
	}
	names := make(map[uint]string, len(idSet))
	if len(idSet) == 0 {
		return names, nil
	}
	ids := make([]uint, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	var rows []struct {
		ID       uint
		Username string
	}
	if err := e.db.WithContext(ctx).Table("wallets").
		Select("wallets.id AS id, users.username AS username").
		Joins("JOIN users ON users.id = wallets.user_id").
		Where("wallets.id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}
	for _, row := range rows {
		names[row.ID] = row.Username
	}
	return names, nil
}
