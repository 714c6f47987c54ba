package domain

import "errors"

// Engine error taxonomy. Handlers map these to HTTP statuses; the engine
// returns them as-is, never as partial state.
var (
	ErrInvalidAmount     = errors.New("invalid amount")           // Non-positive, malformed, or more than 2 fractional digits
	ErrInvalidTarget     = errors.New("cannot transfer to self")  // Sender and receiver are the same account
	ErrAccountNotFound   = errors.New("account not found")        // Wallet missing for one of the parties
	ErrInsufficientFunds = errors.New("insufficient funds")       // Sender balance below amount, checked under lock
	ErrWalletExists      = errors.New("wallet already exists")    // One wallet per user
	ErrBusy              = errors.New("account busy, retry later") // Lock wait timed out
	ErrStoreUnavailable  = errors.New("store unavailable")        // Transient infrastructure failure
)
