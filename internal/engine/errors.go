// internal/engine/errors.go
//
// engine 層的略過原因。ledger 層的錯誤直接沿用，
// Reason 將任一錯誤轉為穩定的短字串，供日誌與 metrics 標籤使用。

package engine

import (
	"errors"

	"txengine/internal/ledger"
)

// ErrClientMismatch 代表 dispute/resolve/chargeback 引用了其他客戶的交易。
var ErrClientMismatch = errors.New("transaction belongs to another client")

// ErrUnsupported 代表未知的交易型別。
var ErrUnsupported = errors.New("unsupported transaction")

var reasons = []struct {
	err  error
	name string
}{
	{ledger.ErrAccountLocked, "account_locked"},
	{ledger.ErrInsufficientFunds, "insufficient_funds"},
	{ledger.ErrInsufficientHeld, "insufficient_held"},
	{ledger.ErrNegativeAmount, "negative_amount"},
	{ledger.ErrDuplicateTransaction, "duplicate_transaction"},
	{ledger.ErrUnknownTransaction, "unknown_transaction"},
	{ledger.ErrInvalidTransition, "invalid_transition"},
	{ErrClientMismatch, "client_mismatch"},
	{ErrUnsupported, "unsupported"},
}

// Reason 回傳略過原因的標籤；err 為 nil 時回傳 "applied"。
func Reason(err error) string {
	if err == nil {
		return "applied"
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}
