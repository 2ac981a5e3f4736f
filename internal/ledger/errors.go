// internal/ledger/errors.go
//
// 本檔集中定義帳本層的「領域錯誤（domain errors）」。
// 這些錯誤只代表「該筆交易被略過」，不會中斷整條交易串流；
// 由 engine 層決定如何記錄與計數。

package ledger

import "errors"

var (
	// ErrAccountLocked 代表帳戶已因 chargeback 被凍結，拒絕任何餘額變動。
	ErrAccountLocked = errors.New("account locked")

	// ErrInsufficientFunds 代表可用餘額不足（提款或建立爭議 hold）。
	ErrInsufficientFunds = errors.New("insufficient available funds")

	// ErrInsufficientHeld 代表凍結餘額不足以 release / forfeit。
	ErrInsufficientHeld = errors.New("insufficient held funds")

	// ErrNegativeAmount 代表金額為負數。
	ErrNegativeAmount = errors.New("amount must be >= 0")

	// ErrDuplicateTransaction 代表交易 ID 已被使用。
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrUnknownTransaction 代表引用的交易 ID 不存在於可爭議紀錄中。
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrInvalidTransition 代表爭議狀態轉移不合法
	// （例如對 Clean 紀錄 resolve，或對已 ChargedBack 的紀錄再次 dispute）。
	ErrInvalidTransition = errors.New("invalid dispute status transition")
)
