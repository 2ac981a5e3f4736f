// internal/ledger/ledger.go

// Package ledger 管理所有客戶帳戶與可爭議存款紀錄。
// Ledger 只允許單一寫入者依序操作，因此不使用任何鎖；
// 所有金額以 decimal.Decimal 保存，避免浮點誤差。
package ledger

import (
	"github.com/shopspring/decimal"
)

// Ledger 為聚合根 (Aggregate Root)：
// - accts：帳戶索引表（ClientID → *Account）。
// - order：帳戶首次出現的順序，確保 Snapshot 輸出穩定。
// - entries：可爭議的存款紀錄（TxID → *Entry）。
type Ledger struct {
	accts   map[ClientID]*Account
	order   []ClientID
	entries map[TxID]*Entry
}

// New 建立空白帳本。
func New() *Ledger {
	return &Ledger{
		accts:   make(map[ClientID]*Account),
		entries: make(map[TxID]*Entry),
	}
}

// GetOrCreate 回傳帳戶目前狀態的拷貝；帳戶不存在時以零餘額建立。
func (l *Ledger) GetOrCreate(c ClientID) Account {
	return *l.account(c)
}

// Get 回傳帳戶拷貝；帳戶不存在時 ok 為 false。
func (l *Ledger) Get(c ClientID) (Account, bool) {
	a, ok := l.accts[c]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// Len 回傳帳戶數量。
func (l *Ledger) Len() int {
	return len(l.accts)
}

func (l *Ledger) account(c ClientID) *Account {
	a, ok := l.accts[c]
	if !ok {
		a = &Account{Client: c}
		l.accts[c] = a
		l.order = append(l.order, c)
	}
	return a
}

// mutable 取得可變更的帳戶；已凍結或金額為負時回傳錯誤。
func (l *Ledger) mutable(c ClientID, amt decimal.Decimal) (*Account, error) {
	if amt.IsNegative() {
		return nil, ErrNegativeAmount
	}
	a := l.account(c)
	if a.Locked {
		return nil, ErrAccountLocked
	}
	return a, nil
}

// Deposit 存款：available 與 total 同步增加。
func (l *Ledger) Deposit(c ClientID, amt decimal.Decimal) error {
	a, err := l.mutable(c, amt)
	if err != nil {
		return err
	}
	a.Available = a.Available.Add(amt)
	a.Total = a.Total.Add(amt)
	return nil
}

// Withdraw 提款：可用餘額不足時回傳 ErrInsufficientFunds，帳戶不變。
func (l *Ledger) Withdraw(c ClientID, amt decimal.Decimal) error {
	a, err := l.mutable(c, amt)
	if err != nil {
		return err
	}
	if a.Available.LessThan(amt) {
		return ErrInsufficientFunds
	}
	a.Available = a.Available.Sub(amt)
	a.Total = a.Total.Sub(amt)
	return nil
}

// Hold 將 amt 由 available 移到 held。
// 可用餘額不足時拒絕，available 永不為負。
func (l *Ledger) Hold(c ClientID, amt decimal.Decimal) error {
	a, err := l.mutable(c, amt)
	if err != nil {
		return err
	}
	if a.Available.LessThan(amt) {
		return ErrInsufficientFunds
	}
	a.Available = a.Available.Sub(amt)
	a.Held = a.Held.Add(amt)
	return nil
}

// Release 將 amt 由 held 移回 available（resolve）。
func (l *Ledger) Release(c ClientID, amt decimal.Decimal) error {
	a, err := l.mutable(c, amt)
	if err != nil {
		return err
	}
	if a.Held.LessThan(amt) {
		return ErrInsufficientHeld
	}
	a.Held = a.Held.Sub(amt)
	a.Available = a.Available.Add(amt)
	return nil
}

// Forfeit 沒收凍結款項（chargeback）：held 與 total 減少，帳戶隨即凍結。
func (l *Ledger) Forfeit(c ClientID, amt decimal.Decimal) error {
	a, err := l.mutable(c, amt)
	if err != nil {
		return err
	}
	if a.Held.LessThan(amt) {
		return ErrInsufficientHeld
	}
	a.Held = a.Held.Sub(amt)
	a.Total = a.Total.Sub(amt)
	a.Locked = true
	return nil
}

// RecordDeposit 建立一筆狀態為 Clean 的可爭議紀錄。
func (l *Ledger) RecordDeposit(tx TxID, c ClientID, amt decimal.Decimal) error {
	if _, ok := l.entries[tx]; ok {
		return ErrDuplicateTransaction
	}
	l.entries[tx] = &Entry{Tx: tx, Client: c, Amount: amt, Status: Clean}
	return nil
}

// Entry 回傳可爭議紀錄的拷貝。
func (l *Ledger) Entry(tx TxID) (Entry, bool) {
	e, ok := l.entries[tx]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// SetStatus 推進可爭議紀錄的狀態；非法轉移回傳 ErrInvalidTransition。
func (l *Ledger) SetStatus(tx TxID, next Status) error {
	e, ok := l.entries[tx]
	if !ok {
		return ErrUnknownTransaction
	}
	if !e.Status.CanTransition(next) {
		return ErrInvalidTransition
	}
	e.Status = next
	return nil
}

// Snapshot 依帳戶首次出現順序回傳所有帳戶的拷貝（含已凍結帳戶）。
func (l *Ledger) Snapshot() []Account {
	out := make([]Account, 0, len(l.order))
	for _, c := range l.order {
		out = append(out, *l.accts[c])
	}
	return out
}
