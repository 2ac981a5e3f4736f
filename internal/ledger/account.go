// Package ledger 定義核心領域模型：客戶帳戶與可爭議的存款紀錄。
// 本檔只含資料結構，不含任何 I/O 細節。

package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DisplayPlaces 為對外輸出時的固定小數位數；內部運算保留完整精度。
const DisplayPlaces = 4

// ClientID identifies a client account.
type ClientID uint16

// TxID identifies a transaction.
type TxID uint32

// Account represents a client account.
// Total 恆等於 Available + Held。
type Account struct {
	Client    ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// AccountView 為帳戶的對外呈現格式：金額已四捨六入五成雙到 DisplayPlaces 位。
type AccountView struct {
	Client    ClientID `json:"client"`
	Available string   `json:"available"`
	Held      string   `json:"held"`
	Total     string   `json:"total"`
	Locked    bool     `json:"locked"`
}

// View 將帳戶轉為對外格式；僅應在輸出邊界呼叫。
func (a Account) View() AccountView {
	return AccountView{
		Client:    a.Client,
		Available: Display(a.Available),
		Held:      Display(a.Held),
		Total:     Display(a.Total),
		Locked:    a.Locked,
	}
}

// Display 將金額格式化為固定 DisplayPlaces 位小數（banker's rounding）。
func Display(d decimal.Decimal) string {
	return d.StringFixedBank(DisplayPlaces)
}

// Status 為可爭議存款紀錄的狀態。
type Status int

const (
	Clean Status = iota
	Disputed
	Resolved
	ChargedBack
)

func (s Status) String() string {
	switch s {
	case Clean:
		return "clean"
	case Disputed:
		return "disputed"
	case Resolved:
		return "resolved"
	case ChargedBack:
		return "chargedback"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// CanTransition 回報 s → next 是否為合法轉移。
// 只允許 Clean→Disputed、Disputed→Resolved、Disputed→ChargedBack。
func (s Status) CanTransition(next Status) bool {
	switch s {
	case Clean:
		return next == Disputed
	case Disputed:
		return next == Resolved || next == ChargedBack
	default:
		return false
	}
}

// Entry 為一筆已受理存款的可爭議紀錄，建立後永不刪除。
type Entry struct {
	Tx     TxID
	Client ClientID
	Amount decimal.Decimal
	Status Status
}
