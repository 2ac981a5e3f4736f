// internal/storage/model.go
//
// 定義帳戶快照的序列化格式（目前為 JSON）。
// 快照只做匯出，處理流程不會再讀回。
package storage

import (
	"time"

	"txengine/internal/ledger"
)

// Meta 為快照的中繼資料 (metadata)。
type Meta struct {
	Storage   string    `json:"storage"`        // 儲存類型，例如 "json_snapshot"
	Version   int       `json:"version"`        // 結構版本號
	Timestamp time.Time `json:"timestamp"`      // 快照建立時間
	RunID     string    `json:"run_id"`         // 本次處理的唯一 ID
	Note      string    `json:"note,omitempty"` // 備註欄，可選
}

// Snapshot 為一次處理結束後的完整帳戶表。
// 金額已依 ledger.DisplayPlaces 位格式化。
type Snapshot struct {
	Meta     Meta                 `json:"_meta"`
	Accounts []ledger.AccountView `json:"accounts"`
}

// NewSnapshot 由帳戶清單建立快照，順序與輸入相同。
func NewSnapshot(runID string, accts []ledger.Account) Snapshot {
	s := Snapshot{
		Meta:     Meta{Storage: "json_snapshot", Version: 1, RunID: runID},
		Accounts: make([]ledger.AccountView, 0, len(accts)),
	}
	for _, a := range accts {
		s.Accounts = append(s.Accounts, a.View())
	}
	return s
}
