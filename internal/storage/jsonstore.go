// internal/storage/jsonstore.go
//
// 將 Snapshot 寫成 JSON 檔案。
// 採「原子寫入」：先寫入 .tmp 檔，再以 rename() 取代原檔，
// 寫入中斷時原檔不會損壞。
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// SaveSnapshot 將 Snapshot 序列化為 JSON 並原子寫入 path。
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Meta.Storage = "json_snapshot"
	snap.Meta.Timestamp = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", tmp, err)
	}

	// 使用縮排格式輸出，方便人工檢視
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: close %s: %w", tmp, err)
	}

	// 原子替換
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: rename snapshot: %w", err)
	}
	return nil
}
