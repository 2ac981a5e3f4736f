package txcsv

import (
	"encoding/csv"
	"io"
	"strconv"

	"txengine/internal/ledger"
)

var header = []string{"client", "available", "held", "total", "locked"}

// WriteAccounts 以 CSV 輸出帳戶表，金額固定 ledger.DisplayPlaces 位小數。
func WriteAccounts(w io.Writer, accts []ledger.Account) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, a := range accts {
		v := a.View()
		rec := []string{
			strconv.FormatUint(uint64(v.Client), 10),
			v.Available,
			v.Held,
			v.Total,
			strconv.FormatBool(v.Locked),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
