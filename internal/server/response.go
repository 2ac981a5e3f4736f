// internal/server/response.go
//
// 統一 HTTP 回應格式：成功回應為 JSON 或 CSV，錯誤回應一律為 {"error": "..."}。
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"txengine/internal/engine"
	"txengine/internal/ledger"
	"txengine/internal/txcsv"
)

// processResponse 為 POST /process 的 JSON 回應。
type processResponse struct {
	RequestID string               `json:"request_id"`
	Accounts  []ledger.AccountView `json:"accounts"`
	Summary   summaryView          `json:"summary"`
}

type summaryView struct {
	Read      int            `json:"read"`
	Applied   int            `json:"applied"`
	Skipped   map[string]int `json:"skipped"`
	Malformed int            `json:"malformed"`
}

// writeAccounts 依 Accept 標頭輸出帳戶表：text/csv 時輸出 CSV，否則 JSON。
func writeAccounts(c *gin.Context, accts []ledger.Account, sum engine.Summary, malformed int) {
	if c.NegotiateFormat(gin.MIMEJSON, "text/csv") == "text/csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := txcsv.WriteAccounts(c.Writer, accts); err != nil {
			_ = c.Error(err)
		}
		return
	}

	views := make([]ledger.AccountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, a.View())
	}
	c.JSON(http.StatusOK, processResponse{
		RequestID: requestID(c),
		Accounts:  views,
		Summary: summaryView{
			Read:      sum.Read,
			Applied:   sum.Applied,
			Skipped:   sum.Skipped,
			Malformed: malformed,
		},
	})
}

// writeErr 統一輸出錯誤回應。
func writeErr(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error(), "request_id": requestID(c)})
}
